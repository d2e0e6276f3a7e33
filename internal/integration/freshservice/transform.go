package freshservice

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"invoicesys/internal/domain"
)

// 采购单状态码 → 本地发票状态
var poStatusByCode = map[int64]domain.InvoiceStatus{
	1: domain.InvoicePending,   // open
	2: domain.InvoicePending,   // requested
	3: domain.InvoicePending,   // ordered
	4: domain.InvoicePaid,      // received
	5: domain.InvoicePaid,      // partially received
	6: domain.InvoiceCancelled, // cancelled
}

var poStatusByName = map[string]domain.InvoiceStatus{
	"open":               domain.InvoicePending,
	"requested":          domain.InvoicePending,
	"ordered":            domain.InvoicePending,
	"received":           domain.InvoicePaid,
	"partially received": domain.InvoicePaid,
	"partially_received": domain.InvoicePaid,
	"cancelled":          domain.InvoiceCancelled,
}

// MapPurchaseOrderStatus 未知状态一律 Pending
func MapPurchaseOrderStatus(v gjson.Result) domain.InvoiceStatus {
	switch v.Type {
	case gjson.Number:
		if s, ok := poStatusByCode[v.Int()]; ok {
			return s
		}
	case gjson.String:
		str := strings.TrimSpace(v.Str)
		// 状态码也可能以字符串下发
		if code, err := strconv.ParseInt(str, 10, 64); err == nil {
			if s, ok := poStatusByCode[code]; ok {
				return s
			}
			break
		}
		if s, ok := poStatusByName[strings.ToLower(str)]; ok {
			return s
		}
	}
	return domain.InvoicePending
}

// TransformPurchaseOrderToInvoice 纯函数：同一输入总是得到同一结果
func TransformPurchaseOrderToInvoice(po json.RawMessage) (*domain.Invoice, error) {
	if !gjson.ValidBytes(po) {
		return nil, domain.Validationf("Purchase order payload is not valid JSON")
	}
	r := gjson.ParseBytes(po)
	id := r.Get("id")
	if !r.IsObject() || !id.Exists() || id.String() == "" {
		return nil, domain.Validationf("Purchase order id is missing")
	}
	extID := id.String()

	inv := &domain.Invoice{
		InvoiceNumber: "PO-" + extID,
		UserName:      r.Get("vendor_name").String(),
		Amount:        money(r.Get("total_cost")),
		Status:        MapPurchaseOrderStatus(r.Get("status")),
		Source:        domain.SourceFreshservice,
		ExternalID:    &extID,
		RawData:       append(json.RawMessage(nil), po...),
		Items:         []domain.InvoiceItem{},
	}
	if inv.UserName == "" {
		inv.UserName = "Unknown Vendor"
	}
	if d := r.Get("expected_delivery_date").String(); d != "" {
		d = datePart(d)
		inv.DueDate = &d
	}
	if c := r.Get("created_at").String(); c != "" {
		inv.IssueDate = datePart(c)
	}
	r.Get("po_items").ForEach(func(_, it gjson.Result) bool {
		desc := it.Get("name").String()
		if desc == "" {
			desc = it.Get("description").String()
		}
		if desc == "" {
			desc = "Item"
		}
		qty := int(math.Round(it.Get("quantity").Float()))
		if qty <= 0 {
			qty = 1
		}
		inv.Items = append(inv.Items, domain.InvoiceItem{
			Description: desc,
			Quantity:    qty,
			UnitPrice:   money(it.Get("unit_cost")),
		})
		return true
	})
	return inv, nil
}

func money(v gjson.Result) decimal.Decimal {
	if !v.Exists() || v.Type == gjson.Null {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v.String()))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func datePart(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
