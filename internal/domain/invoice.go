package domain

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "Pending"
	InvoicePaid      InvoiceStatus = "Paid"
	InvoiceOverdue   InvoiceStatus = "Overdue"
	InvoiceCancelled InvoiceStatus = "Cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type InvoiceSource string

const (
	SourceManual       InvoiceSource = "manual"
	SourceFreshservice InvoiceSource = "freshservice"
)

const DateLayout = "2006-01-02"

type InvoiceItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoiceId"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type Invoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	UserID        *string         `json:"userId"`
	UserName      string          `json:"userName"`
	Amount        decimal.Decimal `json:"amount"`
	Status        InvoiceStatus   `json:"status"`
	IssueDate     string          `json:"issueDate"`
	DueDate       *string         `json:"dueDate"`
	Source        InvoiceSource   `json:"source"`
	ExternalID    *string         `json:"freshserviceId"`
	RawData       json.RawMessage `json:"rawData"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Items         []InvoiceItem   `json:"items"`
}

// Normalize 补默认值并校验；在任何写入之前调用
func (inv *Invoice) Normalize(now time.Time) error {
	inv.InvoiceNumber = strings.TrimSpace(inv.InvoiceNumber)
	if inv.Amount.IsNegative() {
		return Validationf("Amount must not be negative")
	}
	if inv.Status == "" {
		inv.Status = InvoicePending
	}
	if !inv.Status.Valid() {
		return Validationf("Invalid invoice status %q", inv.Status)
	}
	if inv.Source == "" {
		inv.Source = SourceManual
	}
	if inv.IssueDate == "" {
		inv.IssueDate = now.Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, inv.IssueDate); err != nil {
		return Validationf("Invalid issue date %q", inv.IssueDate)
	}
	if inv.DueDate != nil {
		if *inv.DueDate == "" {
			inv.DueDate = nil
		} else if _, err := time.Parse(DateLayout, *inv.DueDate); err != nil {
			return Validationf("Invalid due date %q", *inv.DueDate)
		}
	}
	if inv.UserID != nil && *inv.UserID == "" {
		inv.UserID = nil
	}
	if len(inv.RawData) > 0 && !json.Valid(inv.RawData) {
		return Validationf("Raw data must be valid JSON")
	}
	for i := range inv.Items {
		it := &inv.Items[i]
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" {
			return Validationf("Item %d: description is required", i+1)
		}
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		if it.Quantity < 0 {
			return Validationf("Item %d: quantity must be positive", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return Validationf("Item %d: unit price must not be negative", i+1)
		}
	}
	return nil
}

type InvoicePatch struct {
	UserID    *string          `json:"userId"` // "" 表示解除关联
	UserName  *string          `json:"userName"`
	Amount    *decimal.Decimal `json:"amount"`
	Status    *InvoiceStatus   `json:"status"`
	IssueDate *string          `json:"issueDate"`
	DueDate   *string          `json:"dueDate"` // "" 表示清空
}

func (p InvoicePatch) Apply(inv *Invoice) error {
	if p.UserID != nil {
		if *p.UserID == "" {
			inv.UserID = nil
		} else {
			id := *p.UserID
			inv.UserID = &id
		}
	}
	if p.UserName != nil {
		inv.UserName = strings.TrimSpace(*p.UserName)
	}
	if p.Amount != nil {
		if p.Amount.IsNegative() {
			return Validationf("Amount must not be negative")
		}
		inv.Amount = *p.Amount
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return Validationf("Invalid invoice status %q", *p.Status)
		}
		inv.Status = *p.Status
	}
	if p.IssueDate != nil {
		if _, err := time.Parse(DateLayout, *p.IssueDate); err != nil {
			return Validationf("Invalid issue date %q", *p.IssueDate)
		}
		inv.IssueDate = *p.IssueDate
	}
	if p.DueDate != nil {
		if *p.DueDate == "" {
			inv.DueDate = nil
		} else {
			if _, err := time.Parse(DateLayout, *p.DueDate); err != nil {
				return Validationf("Invalid due date %q", *p.DueDate)
			}
			d := *p.DueDate
			inv.DueDate = &d
		}
	}
	return nil
}

type StatusStat struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type InvoiceStats struct {
	Total       int64                        `json:"total"`
	TotalAmount decimal.Decimal              `json:"totalAmount"`
	Paid        int64                        `json:"paid"`
	Pending     int64                        `json:"pending"`
	Overdue     int64                        `json:"overdue"`
	Cancelled   int64                        `json:"cancelled"`
	ByStatus    map[InvoiceStatus]StatusStat `json:"byStatus"`
}

// BuildStats 由按状态分组的结果汇总
func BuildStats(by map[InvoiceStatus]StatusStat) InvoiceStats {
	st := InvoiceStats{TotalAmount: decimal.Zero, ByStatus: map[InvoiceStatus]StatusStat{}}
	for status, s := range by {
		st.ByStatus[status] = s
		st.Total += s.Count
		st.TotalAmount = st.TotalAmount.Add(s.Amount)
		switch status {
		case InvoicePaid:
			st.Paid = s.Count
		case InvoicePending:
			st.Pending = s.Count
		case InvoiceOverdue:
			st.Overdue = s.Count
		case InvoiceCancelled:
			st.Cancelled = s.Count
		}
	}
	return st
}

type InvoiceRepository interface {
	// CreateWithItems 在同一事务内写发票与明细
	CreateWithItems(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id string) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id string) error
	StatsByStatus(ctx context.Context) (map[InvoiceStatus]StatusStat, error)
}
