package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoicesys/internal/domain"
	"invoicesys/internal/service"
	"invoicesys/internal/transport/http/ez"
)

type InvoiceHandler struct {
	invoices *service.InvoiceService
	log      *zap.Logger
}

func NewInvoiceHandler(invoices *service.InvoiceService, l *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, log: l}
}

type itemIn struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type invoiceIn struct {
	InvoiceNumber  string               `json:"invoiceNumber"`
	UserID         *string              `json:"userId"`
	UserName       string               `json:"userName"`
	Amount         *decimal.Decimal     `json:"amount"` // 省略时按明细合计
	Status         domain.InvoiceStatus `json:"status"`
	IssueDate      string               `json:"issueDate"`
	DueDate        *string              `json:"dueDate"`
	Source         domain.InvoiceSource `json:"source"`
	FreshserviceID *string              `json:"freshserviceId"`
	RawData        json.RawMessage      `json:"rawData"`
	Items          []itemIn             `json:"items"`
}

func (in *invoiceIn) toDomain() *domain.Invoice {
	inv := &domain.Invoice{
		InvoiceNumber: in.InvoiceNumber,
		UserID:        in.UserID,
		UserName:      in.UserName,
		Status:        in.Status,
		IssueDate:     in.IssueDate,
		DueDate:       in.DueDate,
		Source:        in.Source,
		ExternalID:    in.FreshserviceID,
		Items:         make([]domain.InvoiceItem, 0, len(in.Items)),
	}
	if len(in.RawData) > 0 && string(in.RawData) != "null" {
		inv.RawData = in.RawData
	}
	sum := decimal.Zero
	for _, it := range in.Items {
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
		inv.Items = append(inv.Items, domain.InvoiceItem{
			Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice,
		})
	}
	if in.Amount != nil {
		inv.Amount = *in.Amount
	} else {
		inv.Amount = sum
	}
	return inv
}

type invoicesOut struct {
	Invoices []domain.Invoice `json:"invoices"`
}

type invoiceOut struct {
	Invoice *domain.Invoice `json:"invoice"`
}

type statsOut struct {
	Stats *domain.InvoiceStats `json:"stats"`
}

func (h *InvoiceHandler) MountAPI(_, authed *gin.RouterGroup) {
	e := ez.New(authed, h.log)

	ez.RegisterAction(e, ez.Action[struct{}, invoicesOut]{
		Method: http.MethodGet,
		Path:   "/invoices",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (invoicesOut, error) {
			invs, err := h.invoices.List(c.Request.Context())
			return invoicesOut{Invoices: invs}, err
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, statsOut]{
		Method: http.MethodGet,
		Path:   "/invoices/stats",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (statsOut, error) {
			st, err := h.invoices.Stats(c.Request.Context())
			return statsOut{Stats: st}, err
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, invoiceOut]{
		Method: http.MethodGet,
		Path:   "/invoices/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (invoiceOut, error) {
			inv, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
			return invoiceOut{Invoice: inv}, err
		},
	})
	ez.RegisterAction(e, ez.Action[invoiceIn, invoiceOut]{
		Method: http.MethodPost,
		Path:   "/invoices",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *invoiceIn) (invoiceOut, error) {
			inv, err := h.invoices.Create(c.Request.Context(), in.toDomain())
			return invoiceOut{Invoice: inv}, err
		},
	})
	ez.RegisterAction(e, ez.Action[domain.InvoicePatch, invoiceOut]{
		Method: http.MethodPut,
		Path:   "/invoices/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *domain.InvoicePatch) (invoiceOut, error) {
			inv, err := h.invoices.Update(c.Request.Context(), c.Param("id"), *in)
			return invoiceOut{Invoice: inv}, err
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, messageOut]{
		Method: http.MethodDelete,
		Path:   "/invoices/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (messageOut, error) {
			if err := h.invoices.Delete(c.Request.Context(), c.Param("id")); err != nil {
				return messageOut{}, err
			}
			return messageOut{Message: "Invoice deleted successfully"}, nil
		},
	})
}
