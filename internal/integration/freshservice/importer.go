package freshservice

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"invoicesys/internal/domain"
)

type poFetcher interface {
	PurchaseOrderByID(ctx context.Context, id string) (json.RawMessage, error)
}

type invoiceStore interface {
	Exists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
}

type ImportFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type ImportReport struct {
	Imported []*domain.Invoice `json:"imported"`
	Skipped  []string          `json:"skipped"`
	Failed   []ImportFailure   `json:"failed"`
}

// Importer 拉取采购单并落库为发票；已存在的发票号跳过
type Importer struct {
	client   poFetcher
	invoices invoiceStore
	log      *zap.Logger
}

func NewImporter(client poFetcher, invoices invoiceStore, log *zap.Logger) *Importer {
	return &Importer{client: client, invoices: invoices, log: log.Named("freshservice.import")}
}

// Import 单条失败不影响其他条；只有存储内部错误才整体返回 error
func (im *Importer) Import(ctx context.Context, ids []string) (*ImportReport, error) {
	rep := &ImportReport{Imported: []*domain.Invoice{}, Skipped: []string{}, Failed: []ImportFailure{}}
	if len(ids) == 0 {
		return nil, domain.Validationf("No purchase order ids given")
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		raw, err := im.client.PurchaseOrderByID(ctx, id)
		if err != nil {
			rep.Failed = append(rep.Failed, ImportFailure{ID: id, Error: domain.Message(err)})
			continue
		}
		inv, err := TransformPurchaseOrderToInvoice(raw)
		if err != nil {
			rep.Failed = append(rep.Failed, ImportFailure{ID: id, Error: domain.Message(err)})
			continue
		}
		exists, err := im.invoices.Exists(ctx, inv.InvoiceNumber)
		if err != nil {
			return rep, err
		}
		if exists {
			rep.Skipped = append(rep.Skipped, inv.InvoiceNumber)
			continue
		}
		created, err := im.invoices.Create(ctx, inv)
		switch {
		case errors.Is(err, domain.ErrConflict):
			rep.Skipped = append(rep.Skipped, inv.InvoiceNumber)
		case errors.Is(err, domain.ErrValidation):
			rep.Failed = append(rep.Failed, ImportFailure{ID: id, Error: domain.Message(err)})
		case err != nil:
			return rep, err
		default:
			rep.Imported = append(rep.Imported, created)
		}
	}
	im.log.Info("import finished",
		zap.Int("imported", len(rep.Imported)), zap.Int("skipped", len(rep.Skipped)), zap.Int("failed", len(rep.Failed)))
	return rep, nil
}
