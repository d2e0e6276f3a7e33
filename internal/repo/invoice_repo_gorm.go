package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"invoicesys/internal/domain"
	"invoicesys/pkg/utils"
)

type InvoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepo(db *gorm.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

var _ domain.InvoiceRepository = (*InvoiceRepo)(nil)

func toInvoiceModel(inv *domain.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		UserID:         inv.UserID,
		UserName:       inv.UserName,
		Amount:         inv.Amount,
		Status:         string(inv.Status),
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		Source:         string(inv.Source),
		FreshserviceID: inv.ExternalID,
	}
	if len(inv.RawData) > 0 {
		raw := string(inv.RawData)
		m.RawData = &raw
	}
	return m
}

func (m *InvoiceModel) toDomain() domain.Invoice {
	inv := domain.Invoice{
		ID:            m.ID,
		InvoiceNumber: m.InvoiceNumber,
		UserID:        m.UserID,
		UserName:      m.UserName,
		Amount:        m.Amount,
		Status:        domain.InvoiceStatus(m.Status),
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		Source:        domain.InvoiceSource(m.Source),
		ExternalID:    m.FreshserviceID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Items:         []domain.InvoiceItem{},
	}
	if m.RawData != nil && json.Valid([]byte(*m.RawData)) {
		inv.RawData = json.RawMessage(*m.RawData)
	}
	return inv
}

func (m *InvoiceItemModel) toDomain() domain.InvoiceItem {
	return domain.InvoiceItem{
		ID: m.ID, InvoiceID: m.InvoiceID, Description: m.Description,
		Quantity: m.Quantity, UnitPrice: m.UnitPrice,
	}
}

// CreateWithItems 发票与明细同一事务；任何一步失败整体回滚
func (r *InvoiceRepo) CreateWithItems(ctx context.Context, inv *domain.Invoice) error {
	if inv.ID == "" {
		inv.ID = utils.NewID()
	}
	m := toInvoiceModel(inv)
	items := make([]InvoiceItemModel, 0, len(inv.Items))
	for i := range inv.Items {
		it := &inv.Items[i]
		if it.ID == "" {
			it.ID = utils.NewID()
		}
		it.InvoiceID = inv.ID
		items = append(items, InvoiceItemModel{
			ID: it.ID, InvoiceID: inv.ID, Description: it.Description,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, Position: i,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			if isDupKey(err) {
				return domain.ErrDuplicateInvoiceNumber
			}
			if isFKViolation(err) {
				return domain.Validationf("Linked user does not exist")
			}
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	inv.CreatedAt, inv.UpdatedAt = m.CreatedAt, m.UpdatedAt
	if inv.Items == nil {
		inv.Items = []domain.InvoiceItem{}
	}
	return nil
}

func (r *InvoiceRepo) find(ctx context.Context, query string, arg any) (*domain.Invoice, error) {
	var m InvoiceModel
	err := r.db.WithContext(ctx).Where(query, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	invs := []domain.Invoice{m.toDomain()}
	if err := r.attachItems(ctx, invs); err != nil {
		return nil, err
	}
	return &invs[0], nil
}

func (r *InvoiceRepo) FindByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.find(ctx, "id = ?", id)
}

func (r *InvoiceRepo) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return r.find(ctx, "invoice_number = ?", number)
}

func (r *InvoiceRepo) List(ctx context.Context) ([]domain.Invoice, error) {
	var ms []InvoiceModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Invoice, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toDomain())
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachItems 一次 IN 查询取全部明细，避免 N+1
func (r *InvoiceRepo) attachItems(ctx context.Context, invs []domain.Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(invs))
	idx := make(map[string]int, len(invs))
	for i := range invs {
		ids = append(ids, invs[i].ID)
		idx[invs[i].ID] = i
	}
	var items []InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return err
	}
	for i := range items {
		if j, ok := idx[items[i].InvoiceID]; ok {
			invs[j].Items = append(invs[j].Items, items[i].toDomain())
		}
	}
	return nil
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	res := r.db.WithContext(ctx).Model(&InvoiceModel{}).Where("id = ?", inv.ID).Updates(map[string]any{
		"user_id":    inv.UserID,
		"user_name":  inv.UserName,
		"amount":     inv.Amount,
		"status":     string(inv.Status),
		"issue_date": inv.IssueDate,
		"due_date":   inv.DueDate,
	})
	if res.Error != nil {
		if isFKViolation(res.Error) {
			return domain.Validationf("Linked user does not exist")
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// Delete 明细由外键级联；这里显式先删，外键未生效的库也保持一致
func (r *InvoiceRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&InvoiceItemModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&InvoiceModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvoiceNotFound
		}
		return nil
	})
}

type statusRow struct {
	Status string
	Count  int64
	Amount decimal.Decimal
}

func (r *InvoiceRepo) StatsByStatus(ctx context.Context) (map[domain.InvoiceStatus]domain.StatusStat, error) {
	var rows []statusRow
	if err := r.db.WithContext(ctx).Model(&InvoiceModel{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[domain.InvoiceStatus]domain.StatusStat, len(rows))
	for _, row := range rows {
		out[domain.InvoiceStatus(row.Status)] = domain.StatusStat{Count: row.Count, Amount: row.Amount}
	}
	return out, nil
}
