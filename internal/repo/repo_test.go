package repo

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"invoicesys/internal/core/database"
	"invoicesys/internal/domain"
	"invoicesys/pkg/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "repo.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func mustCreateUser(t *testing.T, r *UserRepo, email string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID: utils.NewID(), Name: "User " + email, Email: email, PasswordHash: "x",
		Role: domain.RoleUser, Status: domain.UserActive,
	}
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestUserRepo_CRUD(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(newTestDB(t))

	u := mustCreateUser(t, r, "alice@x.com")
	assert.False(t, u.CreatedAt.IsZero())

	got, err := r.FindByEmail(ctx, "  ALICE@X.COM ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "x", got.PasswordHash)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	dup := &domain.User{ID: utils.NewID(), Name: "Other", Email: "alice@x.com", PasswordHash: "y"}
	assert.ErrorIs(t, r.Create(ctx, dup), domain.ErrDuplicateEmail)
	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got.Department = "Finance"
	got.Role = domain.RoleManager
	require.NoError(t, r.Update(ctx, got))
	require.NoError(t, r.UpdatePasswordHash(ctx, u.ID, "new-hash"))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, r.TouchLastLogin(ctx, u.ID, at))

	got, err = r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Finance", got.Department)
	assert.Equal(t, domain.RoleManager, got.Role)
	assert.Equal(t, "new-hash", got.PasswordHash)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].PasswordHash)

	require.NoError(t, r.Delete(ctx, u.ID))
	assert.ErrorIs(t, r.Delete(ctx, u.ID), domain.ErrNotFound)
	assert.ErrorIs(t, r.Update(ctx, got), domain.ErrNotFound)
}

func TestSessionRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepo(db)
	sessions := NewSessionRepo(db)
	u := mustCreateUser(t, users, "bob@x.com")

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	live := &domain.Session{ID: utils.NewID(), UserID: u.ID, Token: "live", ExpiresAt: now.Add(time.Hour)}
	dead := &domain.Session{ID: utils.NewID(), UserID: u.ID, Token: "dead", ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, dead))
	assert.ErrorIs(t, sessions.Create(ctx, &domain.Session{ID: utils.NewID(), UserID: u.ID, Token: "live", ExpiresAt: now}), domain.ErrConflict)

	id, err := sessions.FindIdentity(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.ID)
	assert.Equal(t, "bob@x.com", id.Email)

	_, err = sessions.FindIdentity(ctx, "dead", now)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	// 到期瞬间即失效
	_, err = sessions.FindIdentity(ctx, "live", now.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	n, err := sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = sessions.DeleteByToken(ctx, "live")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = sessions.DeleteByToken(ctx, "live")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestUserDelete_CascadesSessionsAndClearsInvoices(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepo(db)
	sessions := NewSessionRepo(db)
	invoices := NewInvoiceRepo(db)

	u := mustCreateUser(t, users, "carol@x.com")
	now := time.Now().UTC()
	require.NoError(t, sessions.Create(ctx, &domain.Session{ID: utils.NewID(), UserID: u.ID, Token: "t1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, sessions.Create(ctx, &domain.Session{ID: utils.NewID(), UserID: u.ID, Token: "t2", ExpiresAt: now.Add(time.Hour)}))

	uid := u.ID
	inv := &domain.Invoice{InvoiceNumber: "INV-1", UserID: &uid, UserName: u.Name, Amount: decimal.NewFromInt(10), Status: domain.InvoicePending, IssueDate: "2026-01-01", Source: domain.SourceManual}
	require.NoError(t, invoices.CreateWithItems(ctx, inv))

	require.NoError(t, users.Delete(ctx, u.ID))

	var left int64
	require.NoError(t, db.Model(&SessionModel{}).Where("user_id = ?", u.ID).Count(&left).Error)
	assert.EqualValues(t, 0, left, "sessions cascade")
	_, err := sessions.FindIdentity(ctx, "t1", now)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	got, err := invoices.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UserID, "invoice kept, user cleared")
	assert.Equal(t, u.Name, got.UserName)
}

func TestInvoiceRepo_ItemsAndCascade(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewInvoiceRepo(db)

	raw := json.RawMessage(`{"id":42,"vendor_name":"Acme"}`)
	inv := &domain.Invoice{
		InvoiceNumber: "INV-100", Amount: decimal.RequireFromString("30.50"),
		Status: domain.InvoicePaid, IssueDate: "2026-02-01", Source: domain.SourceManual, RawData: raw,
		Items: []domain.InvoiceItem{
			{Description: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
			{Description: "B", Quantity: 2, UnitPrice: decimal.RequireFromString("5.25")},
			{Description: "C", Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		},
	}
	require.NoError(t, r.CreateWithItems(ctx, inv))

	got, err := r.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{got.Items[0].Description, got.Items[1].Description, got.Items[2].Description})
	assert.True(t, decimal.RequireFromString("5.25").Equal(got.Items[1].UnitPrice))
	assert.JSONEq(t, string(raw), string(got.RawData))
	assert.True(t, decimal.RequireFromString("30.5").Equal(got.Amount))

	byNum, err := r.FindByNumber(ctx, "INV-100")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byNum.ID)

	dup := &domain.Invoice{InvoiceNumber: "INV-100", Amount: decimal.Zero, Status: domain.InvoicePending, IssueDate: "2026-02-01", Source: domain.SourceManual,
		Items: []domain.InvoiceItem{{Description: "X", Quantity: 1, UnitPrice: decimal.Zero}}}
	assert.ErrorIs(t, r.CreateWithItems(ctx, dup), domain.ErrDuplicateInvoiceNumber)
	var items int64
	require.NoError(t, db.Model(&InvoiceItemModel{}).Count(&items).Error)
	assert.EqualValues(t, 3, items, "failed create leaves no items behind")

	require.NoError(t, r.Delete(ctx, inv.ID))
	require.NoError(t, db.Model(&InvoiceItemModel{}).Where("invoice_id = ?", inv.ID).Count(&items).Error)
	assert.EqualValues(t, 0, items)
	assert.ErrorIs(t, r.Delete(ctx, inv.ID), domain.ErrNotFound)
}

func TestInvoiceRepo_ItemFailureRollsBackInvoice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewInvoiceRepo(db)

	inv := &domain.Invoice{
		InvoiceNumber: "INV-ROLLBACK", Amount: decimal.NewFromInt(2),
		Status: domain.InvoicePending, IssueDate: "2026-02-01", Source: domain.SourceManual,
		Items: []domain.InvoiceItem{
			{ID: "dup", Description: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
			{ID: "dup", Description: "B", Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
		},
	}
	require.Error(t, r.CreateWithItems(ctx, inv))

	var n int64
	require.NoError(t, db.Model(&InvoiceModel{}).Where("invoice_number = ?", "INV-ROLLBACK").Count(&n).Error)
	assert.EqualValues(t, 0, n, "invoice row rolled back with its items")
	require.NoError(t, db.Model(&InvoiceItemModel{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
	_, err := r.FindByNumber(ctx, "INV-ROLLBACK")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoiceRepo_CascadeFromForeignKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewInvoiceRepo(db)
	inv := &domain.Invoice{InvoiceNumber: "INV-FK", Amount: decimal.NewFromInt(1), Status: domain.InvoicePending, IssueDate: "2026-02-01", Source: domain.SourceManual,
		Items: []domain.InvoiceItem{{Description: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}}
	require.NoError(t, r.CreateWithItems(ctx, inv))

	// 绕过仓储直接删父行，验证外键级联
	require.NoError(t, db.Exec("DELETE FROM invoices WHERE id = ?", inv.ID).Error)
	var items int64
	require.NoError(t, db.Model(&InvoiceItemModel{}).Count(&items).Error)
	assert.EqualValues(t, 0, items)
}

func TestInvoiceRepo_ListUpdateStats(t *testing.T) {
	ctx := context.Background()
	r := NewInvoiceRepo(newTestDB(t))

	mk := func(num string, status domain.InvoiceStatus, amount string, items int) *domain.Invoice {
		inv := &domain.Invoice{InvoiceNumber: num, Amount: decimal.RequireFromString(amount), Status: status, IssueDate: "2026-03-01", Source: domain.SourceManual}
		for i := 0; i < items; i++ {
			inv.Items = append(inv.Items, domain.InvoiceItem{Description: "line", Quantity: 1, UnitPrice: decimal.NewFromInt(1)})
		}
		require.NoError(t, r.CreateWithItems(ctx, inv))
		return inv
	}
	a := mk("A-1", domain.InvoicePending, "100", 2)
	mk("A-2", domain.InvoicePaid, "50.5", 0)
	mk("A-3", domain.InvoicePaid, "20", 1)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	counts := map[string]int{}
	for _, inv := range list {
		counts[inv.InvoiceNumber] = len(inv.Items)
		assert.NotNil(t, inv.Items)
	}
	assert.Equal(t, map[string]int{"A-1": 2, "A-2": 0, "A-3": 1}, counts)

	a.Status = domain.InvoiceOverdue
	due := "2026-04-01"
	a.DueDate = &due
	require.NoError(t, r.Update(ctx, a))
	got, err := r.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceOverdue, got.Status)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, due, *got.DueDate)

	by, err := r.StatsByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, by[domain.InvoicePaid].Count)
	assert.True(t, decimal.RequireFromString("70.5").Equal(by[domain.InvoicePaid].Amount))
	assert.EqualValues(t, 1, by[domain.InvoiceOverdue].Count)
	_, ok := by[domain.InvoicePending]
	assert.False(t, ok)
}
