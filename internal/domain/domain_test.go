package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCategories(t *testing.T) {
	assert.ErrorIs(t, ErrDuplicateEmail, ErrConflict)
	assert.ErrorIs(t, ErrWeakSecret, ErrValidation)
	assert.ErrorIs(t, ErrSessionInvalid, ErrUnauthenticated)

	wrapped := fmt.Errorf("create user: %w", ErrDuplicateEmail)
	assert.Equal(t, ErrConflict, Kind(wrapped))
	assert.Equal(t, "Email already registered", Message(wrapped))

	assert.Nil(t, Kind(errors.New("disk on fire")))
	assert.Equal(t, "internal error", Message(errors.New("disk on fire")))
	assert.Equal(t, "not found", Message(fmt.Errorf("x: %w", ErrNotFound)))
}

func TestUserPatch_Apply(t *testing.T) {
	u := &User{Name: "Alice", Avatar: AvatarURL("Alice"), Department: "Sales", Role: RoleUser, Status: UserActive}

	dept := "IT"
	require.NoError(t, UserPatch{Department: &dept}.Apply(u))
	assert.Equal(t, "IT", u.Department)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, AvatarURL("Alice"), u.Avatar)

	name := "Alice Smith"
	require.NoError(t, UserPatch{Name: &name}.Apply(u))
	assert.Equal(t, "https://ui-avatars.com/api/?name=Alice%20Smith&background=2C5CC5&color=fff", u.Avatar)

	bad := Role("Root")
	assert.ErrorIs(t, UserPatch{Role: &bad}.Apply(u), ErrValidation)
	short := " a "
	assert.ErrorIs(t, UserPatch{Name: &short}.Apply(u), ErrValidation)
}

func TestInvoice_Normalize(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	empty := ""
	inv := &Invoice{
		Amount:  decimal.RequireFromString("12.50"),
		DueDate: &empty,
		Items:   []InvoiceItem{{Description: " Widget ", UnitPrice: decimal.NewFromInt(5)}},
	}
	require.NoError(t, inv.Normalize(now))
	assert.Equal(t, InvoicePending, inv.Status)
	assert.Equal(t, SourceManual, inv.Source)
	assert.Equal(t, "2026-03-04", inv.IssueDate)
	assert.Nil(t, inv.DueDate)
	assert.Equal(t, 1, inv.Items[0].Quantity)
	assert.Equal(t, "Widget", inv.Items[0].Description)

	assert.ErrorIs(t, (&Invoice{Status: "Lost"}).Normalize(now), ErrValidation)
	assert.ErrorIs(t, (&Invoice{Amount: decimal.NewFromInt(-1)}).Normalize(now), ErrValidation)
	assert.ErrorIs(t, (&Invoice{IssueDate: "04/03/2026"}).Normalize(now), ErrValidation)
	assert.ErrorIs(t, (&Invoice{RawData: []byte("{nope")}).Normalize(now), ErrValidation)
	assert.ErrorIs(t, (&Invoice{Items: []InvoiceItem{{Description: ""}}}).Normalize(now), ErrValidation)
}

func TestInvoicePatch_Apply(t *testing.T) {
	uid := "u1"
	due := "2026-05-01"
	inv := &Invoice{UserID: &uid, Status: InvoicePending, IssueDate: "2026-04-01", DueDate: &due}

	none := ""
	paid := InvoicePaid
	amt := decimal.RequireFromString("99.99")
	require.NoError(t, InvoicePatch{UserID: &none, Status: &paid, Amount: &amt, DueDate: &none}.Apply(inv))
	assert.Nil(t, inv.UserID)
	assert.Nil(t, inv.DueDate)
	assert.Equal(t, InvoicePaid, inv.Status)
	assert.True(t, amt.Equal(inv.Amount))

	lost := InvoiceStatus("Lost")
	assert.ErrorIs(t, InvoicePatch{Status: &lost}.Apply(inv), ErrValidation)
}

func TestBuildStats(t *testing.T) {
	st := BuildStats(map[InvoiceStatus]StatusStat{
		InvoicePaid:    {Count: 2, Amount: decimal.RequireFromString("150.25")},
		InvoicePending: {Count: 1, Amount: decimal.NewFromInt(10)},
		InvoiceOverdue: {Count: 3, Amount: decimal.NewFromInt(30)},
	})
	assert.EqualValues(t, 6, st.Total)
	assert.True(t, decimal.RequireFromString("190.25").Equal(st.TotalAmount))
	assert.EqualValues(t, 2, st.Paid)
	assert.EqualValues(t, 1, st.Pending)
	assert.EqualValues(t, 3, st.Overdue)
	assert.EqualValues(t, 0, st.Cancelled)
}

func TestAvatarURL_EncodesLikeURIComponent(t *testing.T) {
	assert.Equal(t, "https://ui-avatars.com/api/?name=Jo%20Ann%2BCo&background=2C5CC5&color=fff", AvatarURL("Jo Ann+Co"))
}
