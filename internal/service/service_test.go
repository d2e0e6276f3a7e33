package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"invoicesys/internal/core/cache"
	"invoicesys/internal/core/database"
	"invoicesys/internal/domain"
	"invoicesys/internal/repo"
)

type fixture struct {
	users    *UserService
	sessions *SessionService
	auth     *AuthService
	invoices *InvoiceService
	clock    *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newFixture(t *testing.T, c *cache.Cache) *fixture {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "svc.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))

	log := zap.NewNop()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	userRepo, sessRepo := repo.NewUserRepo(db), repo.NewSessionRepo(db)

	users := NewUserService(userRepo, sessRepo, log)
	users.now = clock.Now
	sessions := NewSessionService(sessRepo, time.Hour, log)
	sessions.now = clock.Now
	invoices := NewInvoiceService(repo.NewInvoiceRepo(db), c, time.Minute, log)
	invoices.now = clock.Now

	return &fixture{
		users: users, sessions: sessions, invoices: invoices,
		auth: NewAuthService(users, sessions), clock: clock,
	}
}

func register(t *testing.T, f *fixture, email string, role domain.Role) *AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), domain.NewUser{
		Name: "Test " + string(role), Email: email, Password: "secret1", Role: role,
	})
	require.NoError(t, err)
	return res
}

func TestRegister_DuplicateEmailIgnoresCase(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := register(t, f, "Alice@Example.com", domain.RoleUser)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, domain.UserActive, res.User.Status)
	assert.Contains(t, res.User.Avatar, "ui-avatars.com")
	assert.Len(t, res.Token, 64)

	_, err := f.auth.Register(ctx, domain.NewUser{Name: "Al", Email: "ALICE@example.COM ", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.ErrorIs(t, err, domain.ErrConflict)

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	cases := []domain.NewUser{
		{Name: "A", Email: "a@x.io", Password: "secret1"},
		{Name: "Bob", Email: "nope", Password: "secret1"},
		{Name: "Bob", Email: "b@x.io", Password: "123"},
		{Name: "Bob", Email: "b@x.io", Password: "secret1", Role: "Root"},
	}
	for _, in := range cases {
		_, err := f.auth.Register(ctx, in)
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", in)
	}
	_, err := f.auth.Register(ctx, domain.NewUser{Name: "Bob", Email: "b@x.io", Password: "123"})
	assert.ErrorIs(t, err, domain.ErrWeakSecret)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	register(t, f, "bob@example.com", domain.RoleUser)

	_, err := f.auth.Login(ctx, "", "")
	assert.EqualError(t, err, "Please fill in all fields")
	_, err = f.auth.Login(ctx, "ghost@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	_, err = f.auth.Login(ctx, "bob@example.com", "wrong-pw")
	assert.ErrorIs(t, err, domain.ErrIncorrectPassword)

	res, err := f.auth.Login(ctx, " BOB@example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLogin)
	assert.True(t, res.User.LastLogin.Equal(f.clock.Now()))
	assert.Equal(t, f.clock.Now().Add(time.Hour), res.ExpiresAt)
}

func TestSession_ExpiryAndSweep(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := register(t, f, "carol@example.com", domain.RoleManager)

	id, err := f.sessions.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, id.ID)
	assert.Equal(t, domain.RoleManager, id.Role)

	f.clock.Advance(time.Hour)
	_, err = f.sessions.Validate(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid, "expiry instant is already invalid")

	n, err := f.sessions.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSession_RevokeIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := register(t, f, "dan@example.com", domain.RoleUser)
	other, err := f.auth.Login(ctx, "dan@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, res.Token))
	require.NoError(t, f.auth.Logout(ctx, res.Token))
	require.NoError(t, f.auth.Logout(ctx, "never-issued"))

	_, err = f.sessions.Validate(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.sessions.Validate(ctx, other.Token)
	assert.NoError(t, err, "other sessions of the same user survive")

	_, err = f.sessions.Validate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := register(t, f, "erin@example.com", domain.RoleUser)

	err := f.users.ChangePassword(ctx, res.User.ID, "bad", "newsecret")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	err = f.users.ChangePassword(ctx, res.User.ID, "secret1", "123")
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, f.users.ChangePassword(ctx, res.User.ID, "secret1", "newsecret"))
	_, err = f.auth.Login(ctx, "erin@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrIncorrectPassword)
	_, err = f.auth.Login(ctx, "erin@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestDeleteUser_CascadesSessionsAndDetachesInvoices(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin := register(t, f, "admin@example.com", domain.RoleAdmin)
	victim := register(t, f, "victim@example.com", domain.RoleUser)

	inv, err := f.invoices.Create(ctx, &domain.Invoice{
		UserID: &victim.User.ID, UserName: victim.User.Name, Amount: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.users.Delete(ctx, admin.User.ID, admin.User.ID), domain.ErrSelfDeletion)
	require.NoError(t, f.users.Delete(ctx, admin.User.ID, victim.User.ID))
	assert.ErrorIs(t, f.users.Delete(ctx, admin.User.ID, victim.User.ID), domain.ErrNotFound)

	_, err = f.sessions.Validate(ctx, victim.Token)
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	got, err := f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UserID)
	assert.Equal(t, victim.User.Name, got.UserName)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	res := register(t, f, "fay@example.com", domain.RoleUser)

	name, role := "Fay Wong", domain.RoleManager
	u, err := f.users.Update(ctx, res.User.ID, domain.UserPatch{Name: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)
	assert.Contains(t, u.Avatar, "Fay+Wong")

	id, err := f.sessions.Validate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, id.Role, "role is read fresh on every validation")

	_, err = f.users.Update(ctx, "missing", domain.UserPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoice_CreateWithItems(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	inv, err := f.invoices.Create(ctx, &domain.Invoice{
		UserName: "Acme",
		Amount:   decimal.RequireFromString("30.50"),
		Items: []domain.InvoiceItem{
			{Description: "Keyboard", Quantity: 2, UnitPrice: decimal.RequireFromString("10.25")},
			{Description: "Cable", UnitPrice: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^INV-\d+-[0-9a-f]{4}$`, inv.InvoiceNumber)
	assert.Equal(t, domain.InvoicePending, inv.Status)
	assert.Equal(t, domain.SourceManual, inv.Source)
	assert.Equal(t, "2025-03-01", inv.IssueDate)

	got, err := f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Keyboard", got.Items[0].Description)
	assert.Equal(t, 1, got.Items[1].Quantity)
	for _, it := range got.Items {
		assert.Equal(t, inv.ID, it.InvoiceID)
	}

	_, err = f.invoices.Create(ctx, &domain.Invoice{InvoiceNumber: inv.InvoiceNumber})
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoiceNumber)

	_, err = f.invoices.Create(ctx, &domain.Invoice{
		Items: []domain.InvoiceItem{{Description: ""}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, err := f.invoices.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "failed creates leave nothing behind")
}

func TestInvoice_UpdateDeleteNotFound(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv, err := f.invoices.Create(ctx, &domain.Invoice{InvoiceNumber: "INV-1"})
	require.NoError(t, err)

	paid, due := domain.InvoicePaid, "2025-04-01"
	up, err := f.invoices.Update(ctx, inv.ID, domain.InvoicePatch{Status: &paid, DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, up.Status)
	require.NotNil(t, up.DueDate)
	assert.Equal(t, due, *up.DueDate)

	_, err = f.invoices.Update(ctx, "nope", domain.InvoicePatch{Status: &paid})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.invoices.Delete(ctx, inv.ID))
	assert.ErrorIs(t, f.invoices.Delete(ctx, inv.ID), domain.ErrNotFound)
	_, err = f.invoices.Get(ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestInvoice_StatsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	f := newFixture(t, c)
	ctx := context.Background()

	_, err := f.invoices.Create(ctx, &domain.Invoice{Amount: decimal.NewFromInt(100), Status: domain.InvoicePaid})
	require.NoError(t, err)
	_, err = f.invoices.Create(ctx, &domain.Invoice{Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	st, err := f.invoices.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Total)
	assert.EqualValues(t, 1, st.Paid)
	assert.EqualValues(t, 1, st.Pending)
	assert.True(t, st.TotalAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, mr.Exists(statsCacheKey))

	_, err = f.invoices.Create(ctx, &domain.Invoice{Amount: decimal.NewFromInt(5), Status: domain.InvoiceOverdue})
	require.NoError(t, err)
	assert.False(t, mr.Exists(statsCacheKey), "writes drop the cached stats")

	st, err = f.invoices.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, st.Total)
	assert.EqualValues(t, 1, st.Overdue)
}

func TestSeedDemoAccounts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := SeedDemoAccounts(ctx, f.users, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, created)
	created, err = SeedDemoAccounts(ctx, f.users, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, created)

	res, err := f.auth.Login(ctx, "admin@invoicesys.com", "admin123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.User.Role)
	assert.Equal(t, "IT", res.User.Department)
}

type countingSweeper struct {
	mu sync.Mutex
	n  int
}

func (c *countingSweeper) SweepExpired(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return 0, nil
}

func (c *countingSweeper) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	cs := &countingSweeper{}
	w := NewSweeper(cs, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	assert.Eventually(t, func() bool { return cs.calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type blockingSweeper struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSweeper) SweepExpired(context.Context) (int64, error) {
	b.entered <- struct{}{}
	<-b.release
	return 0, nil
}

func TestSweeper_StartWaitsForInFlightSweep(t *testing.T) {
	bs := &blockingSweeper{entered: make(chan struct{}, 1), release: make(chan struct{})}
	w := NewSweeper(bs, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := w.Start(ctx)

	<-bs.entered
	cancel()
	select {
	case <-done:
		t.Fatal("done closed while a sweep was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(bs.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
