package repository_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicely/db"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/pg"
	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/invoice"
	"github.com/dmitrymomot/invoicely/svc/repository"
)

// store is the union of the interfaces both implementations satisfy.
type store interface {
	invoice.Storage
	CreateUser(ctx context.Context, u *account.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*account.User, error)
	GetUserByEmail(ctx context.Context, email string) (*account.User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*account.User, error)
	GetUserBySubscriptionID(ctx context.Context, subscriptionID string) (*account.User, error)
	ResetInvoiceCounters(ctx context.Context) (int64, error)
	UpdateBilling(ctx context.Context, u *account.User) error
	SetCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
	UpdatePayoutAccount(ctx context.Context, userID uuid.UUID, accountID string, status account.PayoutStatus, onboardingURL string) error
}

var (
	_ store = (*repository.Memory)(nil)
	_ store = (*repository.Postgres)(nil)
)

func stores(t *testing.T) map[string]func(t *testing.T) store {
	t.Helper()
	out := map[string]func(t *testing.T) store{
		"memory": func(*testing.T) store { return repository.NewMemory() },
	}
	url := os.Getenv("INVOICELY_TEST_PG_URL")
	if url == "" {
		return out
	}

	ctx := context.Background()
	pool, err := pg.Connect(ctx, pg.Config{ConnectionString: url, MaxConns: 10, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool, db.Migrations(), pg.Config{MigrationsTable: "schema_migrations"}, logger.Discard()))
	out["postgres"] = func(*testing.T) store { return repository.NewPostgres(pool) }
	return out
}

var epoch = time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)

func newUser(t *testing.T, s store, mutate func(*account.User)) *account.User {
	t.Helper()
	u := &account.User{
		ID:           uuid.New(),
		Name:         "Acme",
		Email:        uuid.NewString() + "@acme.test",
		PasswordHash: "hash",
		Plan:         account.PlanFree,
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func newInvoice(userID uuid.UUID, status invoice.Status) *invoice.Invoice {
	items := []invoice.Item{{ID: "1", Description: "Design", Quantity: decimal.NewFromInt(2), Rate: decimal.RequireFromString("50.25")}}
	totals := invoice.ComputeTotals(items, decimal.NewFromInt(10))
	return &invoice.Invoice{
		ID:          uuid.New(),
		Slug:        uuid.NewString()[:8],
		UserID:      userID,
		ClientName:  "Client",
		ClientEmail: "client@example.com",
		Items:       items,
		Subtotal:    totals.Subtotal,
		TaxRate:     decimal.NewFromInt(10),
		Tax:         totals.Tax,
		Total:       totals.Total,
		Currency:    "usd",
		Status:      status,
		CreatedAt:   epoch,
		UpdatedAt:   epoch,
	}
}

func TestStore_Users(t *testing.T) {
	t.Parallel()

	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := open(t)
			ctx := context.Background()
			u := newUser(t, s, nil)

			got, err := s.GetUserByEmail(ctx, u.Email)
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, account.PlanFree, got.Plan)
			assert.Equal(t, account.PayoutNotConnected, got.ConnectedAccountStatus)

			dup := &account.User{ID: uuid.New(), Name: "Other", Email: u.Email, PasswordHash: "x", Plan: account.PlanFree, CreatedAt: epoch, UpdatedAt: epoch}
			assert.ErrorIs(t, s.CreateUser(ctx, dup), account.ErrEmailTaken)

			_, err = s.GetUserByID(ctx, uuid.New())
			assert.ErrorIs(t, err, account.ErrUserNotFound)
			_, err = s.GetUserByCustomerID(ctx, "")
			assert.ErrorIs(t, err, account.ErrUserNotFound)

			customer := "cus_" + uuid.NewString()
			sub := "sub_" + uuid.NewString()
			require.NoError(t, s.SetCustomerID(ctx, u.ID, customer))
			end := epoch.Add(30 * 24 * time.Hour)
			got.CustomerID = customer
			got.Plan = account.PlanMonthly
			got.SubscriptionStatus = account.SubscriptionActive
			got.SubscriptionID = sub
			got.PriceID = "price_m"
			got.PeriodStart = &epoch
			got.PeriodEnd = &end
			got.UpdatedAt = epoch.Add(time.Minute)
			require.NoError(t, s.UpdateBilling(ctx, got))

			bySub, err := s.GetUserBySubscriptionID(ctx, sub)
			require.NoError(t, err)
			assert.Equal(t, account.PlanMonthly, bySub.Plan)
			assert.Equal(t, account.SubscriptionActive, bySub.SubscriptionStatus)
			require.NotNil(t, bySub.PeriodEnd)
			assert.True(t, end.Equal(*bySub.PeriodEnd))

			byCustomer, err := s.GetUserByCustomerID(ctx, customer)
			require.NoError(t, err)
			assert.Equal(t, u.ID, byCustomer.ID)

			acct := "acct_" + uuid.NewString()
			require.NoError(t, s.UpdatePayoutAccount(ctx, u.ID, acct, account.PayoutPending, "https://connect.test"))
			got, err = s.GetUserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, acct, got.ConnectedAccountID)
			assert.Equal(t, account.PayoutPending, got.ConnectedAccountStatus)
			assert.Equal(t, "https://connect.test", got.OnboardingURL)
		})
	}
}

func TestStore_InsertInvoice(t *testing.T) {
	t.Parallel()

	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := open(t)
			ctx := context.Background()
			u := newUser(t, s, nil)

			inv := newInvoice(u.ID, invoice.StatusUnpaid)
			require.NoError(t, s.InsertInvoice(ctx, inv, &invoice.UsageCharge{UserID: u.ID, Limit: 1}))

			got, err := s.GetInvoiceBySlug(ctx, inv.Slug)
			require.NoError(t, err)
			assert.True(t, inv.Total.Equal(got.Total))
			require.Len(t, got.Items, 1)
			assert.True(t, got.Items[0].Amount.Equal(decimal.RequireFromString("100.5")))

			owner, err := s.GetUserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, owner.InvoicesSentThisMonth)

			exists, err := s.SlugExists(ctx, inv.Slug)
			require.NoError(t, err)
			assert.True(t, exists)

			taken := newInvoice(u.ID, invoice.StatusUnpaid)
			taken.Slug = inv.Slug
			assert.ErrorIs(t, s.InsertInvoice(ctx, taken, nil), invoice.ErrSlugTaken)

			// The counter is at the limit, so the charge fails and nothing is stored.
			over := newInvoice(u.ID, invoice.StatusUnpaid)
			assert.ErrorIs(t, s.InsertInvoice(ctx, over, &invoice.UsageCharge{UserID: u.ID, Limit: 1}), invoice.ErrUsageLimitReached)
			_, err = s.GetInvoice(ctx, over.ID)
			assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)

			n, err := s.ResetInvoiceCounters(ctx)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, int64(1))
			owner, err = s.GetUserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Zero(t, owner.InvoicesSentThisMonth)
		})
	}
}

func TestStore_ConcurrentCharge(t *testing.T) {
	t.Parallel()

	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := open(t)
			u := newUser(t, s, nil)

			var (
				wg      sync.WaitGroup
				created atomic.Int32
			)
			for range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.InsertInvoice(context.Background(), newInvoice(u.ID, invoice.StatusUnpaid),
						&invoice.UsageCharge{UserID: u.ID, Limit: account.FreeMonthlyInvoiceLimit})
					if err == nil {
						created.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, account.FreeMonthlyInvoiceLimit, created.Load())
			owner, err := s.GetUserByID(context.Background(), u.ID)
			require.NoError(t, err)
			assert.Equal(t, account.FreeMonthlyInvoiceLimit, owner.InvoicesSentThisMonth)
		})
	}
}

func TestStore_StatusUpdates(t *testing.T) {
	t.Parallel()

	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := open(t)
			ctx := context.Background()
			u := newUser(t, s, nil)
			inv := newInvoice(u.ID, invoice.StatusDraft)
			require.NoError(t, s.InsertInvoice(ctx, inv, nil))

			ok, err := s.TransitionStatus(ctx, inv.ID, []invoice.Status{invoice.StatusDraft}, invoice.StatusUnpaid, epoch)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.TransitionStatus(ctx, inv.ID, []invoice.Status{invoice.StatusDraft}, invoice.StatusUnpaid, epoch)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SetCheckoutSession(ctx, inv.ID, "cs_1", epoch))

			sources := invoice.SourcesOf(invoice.TriggerPaymentConfirmed)
			first := epoch.Add(time.Hour)
			ok, err = s.MarkPaid(ctx, inv.ID, "pi_1", sources, first)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.MarkPaid(ctx, inv.ID, "pi_2", sources, first.Add(time.Hour))
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := s.GetInvoice(ctx, inv.ID)
			require.NoError(t, err)
			assert.Equal(t, invoice.StatusPaid, got.Status)
			require.NotNil(t, got.PaidAt)
			assert.True(t, first.Equal(*got.PaidAt))
			assert.Equal(t, "pi_1", got.PaymentIntentID)
			assert.Equal(t, "cs_1", got.CheckoutSessionID)

			_, err = s.MarkPaid(ctx, uuid.New(), "pi_x", sources, first)
			assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
			_, err = s.TransitionStatus(ctx, uuid.New(), sources, invoice.StatusPaid, first)
			assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
		})
	}
}

func TestStore_Queries(t *testing.T) {
	t.Parallel()

	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := open(t)
			ctx := context.Background()
			u := newUser(t, s, nil)

			old := newInvoice(u.ID, invoice.StatusPaid)
			old.CreatedAt = epoch.AddDate(0, -1, 0)
			paidAt := epoch
			old.PaidAt = &paidAt
			require.NoError(t, s.InsertInvoice(ctx, old, nil))

			due := epoch.Add(24 * time.Hour)
			fresh := newInvoice(u.ID, invoice.StatusUnpaid)
			fresh.DueDate = &due
			fresh.CreatedAt = epoch.Add(time.Minute)
			require.NoError(t, s.InsertInvoice(ctx, fresh, nil))

			list, err := s.ListInvoices(ctx, u.ID)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, fresh.ID, list[0].ID)

			monthStart := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			stats, err := s.InvoiceStats(ctx, u.ID, monthStart)
			require.NoError(t, err)
			assert.Equal(t, 2, stats.TotalInvoices)
			assert.Equal(t, 1, stats.PaidInvoices)
			assert.Equal(t, 1, stats.InvoicesThisMonth)
			assert.True(t, stats.TotalRevenue.Equal(old.Total))

			empty, err := s.InvoiceStats(ctx, uuid.New(), monthStart)
			require.NoError(t, err)
			assert.True(t, empty.TotalRevenue.IsZero())

			before, err := s.CountOverdue(ctx, epoch)
			require.NoError(t, err)
			after, err := s.CountOverdue(ctx, due.Add(time.Second))
			require.NoError(t, err)
			assert.Equal(t, before+1, after)
		})
	}
}
