package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/invoice"
)

// Memory is an in-process store with the same constraints as Postgres:
// unique user email and invoice slug, and an atomic conditional usage
// increment. It is meant for tests and local runs.
type Memory struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*account.User
	invoices map[uuid.UUID]*invoice.Invoice
	slugs    map[string]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[uuid.UUID]*account.User),
		invoices: make(map[uuid.UUID]*invoice.Invoice),
		slugs:    make(map[string]uuid.UUID),
	}
}

func (m *Memory) CreateUser(_ context.Context, u *account.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return account.ErrEmailTaken
		}
	}
	m.users[u.ID] = cloneUser(u)
	return nil
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (*account.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*account.User, error) {
	return m.findUser(func(u *account.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *Memory) GetUserByCustomerID(_ context.Context, customerID string) (*account.User, error) {
	return m.findUser(func(u *account.User) bool { return customerID != "" && u.CustomerID == customerID })
}

func (m *Memory) GetUserBySubscriptionID(_ context.Context, subscriptionID string) (*account.User, error) {
	return m.findUser(func(u *account.User) bool { return subscriptionID != "" && u.SubscriptionID == subscriptionID })
}

func (m *Memory) findUser(match func(*account.User) bool) (*account.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, account.ErrUserNotFound
}

func (m *Memory) ResetInvoiceCounters(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, u := range m.users {
		if u.InvoicesSentThisMonth != 0 {
			u.InvoicesSentThisMonth = 0
			n++
		}
	}
	return n, nil
}

// UpdateBilling stores the plan, subscription and customer fields of u.
func (m *Memory) UpdateBilling(_ context.Context, u *account.User) error {
	return m.updateUser(u.ID, func(stored *account.User) {
		stored.Plan = u.Plan
		stored.SubscriptionStatus = u.SubscriptionStatus
		stored.PeriodStart = cloneTime(u.PeriodStart)
		stored.PeriodEnd = cloneTime(u.PeriodEnd)
		stored.CancelAtPeriodEnd = u.CancelAtPeriodEnd
		stored.CustomerID = u.CustomerID
		stored.SubscriptionID = u.SubscriptionID
		stored.PriceID = u.PriceID
		stored.UpdatedAt = u.UpdatedAt
	})
}

func (m *Memory) SetCustomerID(_ context.Context, userID uuid.UUID, customerID string) error {
	return m.updateUser(userID, func(stored *account.User) {
		stored.CustomerID = customerID
	})
}

func (m *Memory) UpdatePayoutAccount(_ context.Context, userID uuid.UUID, accountID string, status account.PayoutStatus, onboardingURL string) error {
	return m.updateUser(userID, func(stored *account.User) {
		stored.ConnectedAccountID = accountID
		stored.ConnectedAccountStatus = status
		stored.OnboardingURL = onboardingURL
	})
}

func (m *Memory) updateUser(id uuid.UUID, fn func(*account.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *Memory) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.slugs[slug]
	return ok, nil
}

// InsertInvoice applies the usage charge and the insert atomically.
func (m *Memory) InsertInvoice(_ context.Context, inv *invoice.Invoice, charge *invoice.UsageCharge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.slugs[inv.Slug]; taken {
		return invoice.ErrSlugTaken
	}
	if _, ok := m.users[inv.UserID]; !ok {
		return account.ErrUserNotFound
	}
	if charge != nil {
		u, ok := m.users[charge.UserID]
		if !ok {
			return account.ErrUserNotFound
		}
		if u.InvoicesSentThisMonth >= charge.Limit {
			return invoice.ErrUsageLimitReached
		}
		u.InvoicesSentThisMonth++
	}

	m.invoices[inv.ID] = cloneInvoice(inv)
	m.slugs[inv.Slug] = inv.ID
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, invoice.ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (m *Memory) GetInvoiceBySlug(_ context.Context, slug string) (*invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, invoice.ErrInvoiceNotFound
	}
	return cloneInvoice(m.invoices[id]), nil
}

func (m *Memory) ListInvoices(_ context.Context, userID uuid.UUID) ([]*invoice.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*invoice.Invoice, 0)
	for _, inv := range m.invoices {
		if inv.UserID == userID {
			out = append(out, cloneInvoice(inv))
		}
	}
	slices.SortFunc(out, func(a, b *invoice.Invoice) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (m *Memory) TransitionStatus(_ context.Context, id uuid.UUID, from []invoice.Status, to invoice.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return false, invoice.ErrInvoiceNotFound
	}
	if !slices.Contains(from, inv.Status) {
		return false, nil
	}
	inv.Status = to
	inv.UpdatedAt = at
	return true, nil
}

func (m *Memory) MarkPaid(_ context.Context, id uuid.UUID, paymentIntentID string, from []invoice.Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return false, invoice.ErrInvoiceNotFound
	}
	if !slices.Contains(from, inv.Status) {
		return false, nil
	}
	inv.Status = invoice.StatusPaid
	inv.PaidAt = &at
	if paymentIntentID != "" {
		inv.PaymentIntentID = paymentIntentID
	}
	inv.UpdatedAt = at
	return true, nil
}

func (m *Memory) SetCheckoutSession(_ context.Context, id uuid.UUID, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return invoice.ErrInvoiceNotFound
	}
	inv.CheckoutSessionID = sessionID
	inv.UpdatedAt = at
	return nil
}

func (m *Memory) InvoiceStats(_ context.Context, userID uuid.UUID, monthStart time.Time) (*invoice.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &invoice.Stats{TotalRevenue: decimal.Zero}
	for _, inv := range m.invoices {
		if inv.UserID != userID {
			continue
		}
		stats.TotalInvoices++
		if inv.Status == invoice.StatusPaid {
			stats.PaidInvoices++
			stats.TotalRevenue = stats.TotalRevenue.Add(inv.Total)
		}
		if !inv.CreatedAt.Before(monthStart) {
			stats.InvoicesThisMonth++
		}
	}
	return stats, nil
}

func (m *Memory) CountOverdue(_ context.Context, now time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, inv := range m.invoices {
		if inv.EffectiveStatus(now) == invoice.StatusOverdue {
			n++
		}
	}
	return n, nil
}

func cloneUser(u *account.User) *account.User {
	c := *u
	c.PeriodStart = cloneTime(u.PeriodStart)
	c.PeriodEnd = cloneTime(u.PeriodEnd)
	return &c
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.Items = slices.Clone(inv.Items)
	c.DueDate = cloneTime(inv.DueDate)
	c.PaidAt = cloneTime(inv.PaidAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
