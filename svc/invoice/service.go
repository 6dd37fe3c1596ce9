package invoice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/invoicely/pkg/email"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/slug"
	"github.com/dmitrymomot/invoicely/svc/account"
)

// UsageCharge asks InsertInvoice to count the new invoice against a monthly
// allowance. The counter is incremented only while it is below Limit, in the
// same transaction as the insert; otherwise the insert fails with
// ErrUsageLimitReached.
type UsageCharge struct {
	UserID uuid.UUID
	Limit  int
}

// Storage is the invoice persistence contract.
type Storage interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	// InsertInvoice fails with ErrSlugTaken when the slug is already used.
	InsertInvoice(ctx context.Context, inv *Invoice, charge *UsageCharge) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceBySlug(ctx context.Context, slug string) (*Invoice, error)
	ListInvoices(ctx context.Context, userID uuid.UUID) ([]*Invoice, error)
	// TransitionStatus sets status to `to` only if the current status is one
	// of from. It reports whether a row changed.
	TransitionStatus(ctx context.Context, id uuid.UUID, from []Status, to Status, at time.Time) (bool, error)
	// MarkPaid sets status paid, paid_at and the payment reference only if the
	// current status is one of from. It reports whether a row changed.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, from []Status, at time.Time) (bool, error)
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string, at time.Time) error
	InvoiceStats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (*Stats, error)
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

// Users resolves invoice owners.
type Users interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*account.User, error)
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBaseURL sets the public application URL used in links.
func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithSlugOptions tunes the slug allocator.
func WithSlugOptions(opts ...slug.AllocatorOption) Option {
	return func(s *Service) {
		s.slugOpts = append(s.slugOpts, opts...)
	}
}

// Service implements invoice creation, delivery and payment.
type Service struct {
	store    Storage
	users    Users
	checkout CheckoutProvider
	mailer   email.EmailSender
	slugs    *slug.Allocator
	slugOpts []slug.AllocatorOption
	baseURL  string
	log      *slog.Logger
	now      func() time.Time
}

// NewService panics if any collaborator is nil.
func NewService(store Storage, users Users, checkout CheckoutProvider, mailer email.EmailSender, opts ...Option) *Service {
	if store == nil {
		panic("invoice: storage is required")
	}
	if users == nil {
		panic("invoice: users is required")
	}
	if checkout == nil {
		panic("invoice: checkout provider is required")
	}
	if mailer == nil {
		panic("invoice: mailer is required")
	}
	s := &Service{
		store:    store,
		users:    users,
		checkout: checkout,
		mailer:   mailer,
		baseURL:  "http://localhost:8080",
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slugs = slug.NewAllocator(store.SlugExists, func(err error) bool {
		return errors.Is(err, ErrSlugTaken)
	}, s.slugOpts...)
	return s
}

// Create validates params, checks the owner's entitlement and stores a new
// invoice. Free-plan creations are counted atomically with the insert.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, p CreateParams) (*Invoice, error) {
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	owner, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	decision := account.CanCreateInvoice(owner.Usage())
	if !decision.Allowed {
		return nil, decision.Err()
	}

	now := s.now().UTC()
	items := make([]Item, len(p.Items))
	for i, it := range p.Items {
		items[i] = Item{
			ID:          uuid.NewString(),
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		}
	}
	totals := ComputeTotals(items, p.TaxRate)

	status := StatusUnpaid
	if p.SaveAsDraft {
		status = StatusDraft
	}
	inv := &Invoice{
		ID:          uuid.New(),
		UserID:      userID,
		ClientName:  p.ClientName,
		ClientEmail: p.ClientEmail,
		Items:       items,
		Subtotal:    totals.Subtotal,
		TaxRate:     p.TaxRate,
		Tax:         totals.Tax,
		Total:       totals.Total,
		Currency:    p.Currency,
		Status:      status,
		DueDate:     p.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var charge *UsageCharge
	if decision.Metered {
		charge = &UsageCharge{UserID: userID, Limit: account.FreeMonthlyInvoiceLimit}
	}

	_, err = s.slugs.Insert(ctx, func(ctx context.Context, candidate string) error {
		inv.Slug = candidate
		return s.store.InsertInvoice(ctx, inv, charge)
	})
	if errors.Is(err, ErrUsageLimitReached) {
		// Another request used the allowance between the check and the insert.
		return nil, &account.DenialError{Reason: account.ReasonFreeLimitReached}
	}
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "invoice created",
		logger.UserID(userID),
		logger.InvoiceID(inv.ID),
		logger.Slug(inv.Slug),
		slog.Bool("metered", decision.Metered),
	)
	return inv, nil
}

// List returns the user's invoices, newest first, with effective statuses.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, inv := range invoices {
		inv.Status = inv.EffectiveStatus(now)
	}
	return invoices, nil
}

// Get returns the invoice with the given slug if userID owns it. Other users'
// invoices are reported as not found.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, slug string) (*Invoice, error) {
	inv, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	inv.Status = inv.EffectiveStatus(s.now())
	return inv, nil
}

// Send moves a draft to unpaid and emails the client. Invoices in any other
// status keep it; the email is sent regardless. A delivery failure is
// returned as ErrNotificationFailed without undoing the status change.
func (s *Service) Send(ctx context.Context, userID uuid.UUID, slug string) (*Invoice, error) {
	inv, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if next, err := Next(inv.Status, TriggerSend); err == nil {
		now := s.now().UTC()
		changed, err := s.store.TransitionStatus(ctx, inv.ID, []Status{inv.Status}, next, now)
		if err != nil {
			return nil, err
		}
		if changed {
			inv.Status = next
			inv.UpdatedAt = now
		}
	}

	if err := s.notify(ctx, owner, inv); err != nil {
		s.log.ErrorContext(ctx, "invoice email failed",
			logger.InvoiceID(inv.ID),
			logger.Error(err),
		)
		return inv, errors.Join(ErrNotificationFailed, err)
	}

	s.log.InfoContext(ctx, "invoice sent", logger.InvoiceID(inv.ID), logger.Slug(inv.Slug))
	inv.Status = inv.EffectiveStatus(s.now())
	return inv, nil
}

// ConfirmPayment marks the invoice paid. It is the only way into the paid
// status. Redelivery is absorbed: an invoice that is already paid keeps its
// original paid_at and applied is false.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	applied, err := s.store.MarkPaid(ctx, id, paymentIntentID, SourcesOf(TriggerPaymentConfirmed), s.now().UTC())
	if err != nil {
		return false, err
	}
	if applied {
		s.log.InfoContext(ctx, "invoice paid", logger.InvoiceID(id))
	}
	return applied, nil
}

// Stats summarises a user's invoices.
type Stats struct {
	TotalInvoices     int             `json:"total_invoices"`
	PaidInvoices      int             `json:"paid_invoices"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	InvoicesThisMonth int             `json:"invoices_this_month"`
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return s.store.InvoiceStats(ctx, userID, monthStart)
}

// ReportOverdue logs how many unpaid invoices are past due. Stored statuses
// are not changed, so overdue invoices stay payable.
func (s *Service) ReportOverdue(ctx context.Context) error {
	n, err := s.store.CountOverdue(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.InfoContext(ctx, "overdue invoices", slog.Int("count", n))
	}
	return nil
}

// PublicURL is the client-facing address of an invoice.
func (s *Service) PublicURL(slug string) string {
	return s.baseURL + "/invoice/" + slug
}

func (s *Service) owned(ctx context.Context, userID uuid.UUID, slug string) (*Invoice, error) {
	inv, err := s.store.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, ErrInvoiceNotFound
	}
	return inv, nil
}
