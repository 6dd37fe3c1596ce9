package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/validator"
	"github.com/dmitrymomot/invoicely/svc/account"
)

// WebhookVerifier checks a delivery's signature and extracts the raw event.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (RawEvent, error)
}

// CustomerRequest identifies the user a processor customer is created for.
type CustomerRequest struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

// SubscriptionCheckoutRequest describes a hosted subscription checkout.
type SubscriptionCheckoutRequest struct {
	UserID     uuid.UUID
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Session is a hosted page the user is redirected to.
type Session struct {
	ID  string `json:"session_id,omitempty"`
	URL string `json:"url"`
}

// Provider is the processor surface the billing service uses.
type Provider interface {
	WebhookVerifier
	SubscriptionFetcher
	FindOrCreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (*Session, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error)
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

// WithMetrics replaces the unregistered default collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithEventLog sets where processed event ids are recorded.
func WithEventLog(l EventLog) Option {
	return func(s *Service) {
		if l != nil {
			s.events = l
		}
	}
}

// WithBaseURL sets the application URL used for redirects.
func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// Service runs subscription checkout and webhook processing.
type Service struct {
	provider   Provider
	users      UserStore
	reconciler *Reconciler
	prices     PriceTable
	events     EventLog
	metrics    *Metrics
	baseURL    string
	log        *slog.Logger
}

// NewService panics on nil collaborators.
func NewService(provider Provider, users UserStore, payments PaymentConfirmer, prices PriceTable, opts ...Option) *Service {
	if provider == nil {
		panic("billing: provider is required")
	}
	if users == nil {
		panic("billing: user store is required")
	}
	if payments == nil {
		panic("billing: payment confirmer is required")
	}
	s := &Service{
		provider: provider,
		users:    users,
		prices:   prices,
		events:   NewMemoryEventLog(),
		metrics:  NewMetrics(nil),
		baseURL:  "http://localhost:8080",
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = NewReconciler(users, payments, provider, prices, s.log)
	return s
}

// ProcessWebhook verifies, deduplicates, decodes and applies one delivery.
// A bad signature is ErrInvalidSignature. Any other error is
// ErrProcessingFailed and means the delivery should be retried. The event id
// is recorded only after the event was handled.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	raw, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		s.metrics.observe("unknown", OutcomeFailed)
		return OutcomeFailed, errors.Join(ErrInvalidSignature, err)
	}
	log := s.log.With(logger.EventID(raw.ID), logger.EventType(raw.Type))

	seen, err := s.events.Seen(ctx, raw.ID)
	if err != nil {
		// Effects are idempotent, so a dedupe miss only costs extra work.
		log.WarnContext(ctx, "event log lookup failed", logger.Error(err))
	}
	if seen {
		s.metrics.observe("duplicate", OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	env, err := Decode(raw)
	if err != nil {
		s.metrics.observe("malformed", OutcomeFailed)
		log.ErrorContext(ctx, "webhook event malformed", logger.Error(err))
		return OutcomeFailed, errors.Join(ErrProcessingFailed, err)
	}

	outcome, err := s.reconciler.Handle(ctx, env)
	s.metrics.observe(env.Event.Kind(), outcome)
	if err != nil {
		log.ErrorContext(ctx, "webhook event failed", logger.Error(err))
		return outcome, errors.Join(ErrProcessingFailed, err)
	}

	if err := s.events.MarkProcessed(ctx, raw.ID); err != nil {
		log.WarnContext(ctx, "failed to record processed event", logger.Error(err))
	}
	log.InfoContext(ctx, "webhook event processed", slog.String("outcome", string(outcome)))
	return outcome, nil
}

// StartCheckout begins a subscription checkout for plan. The processor
// customer is created on first use and stored on the user.
func (s *Service) StartCheckout(ctx context.Context, userID uuid.UUID, plan account.Plan) (*Session, error) {
	if err := validator.Apply(
		validator.OneOf("plan", plan, account.PlanMonthly, account.PlanAnnual),
	); err != nil {
		return nil, err
	}
	priceID, ok := s.prices.PriceForPlan(plan)
	if !ok {
		return nil, ErrPriceNotConfigured
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Plan.IsPro() && u.SubscriptionStatus == account.SubscriptionActive {
		return nil, ErrAlreadySubscribed
	}

	customerID := u.CustomerID
	if customerID == "" {
		customerID, err = s.provider.FindOrCreateCustomer(ctx, CustomerRequest{UserID: u.ID, Email: u.Email, Name: u.Name})
		if err != nil {
			return nil, errors.Join(ErrProviderUnavailable, err)
		}
		if err := s.users.SetCustomerID(ctx, u.ID, customerID); err != nil {
			return nil, err
		}
	}

	sess, err := s.provider.CreateSubscriptionCheckout(ctx, SubscriptionCheckoutRequest{
		UserID:     u.ID,
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: s.baseURL + "/dashboard/settings?subscription=success",
		CancelURL:  s.baseURL + "/dashboard/settings?subscription=cancelled",
	})
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	s.log.InfoContext(ctx, "subscription checkout started", logger.UserID(u.ID), slog.String("plan", string(plan)))
	return sess, nil
}

// Portal returns a billing portal session for the user's customer.
func (s *Service) Portal(ctx context.Context, userID uuid.UUID) (*Session, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.CustomerID == "" {
		return nil, ErrNoSubscription
	}
	sess, err := s.provider.CreatePortalSession(ctx, u.CustomerID, s.baseURL+"/dashboard/settings")
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	return sess, nil
}
