package invoicing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/handler"
	accountmod "github.com/dmitrymomot/invoicely/modules/account"
	"github.com/dmitrymomot/invoicely/pkg/binder"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/billing"
	"github.com/dmitrymomot/invoicely/svc/payout"
)

// SubscriptionBilling starts subscription checkouts and portal sessions.
type SubscriptionBilling interface {
	StartCheckout(ctx context.Context, userID uuid.UUID, plan account.Plan) (*billing.Session, error)
	Portal(ctx context.Context, userID uuid.UUID) (*billing.Session, error)
}

type BillingService struct {
	billing SubscriptionBilling
	log     *slog.Logger
}

func NewBillingService(b SubscriptionBilling, log *slog.Logger) *BillingService {
	if b == nil {
		panic("invoicing: subscription billing is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &BillingService{billing: b, log: log}
}

func (s *BillingService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout", handler.Wrap(s.checkout, handler.WithBinders(binder.JSON())))
	r.Post("/portal", handler.Wrap(s.portal))
	return r
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func (s *BillingService) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
	sess, err := s.billing.StartCheckout(ctx, accountmod.UserIDFromContext(ctx), account.Plan(req.Plan))
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(sess)
}

func (s *BillingService) portal(ctx handler.Context, _ struct{}) handler.Response {
	sess, err := s.billing.Portal(ctx, accountmod.UserIDFromContext(ctx))
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(sess)
}

// PayoutOnboarding manages the user's connected payout account.
type PayoutOnboarding interface {
	Connect(ctx context.Context, userID uuid.UUID) (*payout.Status, error)
	Status(ctx context.Context, userID uuid.UUID) (*payout.Status, error)
	Refresh(ctx context.Context, userID uuid.UUID) (*payout.Status, error)
}

type PayoutService struct {
	payouts PayoutOnboarding
	log     *slog.Logger
}

func NewPayoutService(p PayoutOnboarding, log *slog.Logger) *PayoutService {
	if p == nil {
		panic("invoicing: payout onboarding is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PayoutService{payouts: p, log: log}
}

func (s *PayoutService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/connect", handler.Wrap(s.call(s.payouts.Connect)))
	r.Get("/status", handler.Wrap(s.call(s.payouts.Status)))
	r.Post("/refresh", handler.Wrap(s.call(s.payouts.Refresh)))
	return r
}

func (s *PayoutService) call(fn func(context.Context, uuid.UUID) (*payout.Status, error)) handler.HandlerFunc[struct{}] {
	return func(ctx handler.Context, _ struct{}) handler.Response {
		st, err := fn(ctx, accountmod.UserIDFromContext(ctx))
		if err != nil {
			return fail(ctx, s.log, err)
		}
		return handler.JSON(st)
	}
}
