package account

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	accountsvc "github.com/dmitrymomot/invoicely/svc/account"
)

// SummaryProvider reports a user's plan and entitlement.
type SummaryProvider interface {
	Summary(ctx context.Context, id uuid.UUID) (*accountsvc.Summary, error)
}

// SubscriptionService serves the authenticated user's subscription summary.
// It must be mounted behind RequireUser.
type SubscriptionService struct {
	summaries SummaryProvider
	log       *slog.Logger
}

func NewSubscriptionService(summaries SummaryProvider, log *slog.Logger) *SubscriptionService {
	if summaries == nil {
		panic("account: summary provider is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SubscriptionService{summaries: summaries, log: log}
}

func (s *SubscriptionService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/subscription", handler.Wrap(s.subscription))
	return r
}

func (s *SubscriptionService) subscription(ctx handler.Context, _ struct{}) handler.Response {
	summary, err := s.summaries.Summary(ctx, UserIDFromContext(ctx))
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(summary)
}
