package invoicing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/svc/billing"
)

// MaxWebhookBodySize caps webhook payloads. Stripe events are far smaller.
const MaxWebhookBodySize = 64 << 10

// SignatureHeader carries the Stripe webhook signature.
const SignatureHeader = "Stripe-Signature"

// WebhookProcessor verifies and applies payment webhooks.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (billing.Outcome, error)
}

// WebhookService receives Stripe webhooks. Any non-2xx answer makes Stripe
// redeliver, so only retryable failures return 500.
type WebhookService struct {
	processor WebhookProcessor
	log       *slog.Logger
}

func NewWebhookService(p WebhookProcessor, log *slog.Logger) *WebhookService {
	if p == nil {
		panic("invoicing: webhook processor is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &WebhookService{processor: p, log: log}
}

func (s *WebhookService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.receive)
	return r
}

type webhookResponse struct {
	Received bool           `json:"received"`
	Outcome  billing.Outcome `json:"outcome"`
}

func (s *WebhookService) receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodySize))
	if err != nil {
		s.log.WarnContext(ctx, "webhook body rejected", logger.Error(err))
		s.render(w, r, handler.JSONError(handler.ErrBadRequest.WithMessage("Invalid payload").WithCause(err)))
		return
	}

	outcome, err := s.processor.ProcessWebhook(ctx, payload, r.Header.Get(SignatureHeader))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		s.log.WarnContext(ctx, "webhook signature rejected", logger.Error(err))
		s.render(w, r, handler.JSONError(handler.ErrBadRequest.WithMessage("Invalid signature").WithCause(err)))
	case err != nil:
		s.render(w, r, handler.JSONError(handler.ErrInternalServerError.WithMessage("Webhook processing failed").WithCause(err)))
	default:
		s.render(w, r, handler.JSON(webhookResponse{Received: true, Outcome: outcome}))
	}
}

func (s *WebhookService) render(w http.ResponseWriter, r *http.Request, resp handler.Response) {
	if err := resp.Render(w, r); err != nil {
		s.log.ErrorContext(r.Context(), "failed to write webhook response", logger.Error(err))
	}
}
