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
	"github.com/dmitrymomot/invoicely/svc/invoice"
)

// InvoiceManager is the owner-facing invoice API.
type InvoiceManager interface {
	Create(ctx context.Context, userID uuid.UUID, p invoice.CreateParams) (*invoice.Invoice, error)
	List(ctx context.Context, userID uuid.UUID) ([]*invoice.Invoice, error)
	Get(ctx context.Context, userID uuid.UUID, slug string) (*invoice.Invoice, error)
	Send(ctx context.Context, userID uuid.UUID, slug string) (*invoice.Invoice, error)
	Stats(ctx context.Context, userID uuid.UUID) (*invoice.Stats, error)
	PublicURL(slug string) string
}

// InvoiceService serves the authenticated invoice endpoints. Mount it behind
// account.RequireUser.
type InvoiceService struct {
	invoices InvoiceManager
	log      *slog.Logger
}

func NewInvoiceService(invoices InvoiceManager, log *slog.Logger) *InvoiceService {
	if invoices == nil {
		panic("invoicing: invoice manager is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &InvoiceService{invoices: invoices, log: log}
}

func (s *InvoiceService) Handle() http.Handler {
	r := chi.NewRouter()
	path := handler.WithBinders(binder.Path(chi.URLParam))

	r.Get("/", handler.Wrap(s.list))
	r.Post("/", handler.Wrap(s.create, handler.WithBinders(binder.JSON())))
	r.Get("/{slug}", handler.Wrap(s.get, path))
	r.Post("/{slug}/send", handler.Wrap(s.send, path))

	return r
}

// InvoiceResponse is an invoice with its public payment link.
type InvoiceResponse struct {
	*invoice.Invoice
	PublicURL string `json:"public_url"`
}

func (s *InvoiceService) response(inv *invoice.Invoice) InvoiceResponse {
	return InvoiceResponse{Invoice: inv, PublicURL: s.invoices.PublicURL(inv.Slug)}
}

func (s *InvoiceService) list(ctx handler.Context, _ struct{}) handler.Response {
	list, err := s.invoices.List(ctx, accountmod.UserIDFromContext(ctx))
	if err != nil {
		return fail(ctx, s.log, err)
	}
	out := make([]InvoiceResponse, len(list))
	for i, inv := range list {
		out[i] = s.response(inv)
	}
	return handler.JSON(out)
}

func (s *InvoiceService) create(ctx handler.Context, req invoice.CreateParams) handler.Response {
	inv, err := s.invoices.Create(ctx, accountmod.UserIDFromContext(ctx), req)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(s.response(inv), handler.WithJSONStatus(http.StatusCreated))
}

type invoiceRequest struct {
	Slug string `path:"slug"`
}

func (s *InvoiceService) get(ctx handler.Context, req invoiceRequest) handler.Response {
	inv, err := s.invoices.Get(ctx, accountmod.UserIDFromContext(ctx), req.Slug)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(s.response(inv))
}

func (s *InvoiceService) send(ctx handler.Context, req invoiceRequest) handler.Response {
	inv, err := s.invoices.Send(ctx, accountmod.UserIDFromContext(ctx), req.Slug)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(s.response(inv))
}

// StatsService serves the dashboard counters.
type StatsService struct {
	invoices InvoiceManager
	log      *slog.Logger
}

func NewStatsService(invoices InvoiceManager, log *slog.Logger) *StatsService {
	if invoices == nil {
		panic("invoicing: invoice manager is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &StatsService{invoices: invoices, log: log}
}

func (s *StatsService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/", handler.Wrap(s.stats))
	return r
}

func (s *StatsService) stats(ctx handler.Context, _ struct{}) handler.Response {
	stats, err := s.invoices.Stats(ctx, accountmod.UserIDFromContext(ctx))
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(stats)
}
