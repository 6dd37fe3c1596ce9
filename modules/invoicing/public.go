package invoicing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/binder"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/svc/invoice"
)

const (
	defaultQRSize = 256
	qrCacheAge    = 3600
)

// PublicInvoices is the payer-facing invoice API.
type PublicInvoices interface {
	Public(ctx context.Context, slug string) (*invoice.PublicInvoice, error)
	QR(ctx context.Context, slug string, size int) ([]byte, error)
	Checkout(ctx context.Context, slug string) (*invoice.CheckoutSession, error)
}

// PublicService serves invoices by slug without authentication.
type PublicService struct {
	invoices PublicInvoices
	log      *slog.Logger
}

func NewPublicService(invoices PublicInvoices, log *slog.Logger) *PublicService {
	if invoices == nil {
		panic("invoicing: public invoices are required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PublicService{invoices: invoices, log: log}
}

func (s *PublicService) Handle() http.Handler {
	r := chi.NewRouter()
	path := handler.WithBinders(binder.Path(chi.URLParam))

	r.Get("/{slug}", handler.Wrap(s.show, path))
	r.Get("/{slug}/qr.png", handler.Wrap(s.qr, path))
	r.Post("/{slug}/checkout", handler.Wrap(s.checkout, path))

	return r
}

type slugRequest struct {
	Slug string `path:"slug"`
}

func (s *PublicService) show(ctx handler.Context, req slugRequest) handler.Response {
	inv, err := s.invoices.Public(ctx, req.Slug)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(inv)
}

func (s *PublicService) qr(ctx handler.Context, req slugRequest) handler.Response {
	png, err := s.invoices.QR(ctx, req.Slug, defaultQRSize)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.Blob("image/png", png, qrCacheAge)
}

func (s *PublicService) checkout(ctx handler.Context, req slugRequest) handler.Response {
	sess, err := s.invoices.Checkout(ctx, req.Slug)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(sess)
}
