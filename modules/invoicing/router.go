// Package invoicing exposes the invoicing engine over HTTP.
//
// Each service implements Mountable and owns its sub-routes. NewRouter
// composes them under /api, /public and /webhooks, with every /api route
// except authentication protected by a bearer token.
package invoicing

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/invoicely/handler"
	accountmod "github.com/dmitrymomot/invoicely/modules/account"
)

// Mountable is an HTTP module that serves its own sub-routes.
type Mountable interface {
	Handle() http.Handler
}

// Routes lists the modules to mount. Nil modules are skipped.
type Routes struct {
	Auth     Mountable // /api/auth
	Me       Mountable // /api/me
	Invoices Mountable // /api/invoices
	Stats    Mountable // /api/stats
	Billing  Mountable // /api/billing
	Payouts  Mountable // /api/payouts
	Public   Mountable // /public/invoices
	Webhook  Mountable // /webhooks/stripe

	// Optional per-group middleware, typically rate limits for the
	// unauthenticated endpoints.
	AuthLimit   func(http.Handler) http.Handler
	PublicLimit func(http.Handler) http.Handler
}

// NewRouter mounts routes on a chi router. Middlewares wrap every route.
func NewRouter(verifier accountmod.TokenVerifier, routes Routes, middlewares ...func(http.Handler) http.Handler) chi.Router {
	if verifier == nil {
		panic("invoicing: token verifier is required")
	}

	r := chi.NewRouter()
	r.Use(middlewares...)

	mount(r, "/api/auth", routes.Auth, routes.AuthLimit)
	r.Group(func(r chi.Router) {
		r.Use(accountmod.RequireUser(verifier))
		mount(r, "/api/me", routes.Me, nil)
		mount(r, "/api/invoices", routes.Invoices, nil)
		mount(r, "/api/stats", routes.Stats, nil)
		mount(r, "/api/billing", routes.Billing, nil)
		mount(r, "/api/payouts", routes.Payouts, nil)
	})
	mount(r, "/public/invoices", routes.Public, routes.PublicLimit)
	mount(r, "/webhooks/stripe", routes.Webhook, nil)

	return r
}

func mount(r chi.Router, pattern string, m Mountable, mw func(http.Handler) http.Handler) {
	if m == nil {
		return
	}
	h := m.Handle()
	if mw != nil {
		h = mw(h)
	}
	r.Mount(pattern, h)
}

// TooManyRequests renders the JSON error for rate-limited requests.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	_ = handler.JSONError(handler.ErrTooManyRequests.WithMessage("Too many requests, please try again later")).Render(w, r)
}
