package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/dmitrymomot/invoicely/pkg/clientip"
)

// KeyFunc identifies the caller. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by the address stored by a clientip.Resolver
// middleware, falling back to the direct peer.
func ByClientIP(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.RemoteAddr(r)
}

type middlewareConfig struct {
	key     KeyFunc
	onLimit http.HandlerFunc
	onError func(r *http.Request, err error)
}

type MiddlewareOption func(*middlewareConfig)

func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.key = fn
		}
	}
}

// WithOnLimitReached replaces the default plain-text 429 response. Rate
// limit headers are already set when it runs.
func WithOnLimitReached(fn http.HandlerFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.onLimit = fn
		}
	}
}

// WithOnError is called when the store fails. The request is let through.
func WithOnError(fn func(r *http.Request, err error)) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.onError = fn
	}
}

// Middleware enforces l per key and sets X-RateLimit-* headers.
func Middleware(l *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if l == nil {
		panic("ratelimit: limiter is required")
	}
	cfg := &middlewareConfig{
		key: ByClientIP,
		onLimit: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), key)
			if err != nil {
				if cfg.onError != nil {
					cfg.onError(r, err)
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				h.Set("Retry-After", strconv.Itoa(max(int(res.RetryAfter().Seconds()), 1)))
				cfg.onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
