// Package clientip resolves the address of the client behind a request.
//
// Proxy headers are only honoured when the deployment says how many proxies
// sit in front of the service. With N trusted proxies the client address is
// the Nth X-Forwarded-For entry counted from the right: entries further left
// were supplied by the client and can be forged. A zero Resolver ignores
// every header and uses RemoteAddr.
package clientip

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Resolver extracts client addresses according to the proxy topology.
type Resolver struct {
	hops   int
	header string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTrustedProxies sets how many proxies append to X-Forwarded-For in
// front of the service.
func WithTrustedProxies(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.hops = n
		}
	}
}

// WithTrustedHeader honours a single-value header the edge proxy always
// overwrites, such as CF-Connecting-IP or X-Real-IP. It takes precedence
// over X-Forwarded-For.
func WithTrustedHeader(name string) Option {
	return func(r *Resolver) {
		r.header = http.CanonicalHeaderKey(strings.TrimSpace(name))
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromRequest returns the normalized client IP, or "" if none is valid.
func (res *Resolver) FromRequest(r *http.Request) string {
	if res.header != "" {
		if ip := parse(r.Header.Get(res.header)); ip != "" {
			return ip
		}
	}
	if res.hops > 0 {
		if ip := forwardedFor(r.Header.Values("X-Forwarded-For"), res.hops); ip != "" {
			return ip
		}
	}
	return RemoteAddr(r)
}

// Middleware stores the client IP in the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), res.FromRequest(r))))
	})
}

// RemoteAddr returns the address of the direct peer.
func RemoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parse(r.RemoteAddr)
	}
	return parse(host)
}

// forwardedFor picks the entry hops positions from the right. Repeated
// headers are one list. A shorter list means fewer proxies were crossed, so
// its leftmost entry was still written by a trusted hop.
func forwardedFor(values []string, hops int) string {
	var entries []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			entries = append(entries, part)
		}
	}
	if len(entries) == 0 {
		return ""
	}
	i := max(len(entries)-hops, 0)
	return parse(entries[i])
}

func parse(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

type contextKey struct{}

func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// LoggerExtractor adds client_ip to records logged with a request context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if ip := FromContext(ctx); ip != "" {
			return slog.String("client_ip", ip), true
		}
		return slog.Attr{}, false
	}
}
