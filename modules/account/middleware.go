package account

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	accountsvc "github.com/dmitrymomot/invoicely/svc/account"
)

// TokenVerifier resolves bearer tokens to users.
type TokenVerifier interface {
	Authenticate(ctx context.Context, accessToken string) (*accountsvc.User, error)
}

type userKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *accountsvc.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*accountsvc.User, bool) {
	u, ok := ctx.Value(userKey{}).(*accountsvc.User)
	return u, ok && u != nil
}

// UserIDFromContext returns the authenticated user's id or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if u, ok := UserFromContext(ctx); ok {
		return u.ID
	}
	return uuid.Nil
}

// RequireUser rejects requests without a valid "Authorization: Bearer"
// token with 401 and stores the resolved user in the request context.
func RequireUser(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r)
			if !ok {
				_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
				return
			}
			u, err := verifier.Authenticate(r.Context(), tok)
			if err != nil {
				_ = handler.JSONError(HTTPError(err)).Render(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// LoggerExtractor adds user_id to records logged with an authenticated
// request context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if u, ok := UserFromContext(ctx); ok {
			return logger.UserID(u.ID), true
		}
		return slog.Attr{}, false
	}
}
