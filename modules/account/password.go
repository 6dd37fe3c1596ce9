// Package account serves the account HTTP endpoints: password registration
// and login, bearer authentication and the subscription summary.
package account

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/binder"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	accountsvc "github.com/dmitrymomot/invoicely/svc/account"
)

// PasswordAuthenticator registers users and logs them in.
type PasswordAuthenticator interface {
	Register(ctx context.Context, p accountsvc.RegisterParams) (*accountsvc.Session, error)
	Login(ctx context.Context, email, password string) (*accountsvc.Session, error)
}

type PasswordService struct {
	auth PasswordAuthenticator
	log  *slog.Logger
}

func NewPasswordService(auth PasswordAuthenticator, log *slog.Logger) *PasswordService {
	if auth == nil {
		panic("account: password authenticator is required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &PasswordService{auth: auth, log: log}
}

func (s *PasswordService) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/register", handler.Wrap(s.register, handler.WithBinders(binder.JSON())))
	r.Post("/login", handler.Wrap(s.login, handler.WithBinders(binder.JSON())))

	return r
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Plan  accountsvc.Plan `json:"plan"`
}

// SessionResponse is returned after registration and login.
type SessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

func newSessionResponse(sess *accountsvc.Session) SessionResponse {
	return SessionResponse{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   sess.ExpiresAt,
		User: UserResponse{
			ID:    sess.User.ID,
			Name:  sess.User.Name,
			Email: sess.User.Email,
			Plan:  sess.User.Plan,
		},
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *PasswordService) register(ctx handler.Context, req RegisterRequest) handler.Response {
	sess, err := s.auth.Register(ctx, accountsvc.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(newSessionResponse(sess), handler.WithJSONStatus(http.StatusCreated))
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *PasswordService) login(ctx handler.Context, req LoginRequest) handler.Response {
	sess, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(ctx, s.log, err)
	}
	return handler.JSON(newSessionResponse(sess))
}
