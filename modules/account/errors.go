package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/invoicely/handler"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/validator"
	accountsvc "github.com/dmitrymomot/invoicely/svc/account"
)

// HTTPError maps account errors to transport errors. Validation errors pass
// through unchanged so they render with field details.
func HTTPError(err error) error {
	switch {
	case validator.IsValidationError(err):
		return err
	case errors.Is(err, accountsvc.ErrEmailTaken):
		return handler.ErrConflict.WithMessage("An account with this email already exists").WithCause(err)
	case errors.Is(err, accountsvc.ErrInvalidCredentials):
		return handler.ErrUnauthorized.WithMessage("Invalid email or password").WithCause(err)
	case errors.Is(err, accountsvc.ErrInvalidToken):
		return handler.ErrUnauthorized.WithCause(err)
	case errors.Is(err, accountsvc.ErrUserNotFound):
		return handler.ErrNotFound.WithMessage("User not found").WithCause(err)
	default:
		return handler.ErrInternalServerError.WithCause(err)
	}
}

// fail logs server-side failures and renders the mapped error.
func fail(ctx handler.Context, log *slog.Logger, err error) handler.Response {
	mapped := HTTPError(err)
	var httpErr handler.HTTPError
	if errors.As(mapped, &httpErr) && httpErr.Code >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "account request failed", logger.Error(err))
	}
	return handler.JSONError(mapped)
}
