package invoicing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/invoicely/handler"
	accountmod "github.com/dmitrymomot/invoicely/modules/account"
	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/validator"
	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/billing"
	"github.com/dmitrymomot/invoicely/svc/invoice"
	"github.com/dmitrymomot/invoicely/svc/payout"
)

var (
	errEntitlementDenied = handler.HTTPError{Code: http.StatusForbidden, Key: "entitlement_denied"}
	errProvider          = handler.ErrBadGateway.WithMessage("The payment provider is unavailable, please try again")
)

// HTTPError maps domain errors to transport errors. Internal causes are kept
// for logging and never rendered.
func HTTPError(err error) error {
	var denial *account.DenialError
	if errors.As(err, &denial) {
		return errEntitlementDenied.WithMessage(denial.Reason).WithCause(err)
	}
	if msg, ok := invoice.GuardMessage(err); ok {
		return handler.ErrConflict.WithMessage(msg).WithCause(err)
	}

	switch {
	case validator.IsValidationError(err):
		return err
	case errors.Is(err, invoice.ErrInvoiceNotFound):
		return handler.ErrNotFound.WithMessage("Invoice not found").WithCause(err)
	case errors.Is(err, billing.ErrAlreadySubscribed):
		msg, _ := billing.UserMessage(err)
		return handler.ErrConflict.WithMessage(msg).WithCause(err)
	case errors.Is(err, billing.ErrNoSubscription):
		msg, _ := billing.UserMessage(err)
		return handler.ErrNotFound.WithMessage(msg).WithCause(err)
	case errors.Is(err, payout.ErrNotConnected):
		return handler.ErrNotFound.WithMessage("No connected payment account").WithCause(err)
	case errors.Is(err, invoice.ErrNotificationFailed):
		return handler.ErrBadGateway.WithMessage("Invoice saved but the email could not be sent").WithCause(err)
	case errors.Is(err, invoice.ErrCheckoutFailed),
		errors.Is(err, billing.ErrProviderUnavailable),
		errors.Is(err, payout.ErrProviderUnavailable):
		return errProvider.WithCause(err)
	default:
		return accountmod.HTTPError(err)
	}
}

// fail logs server-side failures and renders the mapped error.
func fail(ctx handler.Context, log *slog.Logger, err error) handler.Response {
	mapped := HTTPError(err)
	var httpErr handler.HTTPError
	if errors.As(mapped, &httpErr) && httpErr.Code >= http.StatusInternalServerError {
		log.ErrorContext(ctx, "request failed", logger.Error(err))
	}
	return handler.JSONError(mapped)
}
