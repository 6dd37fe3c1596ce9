package billing

import "errors"

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed webhook event")
	ErrProcessingFailed    = errors.New("webhook event processing failed")
	ErrAlreadySubscribed   = errors.New("user already has an active subscription")
	ErrNoSubscription      = errors.New("user has no billing customer")
	ErrPriceNotConfigured  = errors.New("no price configured for plan")
	ErrProviderUnavailable = errors.New("payment provider request failed")
)

// UserMessage returns the user-facing text for billing errors that have one.
func UserMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrAlreadySubscribed):
		return "You already have an active subscription", true
	case errors.Is(err, ErrNoSubscription):
		return "No subscription found", true
	}
	return "", false
}
