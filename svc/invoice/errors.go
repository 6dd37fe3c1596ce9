package invoice

import "errors"

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrSlugTaken          = errors.New("invoice slug already taken")
	ErrUsageLimitReached  = errors.New("monthly invoice limit reached")
	ErrNotificationFailed = errors.New("failed to send invoice email")
	ErrCheckoutFailed     = errors.New("failed to create checkout session")
	ErrQRCodeFailed       = errors.New("failed to generate invoice QR code")

	// Payment initiation guards, see GuardMessage.
	ErrAlreadyPaid        = errors.New("invoice already paid")
	ErrNotPayable         = errors.New("invoice status does not accept payment")
	ErrNothingToPay       = errors.New("invoice total is zero")
	ErrPayoutNotConnected = errors.New("merchant payout account not connected")
	ErrPayoutNotActive    = errors.New("merchant payout account not active")
)

// GuardMessage returns the payer-facing text for a payment guard error.
func GuardMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrAlreadyPaid):
		return "Invoice is already paid", true
	case errors.Is(err, ErrNotPayable):
		return "Invoice cannot be paid in its current state", true
	case errors.Is(err, ErrNothingToPay):
		return "Invoice has no amount due", true
	case errors.Is(err, ErrPayoutNotConnected):
		return "Payment not available - merchant hasn't connected their payment account", true
	case errors.Is(err, ErrPayoutNotActive):
		return "Payment not available - merchant's payment account is not active", true
	}
	return "", false
}
