package account

// FreeMonthlyInvoiceLimit is how many invoices a free user may create per month.
const FreeMonthlyInvoiceLimit = 1

// Reasons returned with denied decisions. They are shown to users verbatim.
const (
	ReasonFreeLimitReached     = "Free plan allows 1 invoice per month. Upgrade to Pro for unlimited invoices."
	ReasonSubscriptionInactive = "Your subscription is not active. Please update your payment method or reactivate your subscription."
)

// Usage is the input to CanCreateInvoice.
type Usage struct {
	Plan                  Plan
	SubscriptionStatus    SubscriptionStatus
	InvoicesSentThisMonth int
}

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allowed bool
	Reason  string
	// Metered is set when a successful creation must be counted against the
	// monthly free allowance.
	Metered bool
}

// CanCreateInvoice decides whether a new invoice may be created. It has no
// side effects; the caller is responsible for counting metered creations.
//
// An active pro subscription is unlimited. The free plan is capped at
// FreeMonthlyInvoiceLimit. Everything else, including a pro plan whose
// subscription lapsed, is denied until the subscription is restored.
func CanCreateInvoice(u Usage) Decision {
	switch {
	case u.Plan.IsPro() && u.SubscriptionStatus == SubscriptionActive:
		return Decision{Allowed: true}
	case u.Plan == PlanFree:
		if u.InvoicesSentThisMonth < FreeMonthlyInvoiceLimit {
			return Decision{Allowed: true, Metered: true}
		}
		return Decision{Reason: ReasonFreeLimitReached}
	default:
		return Decision{Reason: ReasonSubscriptionInactive}
	}
}

// Err returns a *DenialError for denied decisions and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DenialError{Reason: d.Reason}
}
