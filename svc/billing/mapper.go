package billing

import (
	"time"

	"github.com/dmitrymomot/invoicely/svc/account"
)

// SubscriptionObject is the processor's subscription, reduced to the fields
// the mapper reads. Absent period bounds are nil.
type SubscriptionObject struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart *int64
	CurrentPeriodEnd   *int64
	CancelAtPeriodEnd  bool
	PriceID            string
}

// SubscriptionFields are the user billing fields derived from a subscription.
type SubscriptionFields struct {
	Plan              account.Plan
	PlanFromFallback  bool
	Status            account.SubscriptionStatus
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	SubscriptionID    string
	PriceID           string
}

// MapSubscription translates obj into user billing fields. It never fails:
// missing optional values map to their zero value or nil.
func MapSubscription(obj SubscriptionObject, prices PriceTable) SubscriptionFields {
	plan, known := prices.PlanForPrice(obj.PriceID)
	return SubscriptionFields{
		Plan:              plan,
		PlanFromFallback:  !known,
		Status:            account.ParseSubscriptionStatus(obj.Status),
		PeriodStart:       unixTime(obj.CurrentPeriodStart),
		PeriodEnd:         unixTime(obj.CurrentPeriodEnd),
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
		SubscriptionID:    obj.ID,
		PriceID:           obj.PriceID,
	}
}

// Apply copies every field onto u.
func (f SubscriptionFields) Apply(u *account.User) {
	u.Plan = f.Plan
	f.ApplyStatus(u)
	u.SubscriptionID = f.SubscriptionID
	u.PriceID = f.PriceID
}

// ApplyStatus copies the status, period and cancellation flag onto u,
// leaving plan and references alone.
func (f SubscriptionFields) ApplyStatus(u *account.User) {
	u.SubscriptionStatus = f.Status
	u.PeriodStart = f.PeriodStart
	u.PeriodEnd = f.PeriodEnd
	u.CancelAtPeriodEnd = f.CancelAtPeriodEnd
}

// Ended reports whether the subscription can never become active again.
func (f SubscriptionFields) Ended() bool {
	return f.Status == account.SubscriptionCanceled || f.Status == account.SubscriptionIncompleteExpired
}

// endSubscription drops u back to the free plan and clears its references.
func endSubscription(u *account.User, status account.SubscriptionStatus) {
	u.Plan = account.PlanFree
	u.SubscriptionStatus = status
	u.CancelAtPeriodEnd = false
	u.SubscriptionID = ""
	u.PriceID = ""
}

func unixTime(v *int64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}
