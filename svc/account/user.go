package account

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the billing plan a user is on. Monthly and annual are the paid
// ("pro") plans.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanMonthly Plan = "monthly"
	PlanAnnual  Plan = "annual"
	// PlanUnknown stands in for any stored or received value outside the
	// known set. It is never written back.
	PlanUnknown Plan = "unknown"
)

// ParsePlan maps s to a known plan or PlanUnknown.
func ParsePlan(s string) Plan {
	switch p := Plan(s); p {
	case PlanFree, PlanMonthly, PlanAnnual:
		return p
	default:
		return PlanUnknown
	}
}

// IsPro reports whether p is a paid plan.
func (p Plan) IsPro() bool {
	return p == PlanMonthly || p == PlanAnnual
}

// SubscriptionStatus mirrors the payment processor's subscription status.
// The zero value means the user never had a subscription.
type SubscriptionStatus string

const (
	SubscriptionNone              SubscriptionStatus = ""
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionPaused            SubscriptionStatus = "paused"
	SubscriptionUnknown           SubscriptionStatus = "unknown"
)

// ParseSubscriptionStatus maps a processor status string to a known value.
// Unrecognised non-empty strings become SubscriptionUnknown.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch st := SubscriptionStatus(s); st {
	case SubscriptionNone, SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue,
		SubscriptionCanceled, SubscriptionIncomplete, SubscriptionIncompleteExpired,
		SubscriptionUnpaid, SubscriptionPaused:
		return st
	default:
		return SubscriptionUnknown
	}
}

// PayoutStatus is the state of the user's connected payout account.
type PayoutStatus string

const (
	PayoutNotConnected PayoutStatus = ""
	PayoutPending      PayoutStatus = "pending"
	PayoutActive       PayoutStatus = "active"
)

// ParsePayoutStatus treats anything other than pending or active as not connected.
func ParsePayoutStatus(s string) PayoutStatus {
	switch st := PayoutStatus(s); st {
	case PayoutPending, PayoutActive:
		return st
	default:
		return PayoutNotConnected
	}
}

// User is an invoicing account owner. Empty strings stand for absent
// external references.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string

	Plan                  Plan
	SubscriptionStatus    SubscriptionStatus
	PeriodStart           *time.Time
	PeriodEnd             *time.Time
	CancelAtPeriodEnd     bool
	InvoicesSentThisMonth int

	CustomerID     string
	SubscriptionID string
	PriceID        string

	ConnectedAccountID     string
	ConnectedAccountStatus PayoutStatus
	OnboardingURL          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanReceivePayments reports whether invoices owned by u can be paid online.
func (u *User) CanReceivePayments() bool {
	return u.ConnectedAccountID != "" && u.ConnectedAccountStatus == PayoutActive
}

// Usage returns the fields the entitlement evaluator reads.
func (u *User) Usage() Usage {
	return Usage{
		Plan:                  u.Plan,
		SubscriptionStatus:    u.SubscriptionStatus,
		InvoicesSentThisMonth: u.InvoicesSentThisMonth,
	}
}
