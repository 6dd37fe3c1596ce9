package account_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/invoicely/svc/account"
)

func TestCanCreateInvoice(t *testing.T) {
	t.Parallel()

	t.Run("free plan under the cap is allowed and metered", func(t *testing.T) {
		t.Parallel()
		d := account.CanCreateInvoice(account.Usage{Plan: account.PlanFree})
		assert.True(t, d.Allowed)
		assert.True(t, d.Metered)
		assert.Empty(t, d.Reason)
		assert.NoError(t, d.Err())
	})

	t.Run("free plan at or over the cap is denied", func(t *testing.T) {
		t.Parallel()
		for _, n := range []int{1, 2, 5, 100} {
			d := account.CanCreateInvoice(account.Usage{Plan: account.PlanFree, InvoicesSentThisMonth: n})
			assert.False(t, d.Allowed, "count %d", n)
			assert.Equal(t, account.ReasonFreeLimitReached, d.Reason)
		}
	})

	t.Run("free plan ignores subscription status", func(t *testing.T) {
		t.Parallel()
		d := account.CanCreateInvoice(account.Usage{
			Plan:               account.PlanFree,
			SubscriptionStatus: account.SubscriptionCanceled,
		})
		assert.True(t, d.Allowed)
	})

	t.Run("active pro plans are unlimited and never metered", func(t *testing.T) {
		t.Parallel()
		for _, plan := range []account.Plan{account.PlanMonthly, account.PlanAnnual} {
			for _, n := range []int{0, 1, 5, 1000} {
				d := account.CanCreateInvoice(account.Usage{
					Plan:                  plan,
					SubscriptionStatus:    account.SubscriptionActive,
					InvoicesSentThisMonth: n,
				})
				assert.True(t, d.Allowed, "plan %s count %d", plan, n)
				assert.False(t, d.Metered)
			}
		}
	})

	t.Run("pro plans without an active subscription are denied", func(t *testing.T) {
		t.Parallel()
		statuses := []account.SubscriptionStatus{
			account.SubscriptionNone,
			account.SubscriptionPastDue,
			account.SubscriptionCanceled,
			account.SubscriptionIncomplete,
			account.SubscriptionTrialing,
			account.SubscriptionUnpaid,
			account.SubscriptionUnknown,
		}
		for _, plan := range []account.Plan{account.PlanMonthly, account.PlanAnnual} {
			for _, st := range statuses {
				d := account.CanCreateInvoice(account.Usage{Plan: plan, SubscriptionStatus: st})
				assert.False(t, d.Allowed, "plan %s status %q", plan, st)
				assert.Equal(t, account.ReasonSubscriptionInactive, d.Reason)
			}
		}
	})

	t.Run("unknown plan is denied even when active", func(t *testing.T) {
		t.Parallel()
		d := account.CanCreateInvoice(account.Usage{
			Plan:               account.PlanUnknown,
			SubscriptionStatus: account.SubscriptionActive,
		})
		assert.False(t, d.Allowed)
		assert.Equal(t, account.ReasonSubscriptionInactive, d.Reason)
	})

	t.Run("denial error carries the reason", func(t *testing.T) {
		t.Parallel()
		err := account.CanCreateInvoice(account.Usage{Plan: account.PlanFree, InvoicesSentThisMonth: 1}).Err()
		assert.ErrorIs(t, err, account.ErrEntitlementDenied)

		var denial *account.DenialError
		assert.True(t, errors.As(err, &denial))
		assert.Equal(t, account.ReasonFreeLimitReached, denial.Reason)
		assert.Equal(t, account.ReasonFreeLimitReached, err.Error())
	})
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	assert.Equal(t, account.PlanAnnual, account.ParsePlan("annual"))
	assert.Equal(t, account.PlanUnknown, account.ParsePlan("enterprise"))
	assert.Equal(t, account.PlanUnknown, account.ParsePlan(""))

	assert.Equal(t, account.SubscriptionPastDue, account.ParseSubscriptionStatus("past_due"))
	assert.Equal(t, account.SubscriptionNone, account.ParseSubscriptionStatus(""))
	assert.Equal(t, account.SubscriptionUnknown, account.ParseSubscriptionStatus("frozen"))

	assert.Equal(t, account.PayoutActive, account.ParsePayoutStatus("active"))
	assert.Equal(t, account.PayoutNotConnected, account.ParsePayoutStatus("restricted"))
}

func TestUser_CanReceivePayments(t *testing.T) {
	t.Parallel()

	assert.False(t, (&account.User{}).CanReceivePayments())
	assert.False(t, (&account.User{ConnectedAccountID: "acct_1", ConnectedAccountStatus: account.PayoutPending}).CanReceivePayments())
	assert.False(t, (&account.User{ConnectedAccountStatus: account.PayoutActive}).CanReceivePayments())
	assert.True(t, (&account.User{ConnectedAccountID: "acct_1", ConnectedAccountStatus: account.PayoutActive}).CanReceivePayments())
}
