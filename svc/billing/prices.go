package billing

import "github.com/dmitrymomot/invoicely/svc/account"

// FallbackPlan is assigned when a subscription's price id is not in the
// price table. Price ids drift when prices are rotated in the dashboard, so
// an unknown id is logged rather than rejected.
const FallbackPlan = account.PlanMonthly

// PriceTable maps processor price ids to paid plans.
type PriceTable struct {
	Monthly string
	Annual  string
}

// PlanForPrice returns the plan for priceID. ok is false when the id is
// unknown and FallbackPlan was used.
func (t PriceTable) PlanForPrice(priceID string) (plan account.Plan, ok bool) {
	switch {
	case priceID != "" && priceID == t.Monthly:
		return account.PlanMonthly, true
	case priceID != "" && priceID == t.Annual:
		return account.PlanAnnual, true
	default:
		return FallbackPlan, false
	}
}

// PriceForPlan returns the price id a checkout for plan should use.
func (t PriceTable) PriceForPlan(plan account.Plan) (string, bool) {
	switch plan {
	case account.PlanMonthly:
		return t.Monthly, t.Monthly != ""
	case account.PlanAnnual:
		return t.Annual, t.Annual != ""
	default:
		return "", false
	}
}
