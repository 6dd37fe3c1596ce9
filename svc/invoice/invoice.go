package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a new invoice names none.
const DefaultCurrency = "usd"

// Item is one invoice line. Amount is always Quantity × Rate.
type Item struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is a bill from a user to one of their clients.
type Invoice struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	UserID      uuid.UUID `json:"user_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	Items       []Item    `json:"items"`

	Subtotal decimal.Decimal `json:"subtotal"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`

	Status            Status     `json:"status"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CheckoutSessionID string     `json:"-"`
	PaymentIntentID   string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveStatus is the status shown to people. An unpaid invoice past its
// due date reads as overdue; the stored status stays unpaid.
func (inv *Invoice) EffectiveStatus(now time.Time) Status {
	if inv.Status == StatusUnpaid && inv.DueDate != nil && now.After(*inv.DueDate) {
		return StatusOverdue
	}
	return inv.Status
}

// AmountCents returns Total in the currency's minor unit.
func (inv *Invoice) AmountCents() int64 {
	return inv.Total.Shift(2).Round(0).IntPart()
}

// Totals are the derived monetary fields of an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals fills in each item's Amount and returns the invoice totals.
// Tax is taxRate percent of the subtotal, rounded to cents.
func ComputeTotals(items []Item, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range items {
		items[i].Amount = items[i].Quantity.Mul(items[i].Rate)
		subtotal = subtotal.Add(items[i].Amount)
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}
