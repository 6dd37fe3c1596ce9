package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/invoicely/pkg/validator"
)

var (
	maxQuantity = decimal.NewFromInt(1_000_000)
	maxRate     = decimal.NewFromInt(1_000_000_000)
)

// ItemParams is one requested line item.
type ItemParams struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
}

// CreateParams is the input to Service.Create.
type CreateParams struct {
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email"`
	Items       []ItemParams    `json:"items"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Currency    string          `json:"currency"`
	DueDate     *time.Time      `json:"due_date"`
	SaveAsDraft bool            `json:"save_as_draft"`
}

func (p *CreateParams) normalize() {
	p.ClientName = strings.TrimSpace(p.ClientName)
	p.ClientEmail = strings.ToLower(strings.TrimSpace(p.ClientEmail))
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	for i := range p.Items {
		p.Items[i].Description = strings.TrimSpace(p.Items[i].Description)
	}
}

// Validate reports every invalid field at once.
func (p CreateParams) Validate() error {
	rules := []validator.Rule{
		validator.Required("client_name", p.ClientName),
		validator.MaxLen("client_name", p.ClientName, 200),
		validator.Required("client_email", p.ClientEmail),
		validator.ValidEmail("client_email", p.ClientEmail),
		validator.MinItems("items", len(p.Items), 1),
		validator.DecimalRange("tax_rate", p.TaxRate, decimal.Zero, decimal.NewFromInt(100)),
		validator.MaxDecimalPlaces("tax_rate", p.TaxRate, 2),
		validator.CurrencyCode("currency", p.Currency),
	}
	for i, it := range p.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		rules = append(rules,
			validator.Required(prefix+"description", it.Description),
			validator.MaxLen(prefix+"description", it.Description, 500),
			validator.NonNegative(prefix+"quantity", it.Quantity),
			validator.DecimalRange(prefix+"quantity", it.Quantity, decimal.Zero, maxQuantity),
			validator.MaxDecimalPlaces(prefix+"quantity", it.Quantity, 2),
			validator.NonNegative(prefix+"rate", it.Rate),
			validator.DecimalRange(prefix+"rate", it.Rate, decimal.Zero, maxRate),
			validator.MaxDecimalPlaces(prefix+"rate", it.Rate, 2),
		)
	}
	return validator.Apply(rules...)
}
