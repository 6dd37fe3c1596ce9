package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Required fails when value is empty after trimming whitespace.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required"},
	}
}

func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len([]rune(value)) <= max },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", max)},
	}
}

func MinLen(field, value string, min int) Rule {
	return Rule{
		Check: func() bool { return len([]rune(value)) >= min },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters long", min)},
	}
}

// ValidEmail accepts a bare address (no display name).
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			return err == nil && addr.Address == strings.TrimSpace(value)
		},
		Error: ValidationError{Field: field, Message: "must be a valid email address"},
	}
}

// MinItems fails when a collection has fewer than min elements.
func MinItems(field string, n, min int) Rule {
	return Rule{
		Check: func() bool { return n >= min },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must contain at least %d item(s)", min)},
	}
}

// NonNegative fails for amounts below zero.
func NonNegative(field string, value decimal.Decimal) Rule {
	return Rule{
		Check: func() bool { return !value.IsNegative() },
		Error: ValidationError{Field: field, Message: "must not be negative"},
	}
}

// DecimalRange fails when value is outside [min, max].
func DecimalRange(field string, value, min, max decimal.Decimal) Rule {
	return Rule{
		Check: func() bool { return value.GreaterThanOrEqual(min) && value.LessThanOrEqual(max) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be between %s and %s", min, max)},
	}
}

// CurrencyCode accepts three ASCII letters in either case.
func CurrencyCode(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if len(value) != 3 {
				return false
			}
			for _, c := range strings.ToLower(value) {
				if c < 'a' || c > 'z' {
					return false
				}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: "must be a 3-letter ISO 4217 currency code"},
	}
}

// OneOf fails when value is not among allowed.
func OneOf[T comparable](field string, value T, allowed ...T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", allowed)},
	}
}

// When applies rule only if cond holds.
func When(cond bool, rule Rule) Rule {
	return Rule{
		Check: func() bool { return !cond || rule.Check() },
		Error: rule.Error,
	}
}

// MaxDecimalPlaces fails when value carries more than places fractional digits.
func MaxDecimalPlaces(field string, value decimal.Decimal, places int32) Rule {
	return Rule{
		Check: func() bool { return value.Equal(value.Truncate(places)) },
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must have at most %d decimal places", places)},
	}
}
