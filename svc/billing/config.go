package billing

import "time"

// Config holds Stripe credentials and the subscription price table.
type Config struct {
	SecretKey     string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	PriceMonthly  string        `env:"STRIPE_PRICE_MONTHLY,required"`
	PriceAnnual   string        `env:"STRIPE_PRICE_ANNUAL,required"`
	EventTTL      time.Duration `env:"STRIPE_EVENT_TTL" envDefault:"72h"`
}

// Prices returns the price table described by cfg.
func (c Config) Prices() PriceTable {
	return PriceTable{Monthly: c.PriceMonthly, Annual: c.PriceAnnual}
}
