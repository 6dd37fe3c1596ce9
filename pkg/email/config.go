package email

// Config holds mail transport settings.
// With DevMode set, messages are written to DevDir instead of being sent.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"invoices@invoicely.local"`
	SenderName           string `env:"SENDER_NAME" envDefault:"Invoicely"`
	DevMode              bool   `env:"EMAIL_DEV_MODE" envDefault:"true"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
