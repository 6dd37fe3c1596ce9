package invoice

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/dmitrymomot/invoicely/pkg/email"
	"github.com/dmitrymomot/invoicely/svc/account"
)

type notification struct {
	ClientName string
	SenderName string
	Slug       string
	Amount     string
	DueDate    string
	Link       string
}

func (s *Service) notify(ctx context.Context, owner *account.User, inv *Invoice) error {
	n := notification{
		ClientName: inv.ClientName,
		SenderName: owner.Name,
		Slug:       inv.Slug,
		Amount:     FormatAmount(inv.Total, inv.Currency),
		Link:       s.PublicURL(inv.Slug),
	}
	if inv.DueDate != nil {
		n.DueDate = inv.DueDate.Format("January 2, 2006")
	}

	body, err := email.Render(ctx, notificationBody(n))
	if err != nil {
		return err
	}
	return s.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   inv.ClientEmail,
		ReplyTo:  owner.Email,
		FromName: owner.Name,
		Subject:  fmt.Sprintf("Invoice #%s from %s", inv.Slug, owner.Name),
		BodyHTML: body,
		Tag:      "invoice",
	})
}

func notificationBody(n notification) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "<p>Hi %s,</p>", templ.EscapeString(n.ClientName))
		fmt.Fprintf(&b, "<p>%s has sent you invoice #%s for <strong>%s</strong>.</p>",
			templ.EscapeString(n.SenderName), templ.EscapeString(n.Slug), templ.EscapeString(n.Amount))
		if n.DueDate != "" {
			fmt.Fprintf(&b, "<p>Payment is due by %s.</p>", templ.EscapeString(n.DueDate))
		}
		fmt.Fprintf(&b, `<p><a href="%s">View and pay invoice</a></p>`, templ.EscapeString(n.Link))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// FormatAmount renders amount with the ISO code and the currency's minor
// unit, e.g. "USD 1,234.50" or "JPY 1,235". Digits come from the decimal
// itself, so large totals stay exact. Unknown codes use two decimals.
func FormatAmount(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}
	return code + " " + groupThousands(amount.StringFixed(int32(scale)))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
