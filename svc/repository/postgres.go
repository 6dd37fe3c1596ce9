package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/invoicely/pkg/pg"
	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/invoice"
)

// Postgres implements every store interface on a pgx pool. Uniqueness of
// emails and slugs is enforced by the schema; constraint violations are
// translated to the owning package's sentinel errors.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	if pool == nil {
		panic("repository: pgx pool is required")
	}
	return &Postgres{pool: pool}
}

const userColumns = `id, name, email, password_hash, plan,
	COALESCE(subscription_status, ''), subscription_period_start, subscription_period_end,
	subscription_cancel_at_period_end, invoices_sent_this_month,
	COALESCE(customer_id, ''), COALESCE(subscription_id, ''), COALESCE(price_id, ''),
	COALESCE(connected_account_id, ''), COALESCE(connected_account_status, ''), COALESCE(connect_onboarding_url, ''),
	created_at, updated_at`

func scanUser(row pgx.Row) (*account.User, error) {
	var (
		u                           account.User
		plan, subStatus, payoutStat string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &plan,
		&subStatus, &u.PeriodStart, &u.PeriodEnd,
		&u.CancelAtPeriodEnd, &u.InvoicesSentThisMonth,
		&u.CustomerID, &u.SubscriptionID, &u.PriceID,
		&u.ConnectedAccountID, &payoutStat, &u.OnboardingURL,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, account.ErrUserNotFound
		}
		return nil, err
	}
	u.Plan = account.ParsePlan(plan)
	u.SubscriptionStatus = account.ParseSubscriptionStatus(subStatus)
	u.ConnectedAccountStatus = account.ParsePayoutStatus(payoutStat)
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *account.User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, plan, subscription_status,
			invoices_sent_this_month, customer_id, subscription_id, price_id,
			connected_account_id, connected_account_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
			NULLIF($11, ''), NULLIF($12, ''), $13, $14)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Plan), string(u.SubscriptionStatus),
		u.InvoicesSentThisMonth, u.CustomerID, u.SubscriptionID, u.PriceID,
		u.ConnectedAccountID, string(u.ConnectedAccountStatus), u.CreatedAt, u.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == "users_email_key" {
		return account.ErrEmailTaken
	}
	return err
}

func (p *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*account.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*account.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (p *Postgres) GetUserByCustomerID(ctx context.Context, customerID string) (*account.User, error) {
	if customerID == "" {
		return nil, account.ErrUserNotFound
	}
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = $1`, customerID))
}

func (p *Postgres) GetUserBySubscriptionID(ctx context.Context, subscriptionID string) (*account.User, error) {
	if subscriptionID == "" {
		return nil, account.ErrUserNotFound
	}
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE subscription_id = $1`, subscriptionID))
}

func (p *Postgres) ResetInvoiceCounters(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE users SET invoices_sent_this_month = 0, updated_at = now()
		WHERE invoices_sent_this_month <> 0`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) UpdateBilling(ctx context.Context, u *account.User) error {
	return p.execUser(ctx, `
		UPDATE users SET
			plan = $2,
			subscription_status = NULLIF($3, ''),
			subscription_period_start = $4,
			subscription_period_end = $5,
			subscription_cancel_at_period_end = $6,
			customer_id = NULLIF($7, ''),
			subscription_id = NULLIF($8, ''),
			price_id = NULLIF($9, ''),
			updated_at = $10
		WHERE id = $1`,
		u.ID, string(u.Plan), string(u.SubscriptionStatus), u.PeriodStart, u.PeriodEnd,
		u.CancelAtPeriodEnd, u.CustomerID, u.SubscriptionID, u.PriceID, u.UpdatedAt,
	)
}

func (p *Postgres) SetCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	return p.execUser(ctx, `
		UPDATE users SET customer_id = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		userID, customerID,
	)
}

func (p *Postgres) UpdatePayoutAccount(ctx context.Context, userID uuid.UUID, accountID string, status account.PayoutStatus, onboardingURL string) error {
	return p.execUser(ctx, `
		UPDATE users SET
			connected_account_id = NULLIF($2, ''),
			connected_account_status = NULLIF($3, ''),
			connect_onboarding_url = NULLIF($4, ''),
			updated_at = now()
		WHERE id = $1`,
		userID, accountID, string(status), onboardingURL,
	)
}

func (p *Postgres) execUser(ctx context.Context, sql string, args ...any) error {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

const invoiceColumns = `id, slug, user_id, client_name, client_email, items,
	subtotal, tax_rate, tax, total, currency, status, due_date, paid_at,
	COALESCE(checkout_session_id, ''), COALESCE(payment_intent_id, ''),
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var (
		inv    invoice.Invoice
		items  []byte
		status string
	)
	err := row.Scan(
		&inv.ID, &inv.Slug, &inv.UserID, &inv.ClientName, &inv.ClientEmail, &items,
		&inv.Subtotal, &inv.TaxRate, &inv.Tax, &inv.Total, &inv.Currency, &status, &inv.DueDate, &inv.PaidAt,
		&inv.CheckoutSessionID, &inv.PaymentIntentID,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, invoice.ErrInvoiceNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("decode items of invoice %s: %w", inv.ID, err)
	}
	inv.Status = invoice.ParseStatus(status)
	return &inv, nil
}

func (p *Postgres) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

// InsertInvoice charges the free allowance, when charge is set, and inserts
// the invoice in one transaction. The charge is a conditional increment, so
// concurrent creations cannot push the counter past the limit.
func (p *Postgres) InsertInvoice(ctx context.Context, inv *invoice.Invoice, charge *invoice.UsageCharge) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}

	err = pg.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		if charge != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE users SET invoices_sent_this_month = invoices_sent_this_month + 1
				WHERE id = $1 AND invoices_sent_this_month < $2`,
				charge.UserID, charge.Limit,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return invoice.ErrUsageLimitReached
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, slug, user_id, client_name, client_email, items,
				subtotal, tax_rate, tax, total, currency, status, due_date, paid_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			inv.ID, inv.Slug, inv.UserID, inv.ClientName, inv.ClientEmail, items,
			inv.Subtotal, inv.TaxRate, inv.Tax, inv.Total, inv.Currency, string(inv.Status),
			inv.DueDate, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt,
		)
		return err
	})
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == "invoices_slug_key":
		return invoice.ErrSlugTaken
	case pg.IsForeignKeyViolationError(err):
		return account.ErrUserNotFound
	default:
		return err
	}
}

func (p *Postgres) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return scanInvoice(p.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
}

func (p *Postgres) GetInvoiceBySlug(ctx context.Context, slug string) (*invoice.Invoice, error) {
	return scanInvoice(p.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE slug = $1`, slug))
}

func (p *Postgres) ListInvoices(ctx context.Context, userID uuid.UUID) ([]*invoice.Invoice, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*invoice.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// TransitionStatus moves the invoice to `to` only while its status is one of
// from. It reports false when the row was in another status.
func (p *Postgres) TransitionStatus(ctx context.Context, id uuid.UUID, from []invoice.Status, to invoice.Status, at time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE invoices SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`,
		id, string(to), at, statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return p.applied(ctx, id, tag.RowsAffected())
}

// MarkPaid stamps paid_at only on the first confirmation; a redelivered
// payment leaves the row untouched.
func (p *Postgres) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string, from []invoice.Status, at time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE invoices SET
			status = 'paid',
			paid_at = $3,
			payment_intent_id = COALESCE(NULLIF($2, ''), payment_intent_id),
			updated_at = $3
		WHERE id = $1 AND status = ANY($4)`,
		id, paymentIntentID, at, statusStrings(from),
	)
	if err != nil {
		return false, err
	}
	return p.applied(ctx, id, tag.RowsAffected())
}

func (p *Postgres) applied(ctx context.Context, id uuid.UUID, rows int64) (bool, error) {
	if rows > 0 {
		return true, nil
	}
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, invoice.ErrInvoiceNotFound
	}
	return false, nil
}

func (p *Postgres) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE invoices SET checkout_session_id = $2, updated_at = $3 WHERE id = $1`,
		id, sessionID, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound
	}
	return nil
}

func (p *Postgres) InvoiceStats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (*invoice.Stats, error) {
	var (
		stats   invoice.Stats
		revenue decimal.NullDecimal
	)
	err := p.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'paid'),
			sum(total) FILTER (WHERE status = 'paid'),
			count(*) FILTER (WHERE created_at >= $2)
		FROM invoices
		WHERE user_id = $1`,
		userID, monthStart,
	).Scan(&stats.TotalInvoices, &stats.PaidInvoices, &revenue, &stats.InvoicesThisMonth)
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = decimal.Zero
	if revenue.Valid {
		stats.TotalRevenue = revenue.Decimal
	}
	return &stats, nil
}

func (p *Postgres) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `
		SELECT count(*) FROM invoices
		WHERE status = 'overdue' OR (status = 'unpaid' AND due_date < $1)`,
		now,
	).Scan(&n)
	return n, err
}

func statusStrings(statuses []invoice.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
