package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/svc/account"
	"github.com/dmitrymomot/invoicely/svc/invoice"
)

// Outcome classifies how an event was handled. Only OutcomeFailed asks the
// sender to redeliver.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// UserStore is the user persistence the reconciler and checkout flows need.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*account.User, error)
	GetUserByCustomerID(ctx context.Context, customerID string) (*account.User, error)
	GetUserBySubscriptionID(ctx context.Context, subscriptionID string) (*account.User, error)
	UpdateBilling(ctx context.Context, u *account.User) error
	SetCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// PaymentConfirmer marks invoices paid. It must be idempotent and report
// invoice.ErrInvoiceNotFound for unknown ids.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error)
}

// SubscriptionFetcher loads a subscription from the processor.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*SubscriptionObject, error)
}

// Reconciler applies decoded events to stored users and invoices. Every
// effect is idempotent, so redelivered and reordered events are safe.
type Reconciler struct {
	users    UserStore
	payments PaymentConfirmer
	subs     SubscriptionFetcher
	prices   PriceTable
	log      *slog.Logger
	now      func() time.Time
}

// NewReconciler panics on nil collaborators.
func NewReconciler(users UserStore, payments PaymentConfirmer, subs SubscriptionFetcher, prices PriceTable, log *slog.Logger) *Reconciler {
	if users == nil || payments == nil || subs == nil {
		panic("billing: reconciler collaborators are required")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Reconciler{
		users:    users,
		payments: payments,
		subs:     subs,
		prices:   prices,
		log:      log,
		now:      time.Now,
	}
}

// Handle applies env. A missing user or invoice is OutcomeNoMatch with a nil
// error: such events can never succeed and must not be retried.
func (r *Reconciler) Handle(ctx context.Context, env Envelope) (Outcome, error) {
	log := r.log.With(logger.EventID(env.ID), logger.EventType(env.Type))

	switch e := env.Event.(type) {
	case SubscriptionCheckoutCompleted:
		return r.subscriptionCheckout(ctx, log, e)
	case InvoiceCheckoutCompleted:
		return r.invoicePaid(ctx, log, e.InvoiceRef, e.PaymentIntentID)
	case SubscriptionUpdated:
		return r.subscriptionUpdated(ctx, log, e)
	case SubscriptionDeleted:
		return r.subscriptionDeleted(ctx, log, e)
	case PaymentSucceeded:
		return r.invoicePaid(ctx, log, e.InvoiceRef, e.PaymentIntentID)
	case Ignored:
		log.DebugContext(ctx, "webhook event ignored")
		return OutcomeIgnored, nil
	default:
		return OutcomeFailed, fmt.Errorf("%w: unexpected event variant %T", ErrMalformedEvent, e)
	}
}

func (r *Reconciler) subscriptionCheckout(ctx context.Context, log *slog.Logger, e SubscriptionCheckoutCompleted) (Outcome, error) {
	sub, err := r.subs.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return OutcomeFailed, errors.Join(ErrProviderUnavailable, err)
	}
	customerID := e.CustomerID
	if customerID == "" {
		customerID = sub.CustomerID
	}

	u, err := r.users.GetUserByCustomerID(ctx, customerID)
	if errors.Is(err, account.ErrUserNotFound) {
		log.WarnContext(ctx, "no user for customer", slog.String("customer_id", customerID))
		return OutcomeNoMatch, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	fields := r.mapSubscription(ctx, log, *sub)
	if fields.Ended() {
		// Late delivery after the subscription was deleted or replaced.
		return r.endedSubscription(ctx, log, u, fields)
	}
	fields.Apply(u)
	return r.saveBilling(ctx, log, u)
}

func (r *Reconciler) subscriptionUpdated(ctx context.Context, log *slog.Logger, e SubscriptionUpdated) (Outcome, error) {
	u, err := r.users.GetUserBySubscriptionID(ctx, e.Subscription.ID)
	if errors.Is(err, account.ErrUserNotFound) {
		log.WarnContext(ctx, "no user for subscription", slog.String("subscription_id", e.Subscription.ID))
		return OutcomeNoMatch, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	fields := r.mapSubscription(ctx, log, e.Subscription)
	if fields.Ended() {
		return r.endedSubscription(ctx, log, u, fields)
	}
	fields.ApplyStatus(u)
	if e.Subscription.PriceID != "" && !fields.PlanFromFallback {
		// Plan switches made in the billing portal arrive as updates.
		u.Plan = fields.Plan
		u.PriceID = fields.PriceID
	}
	return r.saveBilling(ctx, log, u)
}

func (r *Reconciler) subscriptionDeleted(ctx context.Context, log *slog.Logger, e SubscriptionDeleted) (Outcome, error) {
	u, err := r.users.GetUserBySubscriptionID(ctx, e.SubscriptionID)
	if errors.Is(err, account.ErrUserNotFound) {
		log.WarnContext(ctx, "no user for subscription", slog.String("subscription_id", e.SubscriptionID))
		return OutcomeNoMatch, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	endSubscription(u, account.SubscriptionCanceled)
	return r.saveBilling(ctx, log, u)
}

// endedSubscription applies a terminal subscription to u. A user who has
// since moved to another subscription is left alone.
func (r *Reconciler) endedSubscription(ctx context.Context, log *slog.Logger, u *account.User, fields SubscriptionFields) (Outcome, error) {
	if u.SubscriptionID != "" && u.SubscriptionID != fields.SubscriptionID {
		log.InfoContext(ctx, "ended subscription superseded",
			logger.UserID(u.ID),
			slog.String("subscription_id", fields.SubscriptionID),
		)
		return OutcomeUnchanged, nil
	}
	if u.SubscriptionID == "" && u.Plan == account.PlanFree && u.SubscriptionStatus == fields.Status {
		return OutcomeUnchanged, nil
	}
	endSubscription(u, fields.Status)
	return r.saveBilling(ctx, log, u)
}

func (r *Reconciler) invoicePaid(ctx context.Context, log *slog.Logger, ref, paymentIntentID string) (Outcome, error) {
	if ref == "" {
		log.InfoContext(ctx, "payment without invoice reference")
		return OutcomeNoMatch, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		log.WarnContext(ctx, "payment references malformed invoice id", slog.String("invoice_ref", ref))
		return OutcomeNoMatch, nil
	}

	applied, err := r.payments.ConfirmPayment(ctx, id, paymentIntentID)
	if errors.Is(err, invoice.ErrInvoiceNotFound) {
		log.WarnContext(ctx, "payment references unknown invoice", logger.InvoiceID(id))
		return OutcomeNoMatch, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if !applied {
		return OutcomeUnchanged, nil
	}
	log.InfoContext(ctx, "invoice marked paid", logger.InvoiceID(id))
	return OutcomeApplied, nil
}

func (r *Reconciler) mapSubscription(ctx context.Context, log *slog.Logger, sub SubscriptionObject) SubscriptionFields {
	fields := MapSubscription(sub, r.prices)
	if fields.PlanFromFallback {
		log.WarnContext(ctx, "unknown price id, using fallback plan",
			slog.String("price_id", sub.PriceID),
			slog.String("plan", string(fields.Plan)),
		)
	}
	return fields
}

func (r *Reconciler) saveBilling(ctx context.Context, log *slog.Logger, u *account.User) (Outcome, error) {
	u.UpdatedAt = r.now().UTC()
	if err := r.users.UpdateBilling(ctx, u); err != nil {
		return OutcomeFailed, err
	}
	log.InfoContext(ctx, "billing updated",
		logger.UserID(u.ID),
		slog.String("plan", string(u.Plan)),
		slog.String("status", string(u.SubscriptionStatus)),
	)
	return OutcomeApplied, nil
}
