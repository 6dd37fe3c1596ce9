package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Stripe event types the reconciler acts on.
const (
	TypeCheckoutSessionCompleted = "checkout.session.completed"
	TypeSubscriptionUpdated      = "customer.subscription.updated"
	TypeSubscriptionDeleted      = "customer.subscription.deleted"
	TypePaymentIntentSucceeded   = "payment_intent.succeeded"
)

// MetadataInvoiceID is the metadata key that links a payment to an invoice.
const MetadataInvoiceID = "invoice_id"

// RawEvent is a verified but undecoded webhook delivery.
type RawEvent struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// Envelope is a decoded event.
type Envelope struct {
	ID      string
	Type    string
	Created time.Time
	Event   Event
}

// Event is one of the variants below. The set is closed.
type Event interface {
	Kind() string
	isEvent()
}

// SubscriptionCheckoutCompleted is a finished subscription-mode checkout.
type SubscriptionCheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
}

// InvoiceCheckoutCompleted is a finished payment-mode checkout.
// InvoiceRef is empty when the session carries no invoice metadata.
type InvoiceCheckoutCompleted struct {
	SessionID       string
	InvoiceRef      string
	PaymentIntentID string
}

// SubscriptionUpdated carries the subscription as it is after the change.
type SubscriptionUpdated struct {
	Subscription SubscriptionObject
}

// SubscriptionDeleted reports a subscription that ended.
type SubscriptionDeleted struct {
	SubscriptionID string
	CustomerID     string
}

// PaymentSucceeded is a direct payment intent success.
type PaymentSucceeded struct {
	PaymentIntentID string
	InvoiceRef      string
}

// Ignored is any event kind the reconciler does not act on.
type Ignored struct {
	Type string
}

func (SubscriptionCheckoutCompleted) Kind() string { return "subscription_checkout" }
func (InvoiceCheckoutCompleted) Kind() string      { return "invoice_checkout" }
func (SubscriptionUpdated) Kind() string           { return "subscription_updated" }
func (SubscriptionDeleted) Kind() string           { return "subscription_deleted" }
func (PaymentSucceeded) Kind() string              { return "payment_succeeded" }
func (Ignored) Kind() string                       { return "ignored" }

func (SubscriptionCheckoutCompleted) isEvent() {}
func (InvoiceCheckoutCompleted) isEvent()      {}
func (SubscriptionUpdated) isEvent()           {}
func (SubscriptionDeleted) isEvent()           {}
func (PaymentSucceeded) isEvent()              {}
func (Ignored) isEvent()                       {}

// Decode validates the payload shape for the event's type and returns the
// matching variant. Unknown types decode to Ignored. A recognised type with
// a payload that cannot be decoded is ErrMalformedEvent.
func Decode(raw RawEvent) (Envelope, error) {
	env := Envelope{ID: raw.ID, Type: raw.Type, Created: raw.Created}

	var err error
	switch raw.Type {
	case TypeCheckoutSessionCompleted:
		env.Event, err = decodeCheckoutSession(raw.Object)
	case TypeSubscriptionUpdated:
		var obj subscriptionPayload
		if err = decodeObject(raw.Object, &obj); err == nil {
			env.Event = SubscriptionUpdated{Subscription: obj.toObject()}
		}
	case TypeSubscriptionDeleted:
		var obj subscriptionPayload
		if err = decodeObject(raw.Object, &obj); err == nil {
			env.Event = SubscriptionDeleted{SubscriptionID: obj.ID, CustomerID: string(obj.Customer)}
		}
	case TypePaymentIntentSucceeded:
		var obj paymentIntentPayload
		if err = decodeObject(raw.Object, &obj); err == nil {
			env.Event = PaymentSucceeded{PaymentIntentID: obj.ID, InvoiceRef: obj.Metadata[MetadataInvoiceID]}
		}
	default:
		env.Event = Ignored{Type: raw.Type}
	}
	if err != nil {
		return env, errors.Join(ErrMalformedEvent, fmt.Errorf("%s %s: %w", raw.Type, raw.ID, err))
	}
	return env, nil
}

func decodeCheckoutSession(data json.RawMessage) (Event, error) {
	var obj checkoutSessionPayload
	if err := decodeObject(data, &obj); err != nil {
		return nil, err
	}
	switch obj.Mode {
	case "subscription":
		if obj.Subscription == "" {
			return nil, errors.New("subscription checkout without subscription id")
		}
		return SubscriptionCheckoutCompleted{
			SessionID:      obj.ID,
			CustomerID:     string(obj.Customer),
			SubscriptionID: string(obj.Subscription),
		}, nil
	case "payment":
		return InvoiceCheckoutCompleted{
			SessionID:       obj.ID,
			InvoiceRef:      obj.Metadata[MetadataInvoiceID],
			PaymentIntentID: string(obj.PaymentIntent),
		}, nil
	default:
		return Ignored{Type: TypeCheckoutSessionCompleted + ":" + obj.Mode}, nil
	}
}

func decodeObject(data json.RawMessage, v interface{ valid() error }) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty object")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	return v.valid()
}

// expandableID decodes a Stripe reference that is either an id string or an
// expanded object with an "id" field.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*e = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	default:
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*e = expandableID(obj.ID)
		return nil
	}
}

type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      expandableID      `json:"customer"`
	Subscription  expandableID      `json:"subscription"`
	PaymentIntent expandableID      `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

func (p *checkoutSessionPayload) valid() error {
	if p.ID == "" {
		return errors.New("missing session id")
	}
	return nil
}

type subscriptionPayload struct {
	ID                 string       `json:"id"`
	Customer           expandableID `json:"customer"`
	Status             string       `json:"status"`
	CurrentPeriodStart *int64       `json:"current_period_start"`
	CurrentPeriodEnd   *int64       `json:"current_period_end"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			CurrentPeriodStart *int64 `json:"current_period_start"`
			CurrentPeriodEnd   *int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (p *subscriptionPayload) valid() error {
	if p.ID == "" {
		return errors.New("missing subscription id")
	}
	return nil
}

// toObject flattens the payload. Newer API versions moved the billing period
// onto subscription items, so the first item fills in a missing top-level
// period.
func (p *subscriptionPayload) toObject() SubscriptionObject {
	obj := SubscriptionObject{
		ID:                 p.ID,
		CustomerID:         string(p.Customer),
		Status:             p.Status,
		CurrentPeriodStart: p.CurrentPeriodStart,
		CurrentPeriodEnd:   p.CurrentPeriodEnd,
		CancelAtPeriodEnd:  p.CancelAtPeriodEnd,
	}
	if len(p.Items.Data) > 0 {
		item := p.Items.Data[0]
		obj.PriceID = item.Price.ID
		if obj.CurrentPeriodStart == nil {
			obj.CurrentPeriodStart = item.CurrentPeriodStart
		}
		if obj.CurrentPeriodEnd == nil {
			obj.CurrentPeriodEnd = item.CurrentPeriodEnd
		}
	}
	return obj
}

type paymentIntentPayload struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (p *paymentIntentPayload) valid() error {
	if p.ID == "" {
		return errors.New("missing payment intent id")
	}
	return nil
}
