package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/dmitrymomot/invoicely/svc/invoice"
	"github.com/dmitrymomot/invoicely/svc/payout"
)

// MetadataUserID links processor customers back to users.
const MetadataUserID = "user_id"

// StripeProvider talks to the Stripe API. It serves subscription billing,
// invoice checkout and Connect onboarding.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider builds a provider from cfg. backends may be nil to use
// the default Stripe endpoints.
func NewStripeProvider(cfg Config, backends *stripe.Backends) *StripeProvider {
	return &StripeProvider{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
	}
}

// VerifyWebhook checks the Stripe-Signature header against the endpoint
// secret.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (RawEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return RawEvent{}, err
	}
	raw := RawEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data != nil {
		raw.Object = event.Data.Raw
	}
	return raw, nil
}

// GetSubscription loads a subscription with its first price.
func (p *StripeProvider) GetSubscription(ctx context.Context, id string) (*SubscriptionObject, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}

	obj := &SubscriptionObject{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		obj.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodStart > 0 {
		obj.CurrentPeriodStart = stripe.Int64(sub.CurrentPeriodStart)
	}
	if sub.CurrentPeriodEnd > 0 {
		obj.CurrentPeriodEnd = stripe.Int64(sub.CurrentPeriodEnd)
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		obj.PriceID = sub.Items.Data[0].Price.ID
	}
	return obj, nil
}

// FindOrCreateCustomer reuses an existing customer with the same email.
func (p *StripeProvider) FindOrCreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	list := &stripe.CustomerListParams{Email: stripe.String(req.Email)}
	list.Context = ctx
	list.Limit = stripe.Int64(1)
	it := p.api.Customers.List(list)
	if it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(req.Email),
		Name:  stripe.String(req.Name),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID.String())
	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateSubscriptionCheckout(ctx context.Context, req SubscriptionCheckoutRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: req.UserID.String()},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID.String())

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*Session, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// CreateInvoiceCheckout creates a payment-mode session whose funds go to the
// merchant's connected account. The invoice id is stored on both the session
// and the payment intent so either webhook can reconcile it.
func (p *StripeProvider) CreateInvoiceCheckout(ctx context.Context, req invoice.CheckoutRequest) (*invoice.CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return nil, errors.New("checkout amount must be positive")
	}
	ref := req.InvoiceID.String()
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(req.DestinationAccount),
			},
			Metadata: map[string]string{MetadataInvoiceID: ref},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataInvoiceID, ref)

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &invoice.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreateConnectedAccount creates an Express account able to take card
// payments and receive transfers.
func (p *StripeProvider) CreateConnectedAccount(ctx context.Context, email string) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	acct, err := p.api.Accounts.New(params)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func (p *StripeProvider) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		return "", err
	}
	return link.URL, nil
}

func (p *StripeProvider) GetConnectedAccount(ctx context.Context, accountID string) (*payout.AccountState, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := p.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, err
	}
	state := &payout.AccountState{
		ID:             acct.ID,
		ChargesEnabled: acct.ChargesEnabled,
		PayoutsEnabled: acct.PayoutsEnabled,
	}
	if acct.Requirements != nil {
		state.CurrentlyDue = acct.Requirements.CurrentlyDue
	}
	return state, nil
}
