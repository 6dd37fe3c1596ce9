package billing_test

import (
	"context"
	"errors"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/invoicely/pkg/email"
	"github.com/dmitrymomot/invoicely/svc/billing"
	"github.com/dmitrymomot/invoicely/svc/invoice"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) VerifyWebhook(payload []byte, signature string) (billing.RawEvent, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(billing.RawEvent), args.Error(1)
}

func (m *MockProvider) GetSubscription(ctx context.Context, id string) (*billing.SubscriptionObject, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.SubscriptionObject), args.Error(1)
}

func (m *MockProvider) FindOrCreateCustomer(ctx context.Context, req billing.CustomerRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreateSubscriptionCheckout(ctx context.Context, req billing.SubscriptionCheckoutRequest) (*billing.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Session), args.Error(1)
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*billing.Session, error) {
	args := m.Called(ctx, customerID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Session), args.Error(1)
}

type MockEventLog struct {
	mock.Mock
}

func (m *MockEventLog) Seen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEventLog) MarkProcessed(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

// Webhook processing never opens checkouts or sends mail.
type unusedCheckout struct{}

func (unusedCheckout) CreateInvoiceCheckout(context.Context, invoice.CheckoutRequest) (*invoice.CheckoutSession, error) {
	return nil, errors.New("unexpected checkout")
}

type unusedMailer struct{}

func (unusedMailer) SendEmail(context.Context, email.SendEmailParams) error {
	return errors.New("unexpected email")
}
