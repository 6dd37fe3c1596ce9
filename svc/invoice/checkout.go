package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/qrcode"
	"github.com/dmitrymomot/invoicely/svc/account"
)

// CheckoutRequest describes a one-off payment for an invoice. Funds are
// transferred to DestinationAccount.
type CheckoutRequest struct {
	InvoiceID          uuid.UUID
	Description        string
	AmountCents        int64
	Currency           string
	CustomerEmail      string
	DestinationAccount string
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession is a hosted payment page.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// CheckoutProvider creates hosted payment pages.
type CheckoutProvider interface {
	CreateInvoiceCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// Checkout starts a payment for the invoice with the given slug. It refuses
// invoices that cannot be paid and merchants that cannot receive payouts.
func (s *Service) Checkout(ctx context.Context, slug string) (*CheckoutSession, error) {
	inv, err := s.store.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := payable(inv); err != nil {
		return nil, err
	}
	owner, err := s.users.GetUserByID(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}
	switch {
	case owner.ConnectedAccountID == "":
		return nil, ErrPayoutNotConnected
	case owner.ConnectedAccountStatus != account.PayoutActive:
		return nil, ErrPayoutNotActive
	}

	sess, err := s.checkout.CreateInvoiceCheckout(ctx, CheckoutRequest{
		InvoiceID:          inv.ID,
		Description:        "Invoice #" + inv.Slug,
		AmountCents:        inv.AmountCents(),
		Currency:           inv.Currency,
		CustomerEmail:      inv.ClientEmail,
		DestinationAccount: owner.ConnectedAccountID,
		SuccessURL:         s.PublicURL(inv.Slug) + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:          s.PublicURL(inv.Slug),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "checkout session failed", logger.InvoiceID(inv.ID), logger.Error(err))
		return nil, errors.Join(ErrCheckoutFailed, err)
	}

	if err := s.store.SetCheckoutSession(ctx, inv.ID, sess.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return sess, nil
}

// Merchant is the part of the invoice owner a payer may see.
type Merchant struct {
	Name                   string               `json:"name"`
	Email                  string               `json:"email"`
	HasConnectedAccount    bool                 `json:"has_connected_account"`
	ConnectedAccountStatus account.PayoutStatus `json:"connected_account_status,omitempty"`
}

// PublicInvoice is the read-only view served at the invoice's public link.
type PublicInvoice struct {
	Slug        string          `json:"slug"`
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email"`
	Items       []Item          `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	Status      Status          `json:"status"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Merchant    Merchant        `json:"merchant"`
	CanPay      bool            `json:"can_pay"`
}

// CanPay reports whether inv, owned by owner, accepts online payment.
func CanPay(inv *Invoice, owner *account.User) bool {
	return payable(inv) == nil && owner.CanReceivePayments()
}

func payable(inv *Invoice) error {
	switch {
	case inv.Status == StatusPaid:
		return ErrAlreadyPaid
	case !CanTransition(inv.Status, TriggerPaymentConfirmed):
		return ErrNotPayable
	case inv.AmountCents() <= 0:
		return ErrNothingToPay
	}
	return nil
}

// Public returns the payer view of the invoice with the given slug.
func (s *Service) Public(ctx context.Context, slug string) (*PublicInvoice, error) {
	inv, err := s.store.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.GetUserByID(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}
	return &PublicInvoice{
		Slug:        inv.Slug,
		ClientName:  inv.ClientName,
		ClientEmail: inv.ClientEmail,
		Items:       inv.Items,
		Subtotal:    inv.Subtotal,
		TaxRate:     inv.TaxRate,
		Tax:         inv.Tax,
		Total:       inv.Total,
		Currency:    inv.Currency,
		Status:      inv.EffectiveStatus(s.now()),
		DueDate:     inv.DueDate,
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		Merchant: Merchant{
			Name:                   owner.Name,
			Email:                  owner.Email,
			HasConnectedAccount:    owner.ConnectedAccountID != "",
			ConnectedAccountStatus: owner.ConnectedAccountStatus,
		},
		CanPay: CanPay(inv, owner),
	}, nil
}

// QR renders a PNG QR code of the invoice's public link.
func (s *Service) QR(ctx context.Context, slug string, size int) ([]byte, error) {
	inv, err := s.store.GetInvoiceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.PNG(s.PublicURL(inv.Slug), size)
	if err != nil {
		return nil, errors.Join(ErrQRCodeFailed, err)
	}
	return png, nil
}
