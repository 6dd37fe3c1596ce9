// Package payout onboards users onto connected payout accounts so their
// invoices can be paid online.
package payout

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/svc/account"
)

// AccountState is the processor's view of a connected account.
type AccountState struct {
	ID             string
	ChargesEnabled bool
	PayoutsEnabled bool
	CurrentlyDue   []string
}

// Provider creates and inspects connected accounts.
type Provider interface {
	CreateConnectedAccount(ctx context.Context, email string) (string, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	GetConnectedAccount(ctx context.Context, accountID string) (*AccountState, error)
}

// Storage persists the connected account on the user.
type Storage interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*account.User, error)
	UpdatePayoutAccount(ctx context.Context, userID uuid.UUID, accountID string, status account.PayoutStatus, onboardingURL string) error
}

// Status describes a user's payout setup.
type Status struct {
	AccountID     string               `json:"account_id,omitempty"`
	Status        account.PayoutStatus `json:"status"`
	OnboardingURL string               `json:"onboarding_url,omitempty"`
	CurrentlyDue  []string             `json:"currently_due,omitempty"`
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithBaseURL(u string) Option {
	return func(s *Service) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

type Service struct {
	store    Storage
	provider Provider
	baseURL  string
	log      *slog.Logger
}

func NewService(store Storage, provider Provider, opts ...Option) *Service {
	if store == nil {
		panic("payout: storage is required")
	}
	if provider == nil {
		panic("payout: provider is required")
	}
	s := &Service{
		store:    store,
		provider: provider,
		baseURL:  "http://localhost:8080",
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect creates the user's connected account if needed and returns an
// onboarding link. An already active account is returned without a link.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID) (*Status, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.ConnectedAccountID != "" && u.ConnectedAccountStatus == account.PayoutActive {
		return statusOf(u), nil
	}

	accountID := u.ConnectedAccountID
	if accountID == "" {
		accountID, err = s.provider.CreateConnectedAccount(ctx, u.Email)
		if err != nil {
			return nil, errors.Join(ErrProviderUnavailable, err)
		}
		if err := s.store.UpdatePayoutAccount(ctx, u.ID, accountID, account.PayoutPending, ""); err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "connected account created", logger.UserID(u.ID), slog.String("account_id", accountID))
	}

	link, err := s.provider.CreateOnboardingLink(ctx, accountID,
		s.baseURL+"/dashboard/settings?stripe=refresh",
		s.baseURL+"/dashboard/settings?stripe=return",
	)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	if err := s.store.UpdatePayoutAccount(ctx, u.ID, accountID, account.PayoutPending, link); err != nil {
		return nil, err
	}
	return &Status{AccountID: accountID, Status: account.PayoutPending, OnboardingURL: link}, nil
}

// Status returns the stored payout setup.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return statusOf(u), nil
}

// Refresh pulls the account from the processor. It is active only when both
// charges and payouts are enabled.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) (*Status, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.ConnectedAccountID == "" {
		return nil, ErrNotConnected
	}

	state, err := s.provider.GetConnectedAccount(ctx, u.ConnectedAccountID)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	status := account.PayoutPending
	link := u.OnboardingURL
	if state.ChargesEnabled && state.PayoutsEnabled {
		status = account.PayoutActive
		link = ""
	}
	if err := s.store.UpdatePayoutAccount(ctx, u.ID, u.ConnectedAccountID, status, link); err != nil {
		return nil, err
	}
	if status != u.ConnectedAccountStatus {
		s.log.InfoContext(ctx, "payout status changed", logger.UserID(u.ID), slog.String("status", string(status)))
	}
	return &Status{
		AccountID:     u.ConnectedAccountID,
		Status:        status,
		OnboardingURL: link,
		CurrentlyDue:  state.CurrentlyDue,
	}, nil
}

func statusOf(u *account.User) *Status {
	return &Status{
		AccountID:     u.ConnectedAccountID,
		Status:        u.ConnectedAccountStatus,
		OnboardingURL: u.OnboardingURL,
	}
}
