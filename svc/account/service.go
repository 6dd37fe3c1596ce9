package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/invoicely/pkg/logger"
	"github.com/dmitrymomot/invoicely/pkg/token"
	"github.com/dmitrymomot/invoicely/pkg/validator"
)

// Storage defines the user persistence operations the account service needs.
type Storage interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ResetInvoiceCounters(ctx context.Context) (int64, error)
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

// WithTokenTTL sets how long issued access tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost sets the bcrypt cost for password hashing.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service handles registration, login and access tokens.
type Service struct {
	store       Storage
	tokenSecret string
	tokenTTL    time.Duration
	bcryptCost  int
	log         *slog.Logger
	now         func() time.Time
}

// NewService panics if store is nil or secret is empty.
func NewService(store Storage, secret string, opts ...Option) *Service {
	if store == nil {
		panic("account: storage is required")
	}
	if secret == "" {
		panic("account: token secret is required")
	}
	s := &Service{
		store:       store,
		tokenSecret: secret,
		tokenTTL:    7 * 24 * time.Hour,
		bcryptCost:  bcrypt.DefaultCost,
		log:         logger.Discard(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterParams is the input to Register.
type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p RegisterParams) Validate() error {
	return validator.Apply(
		validator.Required("name", p.Name),
		validator.MaxLen("name", p.Name, 120),
		validator.Required("email", p.Email),
		validator.ValidEmail("email", p.Email),
		validator.MinLen("password", p.Password, 8),
		validator.MaxLen("password", p.Password, 72),
	)
}

// Session is returned after successful registration or login.
type Session struct {
	User        *User     `json:"-"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Register creates a free-plan user and returns an access token.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*Session, error) {
	p.Email = normalizeEmail(p.Email)
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.bcryptCost)
	if err != nil {
		return nil, errors.Join(ErrHashPassword, err)
	}

	now := s.now().UTC()
	u := &User{
		ID:           uuid.New(),
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: string(hash),
		Plan:         PlanFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered", logger.UserID(u.ID))
	return s.issue(u)
}

// Login verifies credentials and returns an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Authenticate resolves the user an access token was issued to.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*User, error) {
	claims, err := token.Parse[accessClaims](accessToken, s.tokenSecret)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	return u, err
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// Summary describes a user's plan, subscription and current entitlement.
type Summary struct {
	Plan                  Plan               `json:"plan"`
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status,omitempty"`
	PeriodStart           *time.Time         `json:"current_period_start,omitempty"`
	PeriodEnd             *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd     bool               `json:"cancel_at_period_end"`
	InvoicesSentThisMonth int                `json:"invoices_sent_this_month"`
	CanCreateInvoice      bool               `json:"can_create_invoice"`
	Reason                string             `json:"reason,omitempty"`
}

// Summary returns the billing summary for the user with id.
func (s *Service) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := CanCreateInvoice(u.Usage())
	return &Summary{
		Plan:                  u.Plan,
		SubscriptionStatus:    u.SubscriptionStatus,
		PeriodStart:           u.PeriodStart,
		PeriodEnd:             u.PeriodEnd,
		CancelAtPeriodEnd:     u.CancelAtPeriodEnd,
		InvoicesSentThisMonth: u.InvoicesSentThisMonth,
		CanCreateInvoice:      d.Allowed,
		Reason:                d.Reason,
	}, nil
}

// ResetMonthlyUsage zeroes every user's monthly invoice counter.
func (s *Service) ResetMonthlyUsage(ctx context.Context) error {
	n, err := s.store.ResetInvoiceCounters(ctx)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "monthly invoice usage reset", slog.Int64("users", n))
	return nil
}

type accessClaims struct {
	UserID  uuid.UUID `json:"sub"`
	Expires time.Time `json:"exp"`
}

func (c accessClaims) ExpiresAt() time.Time { return c.Expires }

func (s *Service) issue(u *User) (*Session, error) {
	exp := s.now().UTC().Add(s.tokenTTL)
	tok, err := token.Generate(accessClaims{UserID: u.ID, Expires: exp}, s.tokenSecret)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: tok, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
