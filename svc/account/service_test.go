package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/invoicely/pkg/validator"
	"github.com/dmitrymomot/invoicely/svc/account"
)

const testSecret = "test-secret"

func newService(store account.Storage, opts ...account.Option) *account.Service {
	opts = append([]account.Option{account.WithBcryptCost(bcrypt.MinCost)}, opts...)
	return account.NewService(store, testSecret, opts...)
}

func TestNewService(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { account.NewService(nil, testSecret) })
	assert.Panics(t, func() { account.NewService(&MockStorage{}, "") })
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates a free user and issues a token", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *account.User) bool {
			return u.Email == "jane@example.com" &&
				u.Name == "Jane" &&
				u.Plan == account.PlanFree &&
				u.InvoicesSentThisMonth == 0 &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")) == nil
		})).Return(nil)

		sess, err := newService(store).Register(context.Background(), account.RegisterParams{
			Name:     " Jane ",
			Email:    "  Jane@Example.com",
			Password: "s3cret-pass",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, sess.AccessToken)
		assert.Equal(t, "jane@example.com", sess.User.Email)
		store.AssertExpectations(t)
	})

	t.Run("rejects invalid input before touching storage", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}

		_, err := newService(store).Register(context.Background(), account.RegisterParams{
			Email:    "not-an-email",
			Password: "short",
		})
		require.Error(t, err)
		ve := validator.Extract(err)
		assert.True(t, ve.Has("name"))
		assert.True(t, ve.Has("email"))
		assert.True(t, ve.Has("password"))
		store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("propagates duplicate email", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("CreateUser", mock.Anything, mock.Anything).Return(account.ErrEmailTaken)

		_, err := newService(store).Register(context.Background(), account.RegisterParams{
			Name:     "Jane",
			Email:    "jane@example.com",
			Password: "s3cret-pass",
		})
		assert.ErrorIs(t, err, account.ErrEmailTaken)
	})
}

func TestService_LoginAndAuthenticate(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &account.User{ID: uuid.New(), Email: "jane@example.com", PasswordHash: string(hash), Plan: account.PlanFree}

	t.Run("valid credentials round-trip through the token", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("GetUserByEmail", mock.Anything, "jane@example.com").Return(user, nil)
		store.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)
		svc := newService(store)

		sess, err := svc.Login(context.Background(), "JANE@example.com ", "s3cret-pass")
		require.NoError(t, err)

		got, err := svc.Authenticate(context.Background(), sess.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("GetUserByEmail", mock.Anything, "jane@example.com").Return(user, nil)

		_, err := newService(store).Login(context.Background(), "jane@example.com", "nope-nope")
		assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	})

	t.Run("unknown email looks like wrong password", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, account.ErrUserNotFound)

		_, err := newService(store).Login(context.Background(), "ghost@example.com", "whatever1")
		assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	})

	t.Run("storage failure is not masked", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("db down")
		store := &MockStorage{}
		store.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, boom)

		_, err := newService(store).Login(context.Background(), "jane@example.com", "s3cret-pass")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("garbage and expired tokens are rejected", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)

		_, err := newService(store).Authenticate(context.Background(), "garbage")
		assert.ErrorIs(t, err, account.ErrInvalidToken)

		past := func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
		sess, err := newService(store, account.WithClock(past)).Login(context.Background(), "jane@example.com", "s3cret-pass")
		require.NoError(t, err)
		_, err = newService(store).Authenticate(context.Background(), sess.AccessToken)
		assert.ErrorIs(t, err, account.ErrInvalidToken)
	})

	t.Run("token for a deleted user is invalid", func(t *testing.T) {
		t.Parallel()
		store := &MockStorage{}
		store.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)
		store.On("GetUserByID", mock.Anything, user.ID).Return(nil, account.ErrUserNotFound)
		svc := newService(store)

		sess, err := svc.Login(context.Background(), "jane@example.com", "s3cret-pass")
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), sess.AccessToken)
		assert.ErrorIs(t, err, account.ErrInvalidToken)
	})
}

func TestService_Summary(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	user := &account.User{
		ID:                    uuid.New(),
		Plan:                  account.PlanMonthly,
		SubscriptionStatus:    account.SubscriptionPastDue,
		PeriodEnd:             &end,
		InvoicesSentThisMonth: 3,
	}
	store := &MockStorage{}
	store.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	sum, err := newService(store).Summary(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanMonthly, sum.Plan)
	assert.Equal(t, &end, sum.PeriodEnd)
	assert.Equal(t, 3, sum.InvoicesSentThisMonth)
	assert.False(t, sum.CanCreateInvoice)
	assert.Equal(t, account.ReasonSubscriptionInactive, sum.Reason)
}

func TestService_ResetMonthlyUsage(t *testing.T) {
	t.Parallel()

	store := &MockStorage{}
	store.On("ResetInvoiceCounters", mock.Anything).Return(int64(12), nil).Once()
	require.NoError(t, newService(store).ResetMonthlyUsage(context.Background()))
	store.AssertExpectations(t)

	failing := &MockStorage{}
	failing.On("ResetInvoiceCounters", mock.Anything).Return(int64(0), errors.New("timeout"))
	assert.Error(t, newService(failing).ResetMonthlyUsage(context.Background()))
}
