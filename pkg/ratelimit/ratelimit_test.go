package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicely/pkg/clientip"
	"github.com/dmitrymomot/invoicely/pkg/ratelimit"
)

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func TestNew(t *testing.T) {
	t.Parallel()

	store := ratelimit.NewMemoryStore()
	_, err := ratelimit.New(nil, "x", 1, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrStoreRequired)
	_, err = ratelimit.New(store, "x", 0, time.Second)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	_, err = ratelimit.New(store, "x", 1, 0)
	assert.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
}

func TestLimiter_Memory(t *testing.T) {
	t.Parallel()

	l, err := ratelimit.New(ratelimit.NewMemoryStore(), "login", 2, 50*time.Millisecond)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Positive(t, res.RetryAfter())

	res, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "keys are independent")

	time.Sleep(60 * time.Millisecond)
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window resets")
}

func TestLimiter_Redis(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := ratelimit.New(ratelimit.NewRedisStore(client), "checkout", 1, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("invoicely:ratelimit:checkout:1.2.3.4"))

	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	mr.FastForward(time.Minute)
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	t.Run("key without expiry gets one", func(t *testing.T) {
		require.NoError(t, mr.Set("invoicely:ratelimit:checkout:9.9.9.9", "0"))
		_, err := l.Allow(ctx, "9.9.9.9")
		require.NoError(t, err)
		assert.Equal(t, time.Minute, mr.TTL("invoicely:ratelimit:checkout:9.9.9.9"))
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	request := func(h http.Handler, ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/login", nil)
		r.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	t.Run("limits by client ip", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), "auth", 1, time.Minute)
		require.NoError(t, err)
		h := ratelimit.Middleware(l)(ok)

		rec := request(h, "203.0.113.1")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		rec = request(h, "203.0.113.1")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		rec = request(h, "203.0.113.2")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("forwarded header cannot rotate the key", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), "auth", 1, time.Minute)
		require.NoError(t, err)
		h := clientip.NewResolver(clientip.WithTrustedProxies(1)).Middleware(ratelimit.Middleware(l)(ok))

		forged := func(spoof string) int {
			r := httptest.NewRequest(http.MethodPost, "/login", nil)
			r.RemoteAddr = "10.0.0.1:1234"
			r.Header.Set("X-Forwarded-For", spoof+", 203.0.113.1")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			return rec.Code
		}
		assert.Equal(t, http.StatusNoContent, forged("1.1.1.1"))
		assert.Equal(t, http.StatusTooManyRequests, forged("2.2.2.2"))
	})

	t.Run("custom limit response", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), "auth", 1, time.Minute)
		require.NoError(t, err)
		h := ratelimit.Middleware(l, ratelimit.WithOnLimitReached(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))(ok)

		request(h, "203.0.113.1")
		assert.Equal(t, http.StatusTeapot, request(h, "203.0.113.1").Code)
	})

	t.Run("empty key is not limited", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), "auth", 1, time.Minute)
		require.NoError(t, err)
		h := ratelimit.Middleware(l, ratelimit.WithKeyFunc(func(*http.Request) string { return "" }))(ok)

		for range 3 {
			assert.Equal(t, http.StatusNoContent, request(h, "203.0.113.1").Code)
		}
	})

	t.Run("store failure fails open", func(t *testing.T) {
		t.Parallel()
		l, err := ratelimit.New(failingStore{}, "auth", 1, time.Minute)
		require.NoError(t, err)
		var reported error
		h := ratelimit.Middleware(l, ratelimit.WithOnError(func(_ *http.Request, err error) { reported = err }))(ok)

		assert.Equal(t, http.StatusNoContent, request(h, "203.0.113.1").Code)
		assert.EqualError(t, reported, "store down")
	})

	t.Run("nil limiter panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { ratelimit.Middleware(nil) })
	})
}
