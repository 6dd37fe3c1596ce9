// Package ratelimit implements fixed-window request limits with Redis or
// in-memory counters, plus an HTTP middleware that fails open when the store
// is unavailable.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrInvalidWindow = errors.New("invalid window")
	ErrStoreRequired = errors.New("store is required")
)

// Store counts hits per key in windows that start at the first hit.
type Store interface {
	// Increment adds one hit to key and returns the count in the current
	// window and the time left until it resets.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long to wait before the next request is allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Limiter allows at most limit hits per key per window.
type Limiter struct {
	store  Store
	name   string
	limit  int
	window time.Duration
}

// New returns a Limiter. name namespaces keys so several limiters can share
// one store.
func New(store Store, name string, limit int, window time.Duration) (*Limiter, error) {
	switch {
	case store == nil:
		return nil, ErrStoreRequired
	case limit <= 0:
		return nil, ErrInvalidLimit
	case window <= 0:
		return nil, ErrInvalidWindow
	}
	return &Limiter{store: store, name: name, limit: limit, window: window}, nil
}

func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, ttl, err := l.store.Increment(ctx, l.name+":"+key, l.window)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return &Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: max(l.limit-int(count), 0),
		ResetAt:   time.Now().Add(ttl),
	}, nil
}
