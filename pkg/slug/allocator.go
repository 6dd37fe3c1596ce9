package slug

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithLength sets the generated slug length.
func WithLength(n int) AllocatorOption {
	return func(a *Allocator) {
		if n > 0 {
			a.length = n
		}
	}
}

// WithMaxAttempts bounds how many candidates are tried before giving up.
func WithMaxAttempts(n int) AllocatorOption {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithRandomSource replaces crypto/rand. Intended for tests.
func WithRandomSource(r io.Reader) AllocatorOption {
	return func(a *Allocator) {
		if r != nil {
			a.random = r
		}
	}
}

// Allocator produces slugs that are unique in some store.
//
// The exists pre-check only narrows the window for collisions. The store's
// uniqueness constraint is authoritative: Insert retries with a fresh slug
// whenever the insert callback reports a collision.
type Allocator struct {
	exists      ExistsFunc
	isCollision func(error) bool
	length      int
	maxAttempts int
	random      io.Reader
}

// NewAllocator creates an Allocator. exists may be nil to skip the pre-check.
// isCollision classifies insert errors caused by a duplicate slug.
func NewAllocator(exists ExistsFunc, isCollision func(error) bool, opts ...AllocatorOption) *Allocator {
	if isCollision == nil {
		isCollision = func(err error) bool { return errors.Is(err, ErrTaken) }
	}
	a := &Allocator{
		exists:      exists,
		isCollision: isCollision,
		length:      DefaultLength,
		maxAttempts: 10,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns a slug the pre-check considers free.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for range a.maxAttempts {
		candidate, err := a.candidate(ctx)
		if err != nil {
			return "", err
		}
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, a.maxAttempts)
}

// Insert allocates a slug and passes it to insert, retrying with a new slug
// while insert fails with a collision. Any other error is returned as is.
func (a *Allocator) Insert(ctx context.Context, insert func(ctx context.Context, slug string) error) (string, error) {
	for range a.maxAttempts {
		candidate, err := a.candidate(ctx)
		if err != nil {
			return "", err
		}
		if candidate == "" {
			continue
		}

		err = insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !a.isCollision(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, a.maxAttempts)
}

// candidate returns a fresh slug, or "" when the pre-check found it taken.
func (a *Allocator) candidate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := randomFrom(a.random, a.length)
	if err != nil {
		return "", err
	}
	if a.exists == nil {
		return s, nil
	}
	taken, err := a.exists(ctx, s)
	if err != nil {
		return "", errors.Join(ErrLookupFailed, err)
	}
	if taken {
		return "", nil
	}
	return s, nil
}
