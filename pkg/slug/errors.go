package slug

import "errors"

var (
	ErrInvalidLength = errors.New("slug length must be positive")
	ErrRandomSource  = errors.New("failed to read random source")
	ErrLookupFailed  = errors.New("failed to check slug availability")
	ErrTaken         = errors.New("slug already taken")
	ErrExhausted     = errors.New("could not allocate a free slug")
)
