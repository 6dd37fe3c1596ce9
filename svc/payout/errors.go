package payout

import "errors"

var (
	ErrNotConnected        = errors.New("no payout account connected")
	ErrProviderUnavailable = errors.New("payout provider request failed")
)
