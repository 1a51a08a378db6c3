package usage

import "errors"

var (
	ErrInvalidField     = errors.New("invalid usage field")
	ErrInvalidAmount    = errors.New("amount must be non-negative")
	ErrStoreUnavailable = errors.New("usage store unavailable")
)
