package idempotency

import "errors"

var (
	ErrStoreRequired    = errors.New("store is required")
	ErrStoreUnavailable = errors.New("idempotency store unavailable")
)
