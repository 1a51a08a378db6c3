package idempotency

import (
	"context"
	"time"
)

// DefaultRetention is how long a record is kept after its last write.
const DefaultRetention = 30 * time.Minute

// Status describes the lifecycle of an idempotency record.
type Status string

const (
	StatusInFlight  Status = "in_flight" // claimed, operation not yet completed
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome holds the recorded result of the first request seen with a key.
type Outcome struct {
	Status     Status    `json:"status"`
	Result     string    `json:"result,omitempty"` // opaque caller-supplied reference
	RecordedAt time.Time `json:"recorded_at"`
}

// Terminal reports whether the outcome is final.
func (o Outcome) Terminal() bool {
	return o.Status == StatusSucceeded || o.Status == StatusFailed
}

// Store defines the keyed storage backend for idempotency records.
// Claim must be an atomic test-and-set, not a read-then-write.
type Store interface {
	// Claim creates an in-flight record for the key if none exists within
	// the retention window. Returns duplicate=true along with the prior
	// outcome when the key was already claimed.
	Claim(ctx context.Context, key string, inflight Outcome, ttl time.Duration) (prior *Outcome, duplicate bool, err error)

	// Record overwrites the record with a terminal outcome and resets its
	// expiry to the full ttl measured from now.
	Record(ctx context.Context, key string, outcome Outcome, ttl time.Duration) error

	// Delete removes the record for the key.
	Delete(ctx context.Context, key string) error
}
