package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Field identifies a period-scoped accumulator.
type Field string

const (
	FieldMessages Field = "messages"
	FieldChars    Field = "chars"
)

// Usage is a read-only snapshot of a tenant's accumulators for one period.
type Usage struct {
	Messages int64 `json:"messages"`
	Chars    int64 `json:"chars"`
}

// Store defines the accumulator backend. Increments must be linearizable
// per key: two concurrent increments for the same (tenant, period, field)
// must both be reflected.
type Store interface {
	// Increment atomically adds amount to the accumulator and returns the
	// post-increment total.
	Increment(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, field Field, amount int64) (int64, error)

	// Get returns the tenant's accumulators for the given period.
	Get(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (Usage, error)
}

// ProjectCounter returns the number of live projects for a tenant. Project
// count is a ceiling, not a rate: it is derived from row counts and is not
// period-scoped.
type ProjectCounter func(ctx context.Context, tenantID uuid.UUID) (int64, error)
