package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Claim is the result of claiming an idempotency key.
type Claim struct {
	// Fresh is true when this request is the first seen with the key
	// (or no key was supplied and enforcement is skipped).
	Fresh bool

	// Prior holds the outcome recorded by the first request. Nil when
	// Fresh; carries StatusInFlight when the original request has not yet
	// completed.
	Prior *Outcome
}

// Guard performs replay-safe claim/record cycles against a keyed store.
type Guard struct {
	store     Store
	retention time.Duration
	now       func() time.Time
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRetention overrides the record retention window.
func WithRetention(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.retention = d
		}
	}
}

// NewGuard creates a Guard backed by the given store.
func NewGuard(store Store, opts ...GuardOption) (*Guard, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	g := &Guard{
		store:     store,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// storageKey namespaces records per tenant so two tenants reusing the same
// client-supplied key never collide.
func storageKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("idemp:%s:%s", tenantID, key)
}

// ClaimKey atomically claims the (tenant, key) pair. An empty key skips
// enforcement and always yields a fresh claim without a store round trip.
func (g *Guard) ClaimKey(ctx context.Context, tenantID uuid.UUID, key string) (*Claim, error) {
	if key == "" {
		return &Claim{Fresh: true}, nil
	}

	inflight := Outcome{
		Status:     StatusInFlight,
		RecordedAt: g.now().UTC(),
	}

	prior, duplicate, err := g.store.Claim(ctx, storageKey(tenantID, key), inflight, g.retention)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &Claim{Fresh: false, Prior: prior}, nil
	}
	return &Claim{Fresh: true}, nil
}

// Record stores the terminal outcome for the (tenant, key) pair and resets
// the record expiry to the full retention window measured from completion.
// A no-op when the key is empty.
func (g *Guard) Record(ctx context.Context, tenantID uuid.UUID, key string, status Status, result string) error {
	if key == "" {
		return nil
	}

	outcome := Outcome{
		Status:     status,
		Result:     result,
		RecordedAt: g.now().UTC(),
	}
	return g.store.Record(ctx, storageKey(tenantID, key), outcome, g.retention)
}

// Release drops the record so a later request with the same key is treated
// as fresh. Used when a claim was made but the operation never started.
func (g *Guard) Release(ctx context.Context, tenantID uuid.UUID, key string) error {
	if key == "" {
		return nil
	}
	return g.store.Delete(ctx, storageKey(tenantID, key))
}
