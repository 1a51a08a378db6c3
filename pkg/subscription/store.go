package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines subscription persistence. Each tenant has exactly one row,
// so TenantID serves as the primary key.
type Store interface {
	// Get retrieves a subscription by tenant ID regardless of whether its
	// period is still current. Returns ErrSubscriptionNotFound if absent.
	Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// Upsert creates or replaces the tenant's subscription row as a single
	// atomic unit: no observer may see a plan reference with stale period
	// boundaries or vice versa.
	Upsert(ctx context.Context, sub *Subscription) error

	// ListLapsed returns subscriptions whose period_end is at or before the
	// given date. Used by the Renewer sweep.
	ListLapsed(ctx context.Context, asOf time.Time) ([]Subscription, error)
}
