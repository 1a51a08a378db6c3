// Package tenant provides tenant identity storage.
//
// The tenant record carries a denormalized PlanID mirroring the active
// subscription for fast reads. It is strictly a non-authoritative hint: the
// quota enforcer always resolves the effective plan through the subscription
// ledger before enforcing caps.
package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant represents an isolated customer account. All quotas and rate
// limits are scoped per tenant.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	PlanID    string    `json:"plan_id"` // current-plan hint, synced on subscribe
	CreatedAt time.Time `json:"created_at"`
}

// Store defines tenant persistence.
type Store interface {
	// Create inserts a new tenant. Returns ErrTenantAlreadyExists when the
	// ID is already taken.
	Create(ctx context.Context, t *Tenant) error

	// Get retrieves a tenant by ID. Returns ErrTenantNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// SetPlanID updates the denormalized current-plan hint.
	SetPlanID(ctx context.Context, id uuid.UUID, planID string) error
}
