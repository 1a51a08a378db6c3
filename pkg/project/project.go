// Package project stores tenant-owned RAG projects.
//
// A project is created once its tenant passes rate-limit, subscription, and
// project-cap admission; the engine never deletes projects silently. The
// live row count per tenant backs the project-cap check, so the count is
// always derived, never accumulated.
package project

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Project represents a tenant-scoped RAG project. The (TenantID, Name) pair
// is unique. VectorStoreID is the external provider's store reference,
// attached after the provider call succeeds; the engine treats it as opaque.
type Project struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Name          string    `json:"name"`
	VectorStoreID string    `json:"vector_store_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store defines project persistence.
type Store interface {
	// Create inserts a new project. Returns ErrProjectAlreadyExists when
	// the tenant already has a project with the same name.
	Create(ctx context.Context, p *Project) error

	// GetByID retrieves a project. Returns ErrProjectNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)

	// GetByTenantAndName retrieves a project by its unique natural key.
	GetByTenantAndName(ctx context.Context, tenantID uuid.UUID, name string) (*Project, error)

	// SetVectorStoreID attaches the external provider's store reference.
	SetVectorStoreID(ctx context.Context, id uuid.UUID, vectorStoreID string) error

	// CountForTenant returns the number of live projects for the tenant.
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
