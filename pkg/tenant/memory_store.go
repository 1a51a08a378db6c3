package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]Tenant
}

// NewMemoryStore creates an empty in-memory tenant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[uuid.UUID]Tenant)}
}

// Create inserts a new tenant.
func (s *MemoryStore) Create(ctx context.Context, t *Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[t.ID]; exists {
		return ErrTenantAlreadyExists
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.tenants[t.ID] = *t
	return nil
}

// Get retrieves a tenant by ID.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tenants[id]
	if !exists {
		return nil, ErrTenantNotFound
	}
	copied := t
	return &copied, nil
}

// SetPlanID updates the denormalized current-plan hint.
func (s *MemoryStore) SetPlanID(ctx context.Context, id uuid.UUID, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tenants[id]
	if !exists {
		return ErrTenantNotFound
	}
	t.PlanID = planID
	s.tenants[id] = t
	return nil
}
