package project

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type nameKey struct {
	tenantID uuid.UUID
	name     string
}

// MemoryStore implements Store with in-process maps.
type MemoryStore struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]Project
	byName    map[nameKey]uuid.UUID
	perTenant map[uuid.UUID]int64
}

// NewMemoryStore creates an empty in-memory project store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:      make(map[uuid.UUID]Project),
		byName:    make(map[nameKey]uuid.UUID),
		perTenant: make(map[uuid.UUID]int64),
	}
}

// Create inserts a new project, enforcing (tenant, name) uniqueness.
func (s *MemoryStore) Create(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey{tenantID: p.TenantID, name: p.Name}
	if _, exists := s.byName[key]; exists {
		return ErrProjectAlreadyExists
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.byID[p.ID] = *p
	s.byName[key] = p.ID
	s.perTenant[p.TenantID]++
	return nil
}

// GetByID retrieves a project.
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.byID[id]
	if !exists {
		return nil, ErrProjectNotFound
	}
	copied := p
	return &copied, nil
}

// GetByTenantAndName retrieves a project by its unique natural key.
func (s *MemoryStore) GetByTenantAndName(ctx context.Context, tenantID uuid.UUID, name string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[nameKey{tenantID: tenantID, name: name}]
	if !exists {
		return nil, ErrProjectNotFound
	}
	p := s.byID[id]
	return &p, nil
}

// SetVectorStoreID attaches the external provider's store reference.
func (s *MemoryStore) SetVectorStoreID(ctx context.Context, id uuid.UUID, vectorStoreID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.byID[id]
	if !exists {
		return ErrProjectNotFound
	}
	p.VectorStoreID = vectorStoreID
	s.byID[id] = p
	return nil
}

// CountForTenant returns the number of live projects for the tenant.
func (s *MemoryStore) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.perTenant[tenantID], nil
}
