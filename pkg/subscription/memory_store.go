package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

// Get retrieves a subscription by tenant ID.
func (s *MemoryStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subs[tenantID]
	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	copied := sub
	return &copied, nil
}

// Upsert creates or replaces the tenant's subscription row.
func (s *MemoryStore) Upsert(ctx context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.TenantID] = *sub
	return nil
}

// ListLapsed returns subscriptions whose period ended at or before asOf.
func (s *MemoryStore) ListLapsed(ctx context.Context, asOf time.Time) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := DateOf(asOf)
	var lapsed []Subscription
	for _, sub := range s.subs {
		if !sub.PeriodEnd.After(day) {
			lapsed = append(lapsed, sub)
		}
	}
	return lapsed, nil
}
