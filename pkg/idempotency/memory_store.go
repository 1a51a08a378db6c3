package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. Suitable for tests
// and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

type record struct {
	outcome   Outcome
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired records are removed.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// NewMemoryStore creates a new in-memory store with automatic cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records:         make(map[string]*record),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Claim atomically creates an in-flight record if none exists for the key.
func (s *MemoryStore) Claim(ctx context.Context, key string, inflight Outcome, ttl time.Duration) (*Outcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if r, exists := s.records[key]; exists && now.Before(r.expiresAt) {
		prior := r.outcome
		return &prior, true, nil
	}

	s.records[key] = &record{
		outcome:   inflight,
		expiresAt: now.Add(ttl),
	}
	return nil, false, nil
}

// Record overwrites the record and resets its expiry to the full ttl.
func (s *MemoryStore) Record(ctx context.Context, key string, outcome Outcome, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = &record{
		outcome:   outcome,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes the record for the key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, r := range s.records {
		if now.After(r.expiresAt) {
			delete(s.records, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
}
