package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention keeps roughly three annual periods of buckets before the
// cleanup goroutine garbage-collects them.
const DefaultRetention = 3 * 366 * 24 * time.Hour

type bucketKey struct {
	tenantID    uuid.UUID
	periodStart time.Time
	field       Field
}

// MemoryStore implements Store with an in-process map. Buckets older than
// the retention horizon are pruned periodically to avoid unbounded growth.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[bucketKey]int64

	retention       time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithRetention sets how long inactive period buckets are kept.
func WithRetention(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithCleanupInterval sets how often stale buckets are pruned.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// NewMemoryStore creates a new in-memory usage store with automatic pruning.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		buckets:         make(map[bucketKey]int64),
		retention:       DefaultRetention,
		cleanupInterval: time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

func normalizeKey(tenantID uuid.UUID, periodStart time.Time, field Field) bucketKey {
	y, m, d := periodStart.UTC().Date()
	return bucketKey{
		tenantID:    tenantID,
		periodStart: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		field:       field,
	}
}

// Increment atomically adds amount and returns the post-increment total.
func (s *MemoryStore) Increment(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, field Field, amount int64) (int64, error) {
	if field != FieldMessages && field != FieldChars {
		return 0, ErrInvalidField
	}
	if amount < 0 {
		return 0, ErrInvalidAmount
	}

	key := normalizeKey(tenantID, periodStart, field)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[key] += amount
	return s.buckets[key], nil
}

// Get returns the tenant's accumulators for the given period.
func (s *MemoryStore) Get(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Usage{
		Messages: s.buckets[normalizeKey(tenantID, periodStart, FieldMessages)],
		Chars:    s.buckets[normalizeKey(tenantID, periodStart, FieldChars)],
	}, nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeStale()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	horizon := time.Now().UTC().Add(-s.retention)
	for key := range s.buckets {
		if key.periodStart.Before(horizon) {
			delete(s.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
}
