package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Default per-tenant request budget: 120 requests per 60-second window.
const (
	DefaultLimit  = 120
	DefaultWindow = time.Minute
)

// Config defines the fixed window parameters.
type Config struct {
	Limit  int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
}

// FixedWindow implements a fixed-window rate limiter. Each request lands in
// the bucket for the current window index and expires with it.
type FixedWindow struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewFixedWindow creates a fixed-window rate limiter backed by the given store.
func NewFixedWindow(store Store, cfg Config) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidLimit, cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %v", ErrInvalidWindow, cfg.Window)
	}

	return &FixedWindow{
		store:  store,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    time.Now,
	}, nil
}

// bucketKey appends the current window index so each window gets its own
// counter. The index is floor(unixNano/window), which makes windows aligned
// across processes sharing a store.
func (fw *FixedWindow) bucketKey(key string) string {
	idx := fw.now().UnixNano() / int64(fw.window)
	return fmt.Sprintf("%s:%d", key, idx)
}

// Allow checks if a single request is allowed for the given key.
func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	return fw.AllowN(ctx, key, 1)
}

// AllowN checks if n requests are allowed for the given key.
func (fw *FixedWindow) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidIncrement, n)
	}

	// Buckets are index-keyed, so a counter from a finished window is never
	// read again; the TTL only bounds how long it lingers in the store.
	current, remaining, err := fw.store.IncrementAndGet(ctx, fw.bucketKey(key), n, fw.window)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		remaining = fw.window
	}

	return &Result{
		Allowed:   current <= int64(fw.limit),
		Limit:     fw.limit,
		Remaining: max(0, fw.limit-int(current)),
		ResetAt:   fw.now().Add(remaining),
	}, nil
}

// Status returns the current window state without consuming a slot.
func (fw *FixedWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	current, remaining, err := fw.store.Get(ctx, fw.bucketKey(key))
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		remaining = fw.window
	}

	return &Result{
		Allowed:   current < int64(fw.limit),
		Limit:     fw.limit,
		Remaining: max(0, fw.limit-int(current)),
		ResetAt:   fw.now().Add(remaining),
	}, nil
}

// Reset clears the current window for the given key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return fw.store.Delete(ctx, fw.bucketKey(key))
}
