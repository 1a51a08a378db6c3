package idempotency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/quotakit/pkg/idempotency"
)

func TestGuard_ClaimKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("empty key skips enforcement", func(t *testing.T) {
		t.Parallel()

		store := idempotency.NewMemoryStore()
		defer store.Close()
		guard, err := idempotency.NewGuard(store)
		require.NoError(t, err)

		claim, err := guard.ClaimKey(ctx, tenantID, "")
		require.NoError(t, err)
		assert.True(t, claim.Fresh)
		assert.Nil(t, claim.Prior)

		// No record was created, so the next empty-key request is fresh too.
		claim, err = guard.ClaimKey(ctx, tenantID, "")
		require.NoError(t, err)
		assert.True(t, claim.Fresh)
	})

	t.Run("first claim is fresh, second sees in-flight", func(t *testing.T) {
		t.Parallel()

		store := idempotency.NewMemoryStore()
		defer store.Close()
		guard, err := idempotency.NewGuard(store)
		require.NoError(t, err)

		claim, err := guard.ClaimKey(ctx, tenantID, "req-1")
		require.NoError(t, err)
		assert.True(t, claim.Fresh)

		claim, err = guard.ClaimKey(ctx, tenantID, "req-1")
		require.NoError(t, err)
		assert.False(t, claim.Fresh)
		require.NotNil(t, claim.Prior)
		assert.Equal(t, idempotency.StatusInFlight, claim.Prior.Status)
		assert.False(t, claim.Prior.Terminal())
	})

	t.Run("tenants do not share keys", func(t *testing.T) {
		t.Parallel()

		store := idempotency.NewMemoryStore()
		defer store.Close()
		guard, err := idempotency.NewGuard(store)
		require.NoError(t, err)

		claim, err := guard.ClaimKey(ctx, tenantID, "shared-key")
		require.NoError(t, err)
		require.True(t, claim.Fresh)

		claim, err = guard.ClaimKey(ctx, uuid.New(), "shared-key")
		require.NoError(t, err)
		assert.True(t, claim.Fresh)
	})
}

func TestGuard_Record(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("replay observes the recorded outcome", func(t *testing.T) {
		t.Parallel()

		store := idempotency.NewMemoryStore()
		defer store.Close()
		guard, err := idempotency.NewGuard(store)
		require.NoError(t, err)

		claim, err := guard.ClaimKey(ctx, tenantID, "req-2")
		require.NoError(t, err)
		require.True(t, claim.Fresh)

		err = guard.Record(ctx, tenantID, "req-2", idempotency.StatusSucceeded, "resp-42")
		require.NoError(t, err)

		claim, err = guard.ClaimKey(ctx, tenantID, "req-2")
		require.NoError(t, err)
		assert.False(t, claim.Fresh)
		require.NotNil(t, claim.Prior)
		assert.Equal(t, idempotency.StatusSucceeded, claim.Prior.Status)
		assert.Equal(t, "resp-42", claim.Prior.Result)
		assert.True(t, claim.Prior.Terminal())
	})

	t.Run("failed outcomes replay as failed", func(t *testing.T) {
		t.Parallel()

		store := idempotency.NewMemoryStore()
		defer store.Close()
		guard, err := idempotency.NewGuard(store)
		require.NoError(t, err)

		_, err = guard.ClaimKey(ctx, tenantID, "req-3")
		require.NoError(t, err)

		err = guard.Record(ctx, tenantID, "req-3", idempotency.StatusFailed, "provider timeout")
		require.NoError(t, err)

		claim, err := guard.ClaimKey(ctx, tenantID, "req-3")
		require.NoError(t, err)
		require.NotNil(t, claim.Prior)
		assert.Equal(t, idempotency.StatusFailed, claim.Prior.Status)
	})

	t.Run("recording an empty key is a no-op", func(t *testing.T) {
		t.Parallel()

		store := idempotency.NewMemoryStore()
		defer store.Close()
		guard, err := idempotency.NewGuard(store)
		require.NoError(t, err)

		assert.NoError(t, guard.Record(ctx, tenantID, "", idempotency.StatusSucceeded, "x"))
	})
}

func TestGuard_Release(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tenantID := uuid.New()

	store := idempotency.NewMemoryStore()
	defer store.Close()
	guard, err := idempotency.NewGuard(store)
	require.NoError(t, err)

	claim, err := guard.ClaimKey(ctx, tenantID, "req-4")
	require.NoError(t, err)
	require.True(t, claim.Fresh)

	require.NoError(t, guard.Release(ctx, tenantID, "req-4"))

	claim, err = guard.ClaimKey(ctx, tenantID, "req-4")
	require.NoError(t, err)
	assert.True(t, claim.Fresh)
}

func TestGuard_RetentionExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tenantID := uuid.New()

	store := idempotency.NewMemoryStore()
	defer store.Close()
	guard, err := idempotency.NewGuard(store, idempotency.WithRetention(30*time.Millisecond))
	require.NoError(t, err)

	_, err = guard.ClaimKey(ctx, tenantID, "req-5")
	require.NoError(t, err)
	err = guard.Record(ctx, tenantID, "req-5", idempotency.StatusSucceeded, "done")
	require.NoError(t, err)

	// Within retention the key replays.
	claim, err := guard.ClaimKey(ctx, tenantID, "req-5")
	require.NoError(t, err)
	require.False(t, claim.Fresh)

	// Claiming re-arms nothing: the record keeps its original expiry, so
	// after the retention window the key is fresh again.
	time.Sleep(50 * time.Millisecond)

	claim, err = guard.ClaimKey(ctx, tenantID, "req-5")
	require.NoError(t, err)
	assert.True(t, claim.Fresh)
}

func TestGuard_ConcurrentClaims(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}

	t.Parallel()

	ctx := context.Background()
	tenantID := uuid.New()

	store := idempotency.NewMemoryStore()
	defer store.Close()
	guard, err := idempotency.NewGuard(store)
	require.NoError(t, err)

	goroutines := 50
	var wg sync.WaitGroup
	wg.Add(goroutines)

	var fresh atomic.Int64
	for range goroutines {
		go func() {
			defer wg.Done()
			claim, err := guard.ClaimKey(ctx, tenantID, "contended")
			if err == nil && claim.Fresh {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly one racer wins the claim.
	assert.Equal(t, int64(1), fresh.Load())
}

func TestNewGuard_RequiresStore(t *testing.T) {
	t.Parallel()

	_, err := idempotency.NewGuard(nil)
	assert.ErrorIs(t, err, idempotency.ErrStoreRequired)
}
