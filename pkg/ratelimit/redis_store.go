package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis. INCR is atomic server-side,
// so concurrent increments from multiple instances cannot lose updates.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed rate limit store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("ratelimit: redis client is required")
	}
	return &RedisStore{client: client}
}

// IncrementAndGet atomically increments the counter and sets the TTL on
// first increment. The EXPIRE only runs when the key was just created, so
// later increments never extend the window.
func (s *RedisStore) IncrementAndGet(ctx context.Context, key string, incr int, ttl time.Duration) (int64, time.Duration, error) {
	current, err := s.client.IncrBy(ctx, key, int64(incr)).Result()
	if err != nil {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}

	if current == int64(incr) {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, 0, errors.Join(ErrStoreUnavailable, err)
		}
		return current, ttl, nil
	}

	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}
	return current, remaining, nil
}

// Get returns the current counter value and TTL for the given key.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, time.Duration, error) {
	current, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}

	remaining, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, errors.Join(ErrStoreUnavailable, err)
	}
	return current, remaining, nil
}

// Delete removes the given key from the store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
