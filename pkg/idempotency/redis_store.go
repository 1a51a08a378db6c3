package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimAttempts bounds the SET NX / GET race: a record can expire between
// the failed SET and the GET, in which case the claim is retried.
const claimAttempts = 2

// RedisStore implements Store on top of Redis. SET NX provides the atomic
// test-and-set required by the claim contract; outcomes are stored as JSON.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed idempotency store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("idempotency: redis client is required")
	}
	return &RedisStore{client: client}
}

// Claim atomically creates an in-flight record if none exists for the key.
func (s *RedisStore) Claim(ctx context.Context, key string, inflight Outcome, ttl time.Duration) (*Outcome, bool, error) {
	payload, err := json.Marshal(inflight)
	if err != nil {
		return nil, false, err
	}

	for range claimAttempts {
		set, err := s.client.SetNX(ctx, key, payload, ttl).Result()
		if err != nil {
			return nil, false, errors.Join(ErrStoreUnavailable, err)
		}
		if set {
			return nil, false, nil
		}

		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Record expired between SET and GET; try claiming again.
				continue
			}
			return nil, false, errors.Join(ErrStoreUnavailable, err)
		}

		var prior Outcome
		if err := json.Unmarshal(data, &prior); err != nil {
			return nil, false, errors.Join(ErrStoreUnavailable, err)
		}
		return &prior, true, nil
	}

	// Lost the expiry race twice; report the key as claimed and in flight
	// rather than admitting a potential duplicate.
	return &Outcome{Status: StatusInFlight}, true, nil
}

// Record overwrites the record and resets its expiry to the full ttl.
func (s *RedisStore) Record(ctx context.Context, key string, outcome Outcome, ttl time.Duration) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the record for the key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
