// Package redis connects the service to its Redis instance.
//
// Redis backs the hot admission path: rate limit buckets and idempotency
// claims both live here because every admission check touches them and the
// required operations (INCR with expiry, SET NX EX) are native primitives.
//
// Connect retries with a configurable interval until the server answers a
// PING or the attempt budget is spent:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Healthcheck returns a probe function suitable for readiness endpoints.
package redis
