// Package ratelimit implements per-tenant fixed-window request limiting.
//
// Requests are counted in discrete, non-overlapping time buckets keyed by
// (key, floor(now/window)). The increment-and-compare is a single atomic
// operation against the backing store, so concurrent requests for the same
// tenant cannot race past the limit. Buckets expire via TTL; no explicit
// cleanup is required.
//
// Fixed windows are chosen over sliding windows or token buckets for
// simplicity: burst-at-boundary behavior is an acceptable trade-off for a
// per-tenant API guard, not a billing-critical limiter.
//
// Two stores are provided: MemoryStore for tests and single-process
// deployments, and RedisStore for shared enforcement across instances.
package ratelimit
