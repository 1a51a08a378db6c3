// Package idempotency provides a keyed, time-bounded replay guard for
// mutating requests.
//
// The first request seen with a given (tenant, key) pair claims the key
// atomically and proceeds; any replay within the retention window observes
// the recorded outcome of the first attempt instead of re-running the
// operation. Records expire 30 minutes after the last write, measured from
// completion rather than from the original claim.
//
// An absent key skips idempotency enforcement entirely: every call proceeds
// as fresh. This is an explicit policy for callers that do not need
// exactly-once semantics, not an oversight.
package idempotency
