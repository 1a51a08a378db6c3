// Package quota implements the admission-control engine that gates every
// resource-consuming request against three independent temporal mechanisms:
// a rolling per-minute rate window, a bounded-duration idempotency replay
// window, and the fixed billing-period usage caps of the tenant's plan.
//
// Admission is a two-phase protocol. CheckAdmission runs the checks in
// order (rate, replay, subscription, cap) and returns a Decision; the
// caller performs the external operation only when the decision admits, and
// then reports the consumed amount back through RecordOutcome, which
// updates the usage accumulators and records the terminal outcome under the
// idempotency key.
//
// Denials are Decision values, never errors. Store failures are errors and
// the engine fails closed: a request is rejected rather than silently
// admitted when a backend is unreachable.
//
// Cap enforcement is a soft cap with bounded overshoot: requests that were
// concurrently past the cap check may push usage slightly over the cap when
// their outcomes are recorded. The overshoot is bounded by the number of
// in-flight requests. Hard caps would need a transactional reservation
// step spanning both stores; the engine does not implement one.
package quota
