// Package usage accumulates per-tenant, per-billing-period consumption
// counters.
//
// Counters are keyed by (tenant, period start, field) instead of being reset
// when a new period begins: an increment racing a subscription rollover
// simply lands in the old period's bucket and is naturally excluded from
// reads scoped to the new one. Increments are atomic at the key level and
// return the post-increment total, so a caller can increment and observe in
// a single round trip.
//
// The live project count is not an accumulator: it is derived by counting
// project rows and never resets with the period.
package usage
