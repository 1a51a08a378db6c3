// Package subscription tracks the active plan and billing-period boundaries
// for each tenant.
//
// Each tenant has at most one live subscription row; subscribing again
// replaces the plan reference and period boundaries in place as a single
// atomic unit. Billing periods are half-open civil-date intervals
// [PeriodStart, PeriodEnd) with calendar-correct month and year arithmetic:
// Jan 31 plus one month lands on the last day of February.
//
// A subscription whose period has lapsed is treated as absent by GetActive
// even though the row still exists; rollover or resubscription must occur
// explicitly. The optional Renewer sweeps lapsed rows on a cron schedule and
// re-anchors their periods.
package subscription
