package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BillingCycle represents the billing frequency for a subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// ParseBillingCycle validates a cycle string from client input.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(s) {
	case CycleMonthly, CycleAnnual:
		return BillingCycle(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBillingCycle, s)
	}
}

// Subscription represents the active plan selection for a tenant.
// TenantID is the primary key: one subscription per tenant.
type Subscription struct {
	TenantID    uuid.UUID    `json:"tenant_id"`
	PlanID      string       `json:"plan_id"`
	Cycle       BillingCycle `json:"billing_cycle"`
	PeriodStart time.Time    `json:"period_start"` // UTC midnight, inclusive
	PeriodEnd   time.Time    `json:"period_end"`   // UTC midnight, exclusive
}

// ActiveAt reports whether the billing period covers the given instant,
// using the half-open interval [PeriodStart, PeriodEnd).
func (s *Subscription) ActiveAt(t time.Time) bool {
	day := DateOf(t)
	return !day.Before(s.PeriodStart) && day.Before(s.PeriodEnd)
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextPeriodEnd derives the period end from the start and billing cycle:
// monthly adds one calendar month, annual adds one calendar year, both with
// day clamping so 2024-01-31 monthly yields 2024-02-29 and 2024-02-29 annual
// yields 2025-02-28.
func NextPeriodEnd(start time.Time, cycle BillingCycle) time.Time {
	months := 1
	if cycle == CycleAnnual {
		months = 12
	}
	return addMonths(DateOf(start), months)
}

// addMonths adds calendar months with day clamping. time.Time.AddDate
// normalizes overflow (Jan 31 + 1 month = Mar 2/3), which is wrong for
// billing periods, so the day is clamped to the target month's length.
func addMonths(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)

	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, time.UTC)
}
