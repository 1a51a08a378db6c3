package subscription

import "errors"

var (
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrNoActiveSubscription    = errors.New("no active subscription")
	ErrInvalidBillingCycle     = errors.New("invalid billing cycle")
	ErrInvalidPeriod           = errors.New("period start must precede period end")
	ErrSubscriptionStillActive = errors.New("subscription period has not lapsed")
	ErrStoreUnavailable        = errors.New("subscription store unavailable")
)
