package plans

import "errors"

var (
	// ErrPlanNotFound indicates an unknown plan ID. Callers must treat this
	// as a client error, not a system fault.
	ErrPlanNotFound = errors.New("plan not found")

	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")

	ErrFailedToLoadPlans = errors.New("failed to load plans")
)
