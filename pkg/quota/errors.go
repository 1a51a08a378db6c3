package quota

import "errors"

var (
	// ErrAdmissionUnavailable indicates a backing store failure during an
	// admission check. The engine fails closed: the request must be
	// rejected, never silently admitted. Safe to retry at the caller's
	// discretion; the engine performs no retries itself.
	ErrAdmissionUnavailable = errors.New("admission check unavailable")

	ErrInvalidOperation = errors.New("invalid operation kind")
	ErrAmountRequired   = errors.New("requested amount must be positive")
	ErrNilDecision      = errors.New("decision is required")
	ErrNotAdmitted      = errors.New("decision did not admit the operation")
)
