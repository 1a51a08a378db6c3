package quota

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ragbase/quotakit/pkg/idempotency"
	"github.com/ragbase/quotakit/pkg/plans"
	"github.com/ragbase/quotakit/pkg/subscription"
)

// Operation identifies a resource-consuming request kind.
type Operation string

const (
	OpProjectCreate Operation = "project.create"
	OpMessageSend   Operation = "message.send"
	OpCharsUpload   Operation = "chars.upload"
)

func (op Operation) validate() error {
	switch op {
	case OpProjectCreate, OpMessageSend, OpCharsUpload:
		return nil
	default:
		return ErrInvalidOperation
	}
}

// Reason classifies a denial. Every reason is a client-visible condition:
// the client must change its request (wait, subscribe, upgrade, or shrink
// the payload) rather than retry as-is.
type Reason string

const (
	ReasonRateLimited          Reason = "rate_limited"
	ReasonAlreadyHandled       Reason = "already_handled"
	ReasonNoActiveSubscription Reason = "no_active_subscription"
	ReasonProjectCapExceeded   Reason = "project_cap_exceeded"
	ReasonMessageCapExceeded   Reason = "message_cap_exceeded"
	ReasonUploadCapExceeded    Reason = "upload_cap_exceeded"
)

// Request carries the per-request admission inputs.
type Request struct {
	// IdempotencyKey is the client-supplied replay token. Empty skips
	// idempotency enforcement for this request.
	IdempotencyKey string

	// Amount is the requested consumption, currently the character count
	// of the payload about to be uploaded. Required for OpCharsUpload.
	Amount int64
}

// Decision is the admission verdict plus the recording contract for the
// admitted operation: pass it back to RecordOutcome once the external
// operation has completed or failed.
type Decision struct {
	// Allowed reports whether the operation may proceed.
	Allowed bool

	// Reason is set on denied decisions.
	Reason Reason

	// RetryAfter is set for rate-limited denials.
	RetryAfter time.Duration

	// Prior carries the first request's recorded outcome for replayed
	// idempotency keys.
	Prior *idempotency.Outcome

	// Subscription and Plan describe the admitted tenant's billing scope.
	// Set only on admitted decisions.
	Subscription *subscription.Subscription
	Plan         plans.Plan

	tenantID       uuid.UUID
	op             Operation
	idempotencyKey string
	amount         int64
}

// Report carries the post-completion result of the external operation.
type Report struct {
	// Succeeded reports whether the external operation completed; only
	// successful operations consume usage.
	Succeeded bool

	// Amount is the consumed amount for OpCharsUpload. Zero falls back to
	// the amount requested at admission.
	Amount int64

	// Result is an opaque caller reference (response ID, project ID)
	// replayed to duplicate requests.
	Result string
}

// ReplayGuard is the idempotency dependency of the enforcer.
// *idempotency.Guard satisfies it.
type ReplayGuard interface {
	ClaimKey(ctx context.Context, tenantID uuid.UUID, key string) (*idempotency.Claim, error)
	Record(ctx context.Context, tenantID uuid.UUID, key string, status idempotency.Status, result string) error
	Release(ctx context.Context, tenantID uuid.UUID, key string) error
}

// SubscriptionSource resolves the tenant's active subscription.
// *subscription.Ledger satisfies it.
type SubscriptionSource interface {
	GetActive(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error)
}

// PlanSource resolves plan definitions. *plans.Catalog satisfies it.
type PlanSource interface {
	Get(planID string) (plans.Plan, error)
}
