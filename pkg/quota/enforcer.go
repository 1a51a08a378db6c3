package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ragbase/quotakit/pkg/idempotency"
	"github.com/ragbase/quotakit/pkg/plans"
	"github.com/ragbase/quotakit/pkg/ratelimit"
	"github.com/ragbase/quotakit/pkg/subscription"
	"github.com/ragbase/quotakit/pkg/usage"
)

// Enforcer orchestrates admission control. All dependencies are explicit
// injected interfaces so the two-phase protocol is testable against
// in-memory fakes implementing the same atomic contracts.
type Enforcer struct {
	limiter  ratelimit.Limiter
	guard    ReplayGuard
	subs     SubscriptionSource
	usage    usage.Store
	projects usage.ProjectCounter
	catalog  PlanSource

	log     *slog.Logger
	metrics *metrics
	now     func() time.Time
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithLogger sets the enforcer's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Enforcer) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics registers admission decision counters with the given
// prometheus registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Enforcer) {
		if reg != nil {
			e.metrics = newMetrics(reg)
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnforcer creates the admission engine.
// Panics on nil dependencies to fail fast during initialization.
func NewEnforcer(
	limiter ratelimit.Limiter,
	guard ReplayGuard,
	subs SubscriptionSource,
	usageStore usage.Store,
	projects usage.ProjectCounter,
	catalog PlanSource,
	opts ...Option,
) *Enforcer {
	if limiter == nil {
		panic("quota: rate limiter is required")
	}
	if guard == nil {
		panic("quota: replay guard is required")
	}
	if subs == nil {
		panic("quota: subscription source is required")
	}
	if usageStore == nil {
		panic("quota: usage store is required")
	}
	if projects == nil {
		panic("quota: project counter is required")
	}
	if catalog == nil {
		panic("quota: plan catalog is required")
	}

	e := &Enforcer{
		limiter:  limiter,
		guard:    guard,
		subs:     subs,
		usage:    usageStore,
		projects: projects,
		catalog:  catalog,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rateKey scopes the request-rate window per tenant.
func rateKey(tenantID uuid.UUID) string {
	return "rl:" + tenantID.String()
}

// CheckAdmission decides whether the operation may proceed. The checks run
// in fixed order: rate limit first (the cheapest, outermost guard), then
// idempotency replay, then active subscription, then the operation-specific
// cap. The first failing check short-circuits.
func (e *Enforcer) CheckAdmission(ctx context.Context, tenantID uuid.UUID, op Operation, req Request) (*Decision, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}
	if op == OpCharsUpload && req.Amount <= 0 {
		return nil, ErrAmountRequired
	}

	res, err := e.limiter.Allow(ctx, rateKey(tenantID))
	if err != nil {
		return nil, e.fault(ctx, tenantID, op, "rate limit check failed", err)
	}
	if !res.Allowed {
		return e.deny(ctx, tenantID, op, req, &Decision{
			Reason:     ReasonRateLimited,
			RetryAfter: res.RetryAfter(),
		}, false), nil
	}

	claim, err := e.guard.ClaimKey(ctx, tenantID, req.IdempotencyKey)
	if err != nil {
		return nil, e.fault(ctx, tenantID, op, "idempotency claim failed", err)
	}
	if !claim.Fresh {
		// Replays must not be charged twice: subscription and usage state
		// stay untouched.
		return e.deny(ctx, tenantID, op, req, &Decision{
			Reason: ReasonAlreadyHandled,
			Prior:  claim.Prior,
		}, false), nil
	}

	sub, err := e.subs.GetActive(ctx, tenantID)
	if err != nil {
		if errors.Is(err, subscription.ErrNoActiveSubscription) {
			return e.deny(ctx, tenantID, op, req, &Decision{Reason: ReasonNoActiveSubscription}, true), nil
		}
		e.releaseClaim(ctx, tenantID, req.IdempotencyKey)
		return nil, e.fault(ctx, tenantID, op, "subscription lookup failed", err)
	}

	plan, err := e.catalog.Get(sub.PlanID)
	if err != nil {
		// A live subscription referencing an unknown plan is a deployment
		// fault, not a client error.
		e.releaseClaim(ctx, tenantID, req.IdempotencyKey)
		return nil, e.fault(ctx, tenantID, op, "plan lookup failed", err)
	}

	if denied, err := e.checkCap(ctx, tenantID, op, req, sub, plan); err != nil {
		e.releaseClaim(ctx, tenantID, req.IdempotencyKey)
		return nil, e.fault(ctx, tenantID, op, "cap check failed", err)
	} else if denied != nil {
		return e.deny(ctx, tenantID, op, req, denied, true), nil
	}

	e.observe(op, "admitted")
	return &Decision{
		Allowed:        true,
		Subscription:   sub,
		Plan:           plan,
		tenantID:       tenantID,
		op:             op,
		idempotencyKey: req.IdempotencyKey,
		amount:         req.Amount,
	}, nil
}

// checkCap applies the operation-specific cap. Returns a non-nil Decision
// when the cap denies the request.
func (e *Enforcer) checkCap(ctx context.Context, tenantID uuid.UUID, op Operation, req Request, sub *subscription.Subscription, plan plans.Plan) (*Decision, error) {
	switch op {
	case OpProjectCreate:
		if plan.MaxProjects == plans.Unlimited {
			return nil, nil
		}
		count, err := e.projects(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if count >= plan.MaxProjects {
			return &Decision{Reason: ReasonProjectCapExceeded}, nil
		}

	case OpMessageSend:
		if plan.MonthlyMessageCap == plans.Unlimited {
			return nil, nil
		}
		u, err := e.usage.Get(ctx, tenantID, sub.PeriodStart)
		if err != nil {
			return nil, err
		}
		if u.Messages+1 > plan.MonthlyMessageCap {
			return &Decision{Reason: ReasonMessageCapExceeded}, nil
		}

	case OpCharsUpload:
		if plan.MonthlyUploadCharCap == plans.Unlimited {
			return nil, nil
		}
		u, err := e.usage.Get(ctx, tenantID, sub.PeriodStart)
		if err != nil {
			return nil, err
		}
		if u.Chars+req.Amount > plan.MonthlyUploadCharCap {
			return &Decision{Reason: ReasonUploadCapExceeded}, nil
		}
	}
	return nil, nil
}

// RecordOutcome completes the two-phase protocol for an admitted decision.
// On success it increments the relevant usage accumulator against the
// billing period captured at admission; regardless of success it records
// the terminal outcome under the idempotency key so replays observe the
// same result without re-invoking the external operation.
func (e *Enforcer) RecordOutcome(ctx context.Context, dec *Decision, report Report) error {
	if dec == nil {
		return ErrNilDecision
	}
	if !dec.Allowed {
		return ErrNotAdmitted
	}

	var errs []error

	if report.Succeeded {
		if err := e.consume(ctx, dec, report); err != nil {
			errs = append(errs, err)
		}
	}

	status := idempotency.StatusFailed
	if report.Succeeded {
		status = idempotency.StatusSucceeded
	}
	if err := e.guard.Record(ctx, dec.tenantID, dec.idempotencyKey, status, report.Result); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// consume applies the operation's usage charge. Project creation needs no
// accumulator: the project row's existence is the count.
func (e *Enforcer) consume(ctx context.Context, dec *Decision, report Report) error {
	switch dec.op {
	case OpMessageSend:
		total, err := e.usage.Increment(ctx, dec.tenantID, dec.Subscription.PeriodStart, usage.FieldMessages, 1)
		if err != nil {
			return err
		}
		e.logOvershoot(ctx, dec, usage.FieldMessages, total, dec.Plan.MonthlyMessageCap)

	case OpCharsUpload:
		amount := report.Amount
		if amount <= 0 {
			amount = dec.amount
		}
		total, err := e.usage.Increment(ctx, dec.tenantID, dec.Subscription.PeriodStart, usage.FieldChars, amount)
		if err != nil {
			return err
		}
		e.logOvershoot(ctx, dec, usage.FieldChars, total, dec.Plan.MonthlyUploadCharCap)
	}
	return nil
}

// logOvershoot surfaces the documented soft-cap property: usage may exceed
// the cap by at most the number of requests concurrently past the check.
func (e *Enforcer) logOvershoot(ctx context.Context, dec *Decision, field usage.Field, total, limit int64) {
	if limit != plans.Unlimited && total > limit {
		e.log.WarnContext(ctx, "usage exceeded cap within in-flight bound",
			slog.String("tenant_id", dec.tenantID.String()),
			slog.String("field", string(field)),
			slog.Int64("total", total),
			slog.Int64("cap", limit))
	}
}

// deny finalizes a denied decision. When the denial happened after a fresh
// idempotency claim, a terminal failed outcome is recorded so replays of
// the same key observe the denial instead of a stuck in-flight marker.
func (e *Enforcer) deny(ctx context.Context, tenantID uuid.UUID, op Operation, req Request, dec *Decision, claimed bool) *Decision {
	dec.Allowed = false
	dec.tenantID = tenantID
	dec.op = op
	dec.idempotencyKey = req.IdempotencyKey

	if claimed && req.IdempotencyKey != "" {
		result := "denied:" + string(dec.Reason)
		if err := e.guard.Record(ctx, tenantID, req.IdempotencyKey, idempotency.StatusFailed, result); err != nil {
			e.log.WarnContext(ctx, "failed to record denial outcome",
				slog.String("tenant_id", tenantID.String()),
				slog.Any("error", err))
		}
	}

	e.observe(op, string(dec.Reason))
	e.log.InfoContext(ctx, "admission denied",
		slog.String("tenant_id", tenantID.String()),
		slog.String("operation", string(op)),
		slog.String("reason", string(dec.Reason)))
	return dec
}

// releaseClaim drops a fresh claim after a system fault so the client's
// retry is not misread as a duplicate of a request that never ran.
func (e *Enforcer) releaseClaim(ctx context.Context, tenantID uuid.UUID, key string) {
	if key == "" {
		return
	}
	if err := e.guard.Release(ctx, tenantID, key); err != nil {
		e.log.WarnContext(ctx, "failed to release idempotency claim",
			slog.String("tenant_id", tenantID.String()),
			slog.Any("error", err))
	}
}

// fault wraps a store failure so it cannot be mistaken for a denial.
func (e *Enforcer) fault(ctx context.Context, tenantID uuid.UUID, op Operation, msg string, err error) error {
	e.observe(op, "fault")
	e.log.ErrorContext(ctx, msg,
		slog.String("tenant_id", tenantID.String()),
		slog.String("operation", string(op)),
		slog.Any("error", err))
	return fmt.Errorf("%w: %s: %w", ErrAdmissionUnavailable, msg, err)
}
