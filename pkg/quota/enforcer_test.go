package quota_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbase/quotakit/pkg/idempotency"
	"github.com/ragbase/quotakit/pkg/plans"
	"github.com/ragbase/quotakit/pkg/project"
	"github.com/ragbase/quotakit/pkg/quota"
	"github.com/ragbase/quotakit/pkg/ratelimit"
	"github.com/ragbase/quotakit/pkg/subscription"
	"github.com/ragbase/quotakit/pkg/tenant"
	"github.com/ragbase/quotakit/pkg/usage"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testPlans uses a small project cap so overflow scenarios stay cheap.
func testPlans() map[string]plans.Plan {
	return map[string]plans.Plan{
		"hobby": {
			ID:                   "hobby",
			Name:                 "Hobby",
			MaxProjects:          3,
			MonthlyMessageCap:    2000,
			MonthlyUploadCharCap: 500_000,
		},
		"open": {
			ID:                   "open",
			Name:                 "Open",
			MaxProjects:          plans.Unlimited,
			MonthlyMessageCap:    plans.Unlimited,
			MonthlyUploadCharCap: plans.Unlimited,
		},
	}
}

type fixture struct {
	enforcer  *quota.Enforcer
	ledger    *subscription.Ledger
	subStore  *subscription.MemoryStore
	usage     *usage.MemoryStore
	projects  *project.MemoryStore
	guard     *idempotency.Guard
	rateStore *ratelimit.MemoryStore
	clock     *time.Time
}

type fixtureConfig struct {
	rateLimit int
	subs      quota.SubscriptionSource
	usageStore usage.Store
}

func newFixture(t *testing.T, cfg fixtureConfig) *fixture {
	t.Helper()

	ctx := context.Background()

	catalog, err := plans.NewCatalog(ctx, plans.NewInMemSource(testPlans()))
	require.NoError(t, err)

	rateStore := ratelimit.NewMemoryStore()
	t.Cleanup(rateStore.Close)

	limit := cfg.rateLimit
	if limit <= 0 {
		limit = 1000
	}
	limiter, err := ratelimit.NewFixedWindow(rateStore, ratelimit.Config{Limit: limit, Window: time.Hour})
	require.NoError(t, err)

	idemStore := idempotency.NewMemoryStore()
	t.Cleanup(idemStore.Close)
	guard, err := idempotency.NewGuard(idemStore)
	require.NoError(t, err)

	clock := date(2024, time.March, 10)
	now := func() time.Time { return clock }

	subStore := subscription.NewMemoryStore()
	ledger := subscription.NewLedger(catalog, subStore, tenant.NewMemoryStore(),
		subscription.WithClock(now))

	usageStore := usage.NewMemoryStore()
	t.Cleanup(usageStore.Close)

	projects := project.NewMemoryStore()

	var subs quota.SubscriptionSource = ledger
	if cfg.subs != nil {
		subs = cfg.subs
	}
	var us usage.Store = usageStore
	if cfg.usageStore != nil {
		us = cfg.usageStore
	}

	enforcer := quota.NewEnforcer(limiter, guard, subs, us, projects.CountForTenant, catalog,
		quota.WithClock(now),
		quota.WithMetrics(prometheus.NewRegistry()))

	return &fixture{
		enforcer:  enforcer,
		ledger:    ledger,
		subStore:  subStore,
		usage:     usageStore,
		projects:  projects,
		guard:     guard,
		rateStore: rateStore,
		clock:     &clock,
	}
}

// subscribe puts the tenant on the hobby plan with a period covering the
// fixture clock.
func (fx *fixture) subscribe(t *testing.T, tenantID uuid.UUID) *subscription.Subscription {
	t.Helper()

	sub, err := fx.ledger.Upsert(context.Background(), tenantID, "hobby", subscription.CycleMonthly,
		subscription.WithPeriodStart(date(2024, time.March, 1)))
	require.NoError(t, err)
	return sub
}

func TestEnforcer_ProjectCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	fx.subscribe(t, tenantID)

	// Three projects fit the cap.
	for i := range 3 {
		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpProjectCreate, quota.Request{})
		require.NoError(t, err)
		require.True(t, dec.Allowed, "project %d should be admitted", i+1)

		p := &project.Project{TenantID: tenantID, Name: fmt.Sprintf("proj-%d", i)}
		require.NoError(t, fx.projects.Create(ctx, p))
		require.NoError(t, fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: true, Result: p.ID.String()}))
	}

	// The fourth hits the cap.
	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpProjectCreate, quota.Request{})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quota.ReasonProjectCapExceeded, dec.Reason)
}

func TestEnforcer_MessageCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	sub := fx.subscribe(t, tenantID)

	// Burn all but one message of the 2000 cap.
	_, err := fx.usage.Increment(ctx, tenantID, sub.PeriodStart, usage.FieldMessages, 1999)
	require.NoError(t, err)

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{})
	require.NoError(t, err)
	require.True(t, dec.Allowed, "message 2000 fills the cap exactly")
	require.NoError(t, fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: true}))

	dec, err = fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quota.ReasonMessageCapExceeded, dec.Reason)
}

func TestEnforcer_UploadCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	sub := fx.subscribe(t, tenantID)

	_, err := fx.usage.Increment(ctx, tenantID, sub.PeriodStart, usage.FieldChars, 150_000)
	require.NoError(t, err)

	t.Run("denied when the sum crosses the cap", func(t *testing.T) {
		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 400_000})
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, quota.ReasonUploadCapExceeded, dec.Reason)
	})

	t.Run("filling to exactly the cap is admitted", func(t *testing.T) {
		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 350_000})
		require.NoError(t, err)
		require.True(t, dec.Allowed)
		require.NoError(t, fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: true, Amount: 350_000}))

		// One more character is over.
		dec, err = fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 1})
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, quota.ReasonUploadCapExceeded, dec.Reason)
	})

	t.Run("amount is required", func(t *testing.T) {
		_, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{})
		assert.ErrorIs(t, err, quota.ErrAmountRequired)
	})
}

func TestEnforcer_UnlimitedPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()

	_, err := fx.ledger.Upsert(ctx, tenantID, "open", subscription.CycleMonthly,
		subscription.WithPeriodStart(date(2024, time.March, 1)))
	require.NoError(t, err)

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 1_000_000_000})
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestEnforcer_NoActiveSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	fx.subscribe(t, tenantID)

	// The period lapses; the row stays.
	*fx.clock = date(2024, time.April, 2)

	for _, op := range []quota.Operation{quota.OpProjectCreate, quota.OpMessageSend} {
		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, op, quota.Request{})
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, quota.ReasonNoActiveSubscription, dec.Reason)
	}

	_, err := fx.subStore.Get(ctx, tenantID)
	assert.NoError(t, err)
}

func TestEnforcer_RateLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{rateLimit: 2})
	tenantID := uuid.New()
	fx.subscribe(t, tenantID)

	for range 2 {
		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{})
		require.NoError(t, err)
		require.True(t, dec.Allowed)
	}

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{IdempotencyKey: "rl-req"})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quota.ReasonRateLimited, dec.Reason)
	assert.Positive(t, dec.RetryAfter)

	// The rate check runs before the idempotency claim, so the key was
	// never consumed.
	claim, err := fx.guard.ClaimKey(ctx, tenantID, "rl-req")
	require.NoError(t, err)
	assert.True(t, claim.Fresh)
}

func TestEnforcer_IdempotentReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	sub := fx.subscribe(t, tenantID)

	req := quota.Request{IdempotencyKey: "msg-123"}

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, req)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	require.NoError(t, fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: true, Result: "resp-1"}))

	// The replay is denied without re-running the operation, and it
	// carries the first request's recorded outcome.
	replay, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, req)
	require.NoError(t, err)
	assert.False(t, replay.Allowed)
	assert.Equal(t, quota.ReasonAlreadyHandled, replay.Reason)
	require.NotNil(t, replay.Prior)
	assert.Equal(t, idempotency.StatusSucceeded, replay.Prior.Status)
	assert.Equal(t, "resp-1", replay.Prior.Result)

	// Usage was charged exactly once.
	u, err := fx.usage.Get(ctx, tenantID, sub.PeriodStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Messages)
}

func TestEnforcer_InFlightDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	fx.subscribe(t, tenantID)

	req := quota.Request{IdempotencyKey: "msg-inflight"}

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, req)
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	// A duplicate arriving before RecordOutcome sees the in-flight marker.
	dup, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, req)
	require.NoError(t, err)
	assert.False(t, dup.Allowed)
	assert.Equal(t, quota.ReasonAlreadyHandled, dup.Reason)
	require.NotNil(t, dup.Prior)
	assert.Equal(t, idempotency.StatusInFlight, dup.Prior.Status)
}

func TestEnforcer_DenialReplaysUnderKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	fx.subscribe(t, tenantID)
	*fx.clock = date(2024, time.April, 2)

	req := quota.Request{IdempotencyKey: "lapsed-req"}

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, req)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, quota.ReasonNoActiveSubscription, dec.Reason)

	// The key was claimed and the denial recorded, so the retry replays it.
	replay, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, req)
	require.NoError(t, err)
	assert.Equal(t, quota.ReasonAlreadyHandled, replay.Reason)
	require.NotNil(t, replay.Prior)
	assert.Equal(t, idempotency.StatusFailed, replay.Prior.Status)
	assert.Equal(t, "denied:no_active_subscription", replay.Prior.Result)
}

type failingSubs struct{}

func (failingSubs) GetActive(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	return nil, errors.New("connection refused")
}

type failingUsage struct{}

func (failingUsage) Increment(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, field usage.Field, amount int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingUsage) Get(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (usage.Usage, error) {
	return usage.Usage{}, errors.New("connection refused")
}

func TestEnforcer_FailsClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("subscription store down", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, fixtureConfig{subs: failingSubs{}})
		tenantID := uuid.New()

		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{IdempotencyKey: "fault-1"})
		require.ErrorIs(t, err, quota.ErrAdmissionUnavailable)
		assert.Nil(t, dec)

		// The fresh claim was released, so the client's retry is not
		// misread as a duplicate.
		claim, err := fx.guard.ClaimKey(ctx, tenantID, "fault-1")
		require.NoError(t, err)
		assert.True(t, claim.Fresh)
	})

	t.Run("usage store down", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, fixtureConfig{usageStore: failingUsage{}})
		tenantID := uuid.New()
		fx.subscribe(t, tenantID)

		_, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{})
		assert.ErrorIs(t, err, quota.ErrAdmissionUnavailable)
	})

	t.Run("fault is distinguishable from every denial", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t, fixtureConfig{subs: failingSubs{}})

		_, err := fx.enforcer.CheckAdmission(ctx, uuid.New(), quota.OpMessageSend, quota.Request{})
		require.Error(t, err)
		assert.ErrorIs(t, err, quota.ErrAdmissionUnavailable)
	})
}

func TestEnforcer_BoundedOvershoot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	sub := fx.subscribe(t, tenantID)

	_, err := fx.usage.Increment(ctx, tenantID, sub.PeriodStart, usage.FieldChars, 200_000)
	require.NoError(t, err)

	// Two uploads of 200k each fit individually (200k used of 500k) but
	// not together. Both pass the check before either increments: the
	// documented soft-cap behavior.
	decA, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 200_000})
	require.NoError(t, err)
	require.True(t, decA.Allowed)

	decB, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 200_000})
	require.NoError(t, err)
	require.True(t, decB.Allowed)

	var wg sync.WaitGroup
	wg.Add(2)
	for _, dec := range []*quota.Decision{decA, decB} {
		go func() {
			defer wg.Done()
			assert.NoError(t, fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: true, Amount: 200_000}))
		}()
	}
	wg.Wait()

	// The overshoot is bounded by the concurrently in-flight amounts.
	u, err := fx.usage.Get(ctx, tenantID, sub.PeriodStart)
	require.NoError(t, err)
	assert.Equal(t, int64(600_000), u.Chars)

	// The next check sees the overshoot and denies.
	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpCharsUpload, quota.Request{Amount: 1})
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, quota.ReasonUploadCapExceeded, dec.Reason)
}

func TestEnforcer_FailedOperationNotCharged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})
	tenantID := uuid.New()
	sub := fx.subscribe(t, tenantID)

	dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{IdempotencyKey: "failed-op"})
	require.NoError(t, err)
	require.True(t, dec.Allowed)

	require.NoError(t, fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: false, Result: "provider timeout"}))

	// No usage charged, but the failure replays under the key.
	u, err := fx.usage.Get(ctx, tenantID, sub.PeriodStart)
	require.NoError(t, err)
	assert.Zero(t, u.Messages)

	replay, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpMessageSend, quota.Request{IdempotencyKey: "failed-op"})
	require.NoError(t, err)
	require.NotNil(t, replay.Prior)
	assert.Equal(t, idempotency.StatusFailed, replay.Prior.Status)
}

func TestEnforcer_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newFixture(t, fixtureConfig{})

	t.Run("unknown operation", func(t *testing.T) {
		t.Parallel()

		_, err := fx.enforcer.CheckAdmission(ctx, uuid.New(), quota.Operation("tokens.mint"), quota.Request{})
		assert.ErrorIs(t, err, quota.ErrInvalidOperation)
	})

	t.Run("record requires a decision", func(t *testing.T) {
		t.Parallel()

		err := fx.enforcer.RecordOutcome(ctx, nil, quota.Report{Succeeded: true})
		assert.ErrorIs(t, err, quota.ErrNilDecision)
	})

	t.Run("record rejects denied decisions", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		fx.subscribe(t, tenantID)

		for range 3 {
			require.NoError(t, fx.projects.Create(ctx, &project.Project{TenantID: tenantID, Name: uuid.NewString()}))
		}

		dec, err := fx.enforcer.CheckAdmission(ctx, tenantID, quota.OpProjectCreate, quota.Request{})
		require.NoError(t, err)
		require.False(t, dec.Allowed)

		err = fx.enforcer.RecordOutcome(ctx, dec, quota.Report{Succeeded: true})
		assert.ErrorIs(t, err, quota.ErrNotAdmitted)
	})
}

func TestNewEnforcer_RequiresDependencies(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		quota.NewEnforcer(nil, nil, nil, nil, nil, nil)
	})
}
