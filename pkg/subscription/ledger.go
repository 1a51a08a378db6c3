package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ragbase/quotakit/pkg/plans"
	"github.com/ragbase/quotakit/pkg/tenant"
)

// Ledger is the sole writer of subscription state. It validates plan
// references against the catalog, derives period boundaries from the billing
// cycle, and keeps the tenant's denormalized plan hint in sync.
type Ledger struct {
	catalog *plans.Catalog
	store   Store
	tenants tenant.Store
	log     *slog.Logger
	now     func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger sets the logger used for non-fatal bookkeeping failures.
func WithLogger(log *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates a subscription ledger.
// Panics if required dependencies are nil to fail fast during initialization.
func NewLedger(catalog *plans.Catalog, store Store, tenants tenant.Store, opts ...LedgerOption) *Ledger {
	if catalog == nil {
		panic("subscription: plan catalog is required")
	}
	if store == nil {
		panic("subscription: store is required")
	}
	if tenants == nil {
		panic("subscription: tenant store is required")
	}

	l := &Ledger{
		catalog: catalog,
		store:   store,
		tenants: tenants,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetActive returns the tenant's subscription only while its billing period
// covers today. A lapsed row is reported as ErrNoActiveSubscription even
// though it still exists; rollover or resubscription must occur explicitly.
func (l *Ledger) GetActive(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	sub, err := l.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	if !sub.ActiveAt(l.now()) {
		return nil, ErrNoActiveSubscription
	}
	return sub, nil
}

// UpsertOption configures a single Upsert call.
type UpsertOption func(*upsertParams)

type upsertParams struct {
	periodStart time.Time
}

// WithPeriodStart anchors the new billing period at the given date instead
// of today.
func WithPeriodStart(start time.Time) UpsertOption {
	return func(p *upsertParams) {
		p.periodStart = DateOf(start)
	}
}

// Upsert establishes or replaces the tenant's subscription. The plan ID is
// validated against the catalog, the period end derived from the billing
// cycle, and the row replaced atomically. The tenant's plan hint is synced
// afterwards on a best-effort basis: it is a non-authoritative mirror and a
// failed sync must not roll back the subscription.
func (l *Ledger) Upsert(ctx context.Context, tenantID uuid.UUID, planID string, cycle BillingCycle, opts ...UpsertOption) (*Subscription, error) {
	if _, err := ParseBillingCycle(string(cycle)); err != nil {
		return nil, err
	}
	if _, err := l.catalog.Get(planID); err != nil {
		return nil, err
	}

	params := upsertParams{periodStart: DateOf(l.now())}
	for _, opt := range opts {
		opt(&params)
	}

	sub := &Subscription{
		TenantID:    tenantID,
		PlanID:      planID,
		Cycle:       cycle,
		PeriodStart: params.periodStart,
		PeriodEnd:   NextPeriodEnd(params.periodStart, cycle),
	}
	if !sub.PeriodStart.Before(sub.PeriodEnd) {
		return nil, ErrInvalidPeriod
	}

	if err := l.store.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	if err := l.tenants.SetPlanID(ctx, tenantID, planID); err != nil {
		l.log.WarnContext(ctx, "failed to sync tenant plan hint",
			slog.String("tenant_id", tenantID.String()),
			slog.String("plan_id", planID),
			slog.Any("error", err))
	}

	return sub, nil
}

// Rollover re-anchors a lapsed subscription at the day its previous period
// ended, preserving the plan and cycle. Usage counters for the new period
// start clean automatically because they are keyed by period start.
func (l *Ledger) Rollover(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	sub, err := l.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.ActiveAt(l.now()) {
		return nil, ErrSubscriptionStillActive
	}

	// Advance whole periods until the window covers today, so a row that
	// lapsed several periods ago lands on the current one, not the next.
	today := DateOf(l.now())
	start := DateOf(sub.PeriodEnd)
	for !today.Before(NextPeriodEnd(start, sub.Cycle)) {
		start = NextPeriodEnd(start, sub.Cycle)
	}

	return l.Upsert(ctx, tenantID, sub.PlanID, sub.Cycle, WithPeriodStart(start))
}
