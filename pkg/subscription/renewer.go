package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultRenewSchedule sweeps lapsed subscriptions nightly at 02:00.
const DefaultRenewSchedule = "0 2 * * *"

// Renewer rolls over lapsed subscriptions on a cron schedule so tenants on
// auto-renewing plans regain an active billing period without an explicit
// resubscribe call.
type Renewer struct {
	ledger   *Ledger
	store    Store
	schedule string
	cron     *cron.Cron
	log      *slog.Logger

	mu      sync.Mutex
	running bool
}

// RenewerOption configures a Renewer.
type RenewerOption func(*Renewer)

// WithSchedule overrides the cron expression for the sweep.
func WithSchedule(expr string) RenewerOption {
	return func(r *Renewer) {
		if expr != "" {
			r.schedule = expr
		}
	}
}

// WithRenewerLogger sets the sweep logger.
func WithRenewerLogger(log *slog.Logger) RenewerOption {
	return func(r *Renewer) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRenewer creates a rollover sweeper for the given ledger and store.
func NewRenewer(ledger *Ledger, store Store, opts ...RenewerOption) *Renewer {
	if ledger == nil {
		panic("subscription: ledger is required")
	}
	if store == nil {
		panic("subscription: store is required")
	}

	r := &Renewer{
		ledger:   ledger,
		store:    store,
		schedule: DefaultRenewSchedule,
		cron:     cron.New(),
		log:      slog.Default().With(slog.String("component", "subscription.renewer")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start schedules the sweep and stops it when the context is cancelled.
func (r *Renewer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid renew schedule %q: %w", r.schedule, err)
	}

	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule subscription renewal: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.log.InfoContext(ctx, "subscription renewer started", slog.String("schedule", r.schedule))

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Sweep rolls over every lapsed subscription once. Individual failures are
// logged and do not stop the sweep.
func (r *Renewer) Sweep(ctx context.Context) {
	lapsed, err := r.store.ListLapsed(ctx, r.ledger.now())
	if err != nil {
		r.log.ErrorContext(ctx, "failed to list lapsed subscriptions", slog.Any("error", err))
		return
	}

	var renewed int
	for _, sub := range lapsed {
		if _, err := r.ledger.Rollover(ctx, sub.TenantID); err != nil {
			// A concurrent resubscribe can re-activate the row mid-sweep.
			if errors.Is(err, ErrSubscriptionStillActive) {
				continue
			}
			r.log.ErrorContext(ctx, "subscription rollover failed",
				slog.String("tenant_id", sub.TenantID.String()),
				slog.Any("error", err))
			continue
		}
		renewed++
	}

	if renewed > 0 {
		r.log.InfoContext(ctx, "subscription sweep completed", slog.Int("renewed", renewed))
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (r *Renewer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		<-r.cron.Stop().Done()
		r.running = false
	}
}
