package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragbase/quotakit/pkg/pg"
)

// PostgresStore implements Store on top of the subscriptions table.
// The single-row INSERT ... ON CONFLICT upsert guarantees that plan and
// period boundaries are replaced together; two concurrent subscribe calls
// cannot produce a torn row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed subscription store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

// Get retrieves a subscription by tenant ID.
func (s *PostgresStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	var sub Subscription
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, plan_id, billing_cycle, period_start, period_end
		 FROM subscriptions WHERE tenant_id = $1`,
		tenantID,
	).Scan(&sub.TenantID, &sub.PlanID, &sub.Cycle, &sub.PeriodStart, &sub.PeriodEnd)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	sub.PeriodStart = DateOf(sub.PeriodStart)
	sub.PeriodEnd = DateOf(sub.PeriodEnd)
	return &sub, nil
}

// Upsert creates or replaces the tenant's subscription row atomically.
func (s *PostgresStore) Upsert(ctx context.Context, sub *Subscription) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (tenant_id, plan_id, billing_cycle, period_start, period_end)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   plan_id = EXCLUDED.plan_id,
		   billing_cycle = EXCLUDED.billing_cycle,
		   period_start = EXCLUDED.period_start,
		   period_end = EXCLUDED.period_end`,
		sub.TenantID, sub.PlanID, sub.Cycle, sub.PeriodStart, sub.PeriodEnd,
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// ListLapsed returns subscriptions whose period ended at or before asOf.
func (s *PostgresStore) ListLapsed(ctx context.Context, asOf time.Time) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, plan_id, billing_cycle, period_start, period_end
		 FROM subscriptions WHERE period_end <= $1`,
		DateOf(asOf),
	)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var lapsed []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.TenantID, &sub.PlanID, &sub.Cycle, &sub.PeriodStart, &sub.PeriodEnd); err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		sub.PeriodStart = DateOf(sub.PeriodStart)
		sub.PeriodEnd = DateOf(sub.PeriodEnd)
		lapsed = append(lapsed, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return lapsed, nil
}
