package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on top of the usage_counters table.
// The upsert-with-RETURNING form makes each increment a single atomic round
// trip; Postgres serializes concurrent updates on the row, so no increments
// are lost.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed usage store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("usage: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

// Increment atomically adds amount and returns the post-increment total.
func (s *PostgresStore) Increment(ctx context.Context, tenantID uuid.UUID, periodStart time.Time, field Field, amount int64) (int64, error) {
	if field != FieldMessages && field != FieldChars {
		return 0, ErrInvalidField
	}
	if amount < 0 {
		return 0, ErrInvalidAmount
	}

	var total int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usage_counters (tenant_id, period_start, field, amount)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, period_start, field)
		 DO UPDATE SET amount = usage_counters.amount + EXCLUDED.amount
		 RETURNING amount`,
		tenantID, periodStart, string(field), amount,
	).Scan(&total)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return total, nil
}

// Get returns the tenant's accumulators for the given period.
func (s *PostgresStore) Get(ctx context.Context, tenantID uuid.UUID, periodStart time.Time) (Usage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field, amount FROM usage_counters
		 WHERE tenant_id = $1 AND period_start = $2`,
		tenantID, periodStart,
	)
	if err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var u Usage
	for rows.Next() {
		var field string
		var amount int64
		if err := rows.Scan(&field, &amount); err != nil {
			return Usage{}, errors.Join(ErrStoreUnavailable, err)
		}
		switch Field(field) {
		case FieldMessages:
			u.Messages = amount
		case FieldChars:
			u.Chars = amount
		}
	}
	if err := rows.Err(); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	return u, nil
}
