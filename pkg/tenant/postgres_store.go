package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragbase/quotakit/pkg/pg"
)

// PostgresStore implements Store on top of the tenants table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed tenant store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("tenant: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

// Create inserts a new tenant.
func (s *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, plan_id, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.PlanID, t.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrTenantAlreadyExists
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Get retrieves a tenant by ID.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, plan_id, created_at FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.PlanID, &t.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTenantNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return &t, nil
}

// SetPlanID updates the denormalized current-plan hint.
func (s *PostgresStore) SetPlanID(ctx context.Context, id uuid.UUID, planID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET plan_id = $2 WHERE id = $1`,
		id, planID,
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}
