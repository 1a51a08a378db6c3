package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragbase/quotakit/pkg/pg"
)

// PostgresStore implements Store on top of the projects table. The
// uq_project_tenant_name constraint enforces (tenant, name) uniqueness at
// the database level, so concurrent creates cannot slip past the check.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed project store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("project: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

// Create inserts a new project.
func (s *PostgresStore) Create(ctx context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, tenant_id, name, vector_store_id, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		p.ID, p.TenantID, p.Name, p.VectorStoreID, p.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrProjectAlreadyExists
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// GetByID retrieves a project.
func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	return s.get(ctx, `id = $1`, id)
}

// GetByTenantAndName retrieves a project by its unique natural key.
func (s *PostgresStore) GetByTenantAndName(ctx context.Context, tenantID uuid.UUID, name string) (*Project, error) {
	return s.get(ctx, `tenant_id = $1 AND name = $2`, tenantID, name)
}

func (s *PostgresStore) get(ctx context.Context, where string, args ...any) (*Project, error) {
	var p Project
	var vectorStoreID *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, vector_store_id, created_at FROM projects WHERE `+where,
		args...,
	).Scan(&p.ID, &p.TenantID, &p.Name, &vectorStoreID, &p.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrProjectNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if vectorStoreID != nil {
		p.VectorStoreID = *vectorStoreID
	}
	return &p, nil
}

// SetVectorStoreID attaches the external provider's store reference.
func (s *PostgresStore) SetVectorStoreID(ctx context.Context, id uuid.UUID, vectorStoreID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET vector_store_id = $2 WHERE id = $1`,
		id, vectorStoreID,
	)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// CountForTenant returns the number of live projects for the tenant.
func (s *PostgresStore) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM projects WHERE tenant_id = $1`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return count, nil
}
