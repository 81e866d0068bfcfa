// Package entity implements the generic entity store using PostgreSQL.
// Records for every syncable entity type live in one table keyed by
// (entity_type, id); payloads are stored as opaque JSONB.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/lifehub-app/backend/internal/adapter/postgres"
	"github.com/lifehub-app/backend/internal/domain"
)

// Repo provides entity persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new entity repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const entityColumns = "entity_type, id, user_id, payload, created_at, updated_at"

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Get returns the entity with the given type and ID.
// Returns domain.ErrNotFound if no such record exists.
func (r *Repo) Get(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (*domain.Entity, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.
		Select("entity_type", "id", "user_id", "payload", "created_at", "updated_at").
		From("entities").
		Where(sq.Eq{"entity_type": entityType.String(), "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	ent, err := scanEntity(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, entityType.String(), id)
	}

	return ent, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new entity owned by userID.
// Returns domain.ErrAlreadyExists if the (type, id) pair is taken.
func (r *Repo) Create(ctx context.Context, entityType domain.EntityType, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, err)
	}

	now := time.Now().UTC()
	sql, args, err := qb.
		Insert("entities").
		Columns("entity_type", "id", "user_id", "payload", "created_at", "updated_at").
		Values(entityType.String(), id, userID, raw, now, now).
		Suffix("RETURNING " + entityColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create query: %w", err)
	}

	ent, err := scanEntity(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, entityType.String(), id)
	}

	return ent, nil
}

// Update applies a partial payload to an existing entity: fields present
// in partial overwrite the stored fields, the rest are kept (JSONB
// concatenation). updated_at is bumped to now.
// Returns domain.ErrNotFound if the entity does not exist.
func (r *Repo) Update(ctx context.Context, entityType domain.EntityType, id uuid.UUID, partial domain.Payload) (*domain.Entity, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	raw, err := marshalPayload(partial)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, err)
	}

	sql, args, err := qb.
		Update("entities").
		Set("payload", sq.Expr("payload || ?::jsonb", raw)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"entity_type": entityType.String(), "id": id}).
		Suffix("RETURNING " + entityColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update query: %w", err)
	}

	ent, err := scanEntity(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, entityType.String(), id)
	}

	return ent, nil
}

// Delete removes an entity. Idempotent: deleting a nonexistent entity is
// not an error.
func (r *Repo) Delete(ctx context.Context, entityType domain.EntityType, id uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.
		Delete("entities").
		Where(sq.Eq{"entity_type": entityType.String(), "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return mapError(err, entityType.String(), id)
	}

	return nil
}

// Upsert writes the full payload for the entity, creating it if absent and
// overwriting it otherwise. Used by conflict resolution, which must land
// whether or not the entity still exists.
func (r *Repo) Upsert(ctx context.Context, entityType domain.EntityType, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", entityType, id, err)
	}

	now := time.Now().UTC()
	sql, args, err := qb.
		Insert("entities").
		Columns("entity_type", "id", "user_id", "payload", "created_at", "updated_at").
		Values(entityType.String(), id, userID, raw, now, now).
		Suffix(`ON CONFLICT (entity_type, id) DO UPDATE
			SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
			RETURNING ` + entityColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert query: %w", err)
	}

	ent, err := scanEntity(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, entityType.String(), id)
	}

	return ent, nil
}

// ---------------------------------------------------------------------------
// Scanning and payload helpers
// ---------------------------------------------------------------------------

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var (
		ent        domain.Entity
		entityType string
		raw        []byte
	)
	if err := row.Scan(&entityType, &ent.ID, &ent.UserID, &raw, &ent.CreatedAt, &ent.UpdatedAt); err != nil {
		return nil, err
	}
	ent.EntityType = domain.EntityType(entityType)

	if err := json.Unmarshal(raw, &ent.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &ent, nil
}

func marshalPayload(p domain.Payload) ([]byte, error) {
	if p == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, entity string, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	// context errors pass through as-is
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrValidation)
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}
