// Package conflict implements the ConflictRecord store using PostgreSQL.
// Records are created once on divergence detection, closed once on
// resolution, and never deleted by the sync subsystem.
package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/lifehub-app/backend/internal/adapter/postgres"
	"github.com/lifehub-app/backend/internal/domain"
)

// Repo provides conflict record persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new conflict repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const conflictColumns = "id, user_id, entity_type, entity_id, local_version, server_version, strategy, resolved_version, created_at, resolved_at"

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Insert persists a newly detected conflict. ID and CreatedAt must be set
// by the caller; Strategy, ResolvedVersion, ResolvedAt must be unset.
func (r *Repo) Insert(ctx context.Context, rec *domain.ConflictRecord) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	local, err := json.Marshal(rec.LocalVersion)
	if err != nil {
		return fmt.Errorf("conflict %s: marshal local version: %w", rec.ID, err)
	}
	server, err := json.Marshal(rec.ServerVersion)
	if err != nil {
		return fmt.Errorf("conflict %s: marshal server version: %w", rec.ID, err)
	}

	sql, args, err := qb.
		Insert("sync_conflicts").
		Columns("id", "user_id", "entity_type", "entity_id", "local_version", "server_version", "created_at").
		Values(rec.ID, rec.UserID, rec.EntityType.String(), rec.EntityID, local, server, rec.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return mapError(err, rec.ID)
	}

	return nil
}

// Resolve closes an open conflict: sets strategy, resolved version and
// resolved_at exactly once. The WHERE guard makes the close atomic:
// a concurrent second resolution sees zero rows affected.
// Returns domain.ErrAlreadyResolved if the record is already closed and
// domain.ErrNotFound if it does not exist.
func (r *Repo) Resolve(ctx context.Context, id uuid.UUID, strategy domain.ResolutionStrategy, resolved domain.Payload, resolvedAt time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	// A nil payload must store as '{}', never jsonb 'null': the close guard
	// keys on resolved_version IS NULL, and a scanned-back record must still
	// report itself resolved.
	if resolved == nil {
		resolved = domain.Payload{}
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("conflict %s: marshal resolved version: %w", id, err)
	}

	sql, args, err := qb.
		Update("sync_conflicts").
		Set("strategy", strategy.String()).
		Set("resolved_version", raw).
		Set("resolved_at", resolvedAt).
		Where(sq.Eq{"id": id}).
		Where("resolved_version IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build resolve query: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, id)
	}

	if tag.RowsAffected() == 0 {
		// Distinguish "gone" from "already closed".
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("conflict %s: %w", id, domain.ErrAlreadyResolved)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a conflict record by primary key.
// Returns domain.ErrNotFound if it does not exist.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConflictRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.
		Select(conflictColumns).
		From("sync_conflicts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	rec, err := scanConflict(q.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err, id)
	}

	return rec, nil
}

// ListOpenByUser returns the user's unresolved conflicts, oldest first.
func (r *Repo) ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error) {
	return r.listByUser(ctx, userID, true)
}

// ListAllByUser returns all of the user's conflicts, resolved included,
// oldest first. Kept for operator tooling and tests.
func (r *Repo) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error) {
	return r.listByUser(ctx, userID, false)
}

func (r *Repo) listByUser(ctx context.Context, userID uuid.UUID, openOnly bool) ([]*domain.ConflictRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	builder := qb.
		Select(conflictColumns).
		From("sync_conflicts").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC")
	if openOnly {
		builder = builder.Where("resolved_version IS NULL")
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync_conflicts: %w", err)
	}
	defer rows.Close()

	var recs []*domain.ConflictRecord
	for rows.Next() {
		rec, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync_conflict: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync_conflicts: %w", err)
	}

	return recs, nil
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

func scanConflict(row pgx.Row) (*domain.ConflictRecord, error) {
	var (
		rec        domain.ConflictRecord
		entityType string
		local      []byte
		server     []byte
		strategy   *string
		resolved   []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &entityType, &rec.EntityID,
		&local, &server, &strategy, &resolved,
		&rec.CreatedAt, &rec.ResolvedAt,
	); err != nil {
		return nil, err
	}
	rec.EntityType = domain.EntityType(entityType)

	if err := json.Unmarshal(local, &rec.LocalVersion); err != nil {
		return nil, fmt.Errorf("unmarshal local version: %w", err)
	}
	if err := json.Unmarshal(server, &rec.ServerVersion); err != nil {
		return nil, fmt.Errorf("unmarshal server version: %w", err)
	}
	if strategy != nil {
		s := domain.ResolutionStrategy(*strategy)
		rec.Strategy = &s
	}
	if resolved != nil {
		if err := json.Unmarshal(resolved, &rec.ResolvedVersion); err != nil {
			return nil, fmt.Errorf("unmarshal resolved version: %w", err)
		}
	}

	return &rec, nil
}

// mapError converts pgx errors into domain errors.
func mapError(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("conflict %s: %w", id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("conflict %s: %w", id, domain.ErrNotFound)
	}

	return fmt.Errorf("conflict %s: %w", id, err)
}
