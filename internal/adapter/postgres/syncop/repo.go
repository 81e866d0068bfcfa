// Package syncop implements the processed-operation history store using
// PostgreSQL. The status aggregator reads it to partition a user's queue
// into synced and pending operations.
package syncop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/lifehub-app/backend/internal/adapter/postgres"
	"github.com/lifehub-app/backend/internal/domain"
)

// Repo provides sync-operation history persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new sync-operation repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Record inserts one processed-operation history row.
func (r *Repo) Record(ctx context.Context, op *domain.QueuedOperation) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	raw, err := json.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("sync_operation %s: marshal payload: %w", op.ID, err)
	}

	sql, args, err := qb.
		Insert("sync_operations").
		Columns("id", "operation_id", "user_id", "kind", "entity_type", "entity_id",
			"payload", "client_timestamp", "synced", "synced_at", "created_at").
		Values(op.ID, op.OperationID, op.UserID, op.Kind.String(), op.EntityType.String(),
			op.EntityID, raw, op.ClientTimestamp, op.Synced, op.SyncedAt, op.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record query: %w", err)
	}

	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("sync_operation %s: %w", op.ID, err)
	}

	return nil
}

// ListByUser returns the user's full operation history, oldest first.
func (r *Repo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.QueuedOperation, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	sql, args, err := qb.
		Select("id", "operation_id", "user_id", "kind", "entity_type", "entity_id",
			"payload", "client_timestamp", "synced", "synced_at", "created_at").
		From("sync_operations").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync_operations: %w", err)
	}
	defer rows.Close()

	var ops []*domain.QueuedOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync_operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync_operations: %w", err)
	}

	return ops, nil
}

func scanOperation(row pgx.Row) (*domain.QueuedOperation, error) {
	var (
		op         domain.QueuedOperation
		kind       string
		entityType string
		raw        []byte
	)
	if err := row.Scan(
		&op.ID, &op.OperationID, &op.UserID, &kind, &entityType, &op.EntityID,
		&raw, &op.ClientTimestamp, &op.Synced, &op.SyncedAt, &op.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	op.Kind = domain.OperationKind(kind)
	op.EntityType = domain.EntityType(entityType)

	if err := json.Unmarshal(raw, &op.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	return &op, nil
}
