package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
)

// applyOperation applies one queued mutation against the entity store and
// returns its per-operation result. Divergences are recorded as conflicts;
// store failures and malformed operations are plain failures. No outcome
// of a single operation ever aborts the surrounding batch.
func (s *Service) applyOperation(ctx context.Context, userID uuid.UUID, op domain.SyncOperation) domain.SyncResult {
	if !op.Kind.IsValid() {
		return failure(op, fmt.Sprintf("unknown operation kind %q", op.Kind))
	}

	store, err := s.registry.StoreFor(op.EntityType)
	if err != nil {
		return failure(op, fmt.Sprintf("unknown entity type %q", op.EntityType))
	}

	switch op.Kind {
	case domain.OperationCreate:
		return s.applyCreate(ctx, store, userID, op)
	case domain.OperationUpdate:
		return s.applyUpdate(ctx, store, userID, op)
	default:
		return s.applyDelete(ctx, store, op)
	}
}

// applyCreate creates the entity, or records a conflict when the
// client-assigned ID is already taken. A replayed CREATE after a client
// retry lands here too: it must surface as a reconcilable conflict rather
// than silently overwrite or silently no-op.
func (s *Service) applyCreate(ctx context.Context, store EntityStore, userID uuid.UUID, op domain.SyncOperation) domain.SyncResult {
	existing, err := store.Get(ctx, op.EntityID)
	switch {
	case err == nil:
		return s.recordConflict(ctx, userID, op, existing)
	case !errors.Is(err, domain.ErrNotFound):
		return failure(op, fmt.Sprintf("look up entity: %v", err))
	}

	created, err := store.Create(ctx, op.EntityID, userID, op.Payload)
	if err != nil {
		// Lost the race between the existence check and the insert:
		// the winner's row is the server version of a conflict.
		if errors.Is(err, domain.ErrAlreadyExists) {
			if existing, getErr := store.Get(ctx, op.EntityID); getErr == nil {
				return s.recordConflict(ctx, userID, op, existing)
			}
		}
		return failure(op, fmt.Sprintf("create entity: %v", err))
	}

	s.log.InfoContext(ctx, "entity created",
		slog.String("entity_type", op.EntityType.String()),
		slog.String("entity_id", created.ID.String()),
	)
	return success(op)
}

// applyUpdate applies a partial update, falling back to CREATE semantics
// when the entity does not exist (its creation may not have been delivered
// yet). An update against a server state newer than the client's declared
// prior knowledge is a stale edit and records a conflict.
func (s *Service) applyUpdate(ctx context.Context, store EntityStore, userID uuid.UUID, op domain.SyncOperation) domain.SyncResult {
	existing, err := store.Get(ctx, op.EntityID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return failure(op, fmt.Sprintf("look up entity: %v", err))
		}
		if _, err := store.Create(ctx, op.EntityID, userID, op.Payload); err != nil {
			return failure(op, fmt.Sprintf("create entity from update: %v", err))
		}
		return success(op)
	}

	// Strictly newer server state means the client edited a stale view.
	if existing.UpdatedAt.After(op.ClientTimestamp) {
		return s.recordConflict(ctx, userID, op, existing)
	}

	if _, err := store.Update(ctx, op.EntityID, op.Payload); err != nil {
		return failure(op, fmt.Sprintf("update entity: %v", err))
	}
	return success(op)
}

// applyDelete deletes best-effort. Deleting an absent entity is a success:
// re-delivery of deletes after network retries is common.
func (s *Service) applyDelete(ctx context.Context, store EntityStore, op domain.SyncOperation) domain.SyncResult {
	if err := store.Delete(ctx, op.EntityID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return success(op)
		}
		return failure(op, fmt.Sprintf("delete entity: %v", err))
	}
	return success(op)
}

// recordConflict persists the divergence and embeds both versions in the
// failed result so the caller can resolve without a follow-up fetch.
func (s *Service) recordConflict(ctx context.Context, userID uuid.UUID, op domain.SyncOperation, existing *domain.Entity) domain.SyncResult {
	rec := &domain.ConflictRecord{
		ID:            uuid.New(),
		UserID:        userID,
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		LocalVersion:  op.Payload.Clone(),
		ServerVersion: existing.Snapshot(),
		CreatedAt:     s.now().UTC(),
	}

	if err := s.conflicts.Insert(ctx, rec); err != nil {
		return failure(op, fmt.Sprintf("record conflict: %v", err))
	}

	s.log.InfoContext(ctx, "sync conflict recorded",
		slog.String("conflict_id", rec.ID.String()),
		slog.String("entity_type", op.EntityType.String()),
		slog.String("entity_id", op.EntityID.String()),
		slog.String("kind", op.Kind.String()),
	)

	res := failure(op, "conflict detected")
	res.Conflict = &domain.ConflictInfo{
		ConflictID:    rec.ID,
		LocalVersion:  rec.LocalVersion,
		ServerVersion: rec.ServerVersion,
	}
	return res
}

func success(op domain.SyncOperation) domain.SyncResult {
	return domain.SyncResult{OperationID: op.ID, Success: true}
}

func failure(op domain.SyncOperation, msg string) domain.SyncResult {
	return domain.SyncResult{OperationID: op.ID, Success: false, Error: msg}
}

// normalizeOperation fills in defaulted fields: a CREATE without an
// explicit entity ID targets the operation's own ID.
func normalizeOperation(op domain.SyncOperation) domain.SyncOperation {
	if op.EntityID == uuid.Nil {
		op.EntityID = op.ID
	}
	if op.ClientTimestamp.IsZero() {
		// A client that never saw the entity declares epoch knowledge,
		// which flags any concurrent server change as a conflict.
		op.ClientTimestamp = time.Unix(0, 0).UTC()
	}
	return op
}
