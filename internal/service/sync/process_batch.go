package sync

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
	"github.com/lifehub-app/backend/pkg/ctxutil"
)

// ProcessBatch applies a client's queued operations strictly in the order
// received. Clients order their queue causally (CREATE before a later
// UPDATE of the same entity), so reordering or parallelizing here would
// manufacture spurious conflicts. Every operation is attempted: one bad
// operation never aborts the rest.
func (s *Service) ProcessBatch(ctx context.Context, input ProcessBatchInput) (*BatchResult, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(s.maxBatchSize); err != nil {
		return nil, err
	}

	res := &BatchResult{
		Results: make([]domain.SyncResult, 0, len(input.Operations)),
	}

	for _, op := range input.Operations {
		op = normalizeOperation(op)

		result := s.applyOperation(ctx, userID, op)
		res.Results = append(res.Results, result)
		res.TotalProcessed++
		if result.Success {
			res.Successful++
		} else {
			res.Failed++
		}

		s.recordHistory(ctx, userID, op, result)
	}

	s.log.InfoContext(ctx, "sync batch processed",
		slog.String("user_id", userID.String()),
		slog.Int("total", res.TotalProcessed),
		slog.Int("successful", res.Successful),
		slog.Int("failed", res.Failed),
	)

	return res, nil
}

// recordHistory appends one processed-operation row for the status
// aggregator. History is advisory: a write failure is logged, not
// surfaced, so it cannot fail an otherwise applied operation.
func (s *Service) recordHistory(ctx context.Context, userID uuid.UUID, op domain.SyncOperation, result domain.SyncResult) {
	now := s.now().UTC()
	row := &domain.QueuedOperation{
		ID:              uuid.New(),
		OperationID:     op.ID,
		UserID:          userID,
		Kind:            op.Kind,
		EntityType:      op.EntityType,
		EntityID:        op.EntityID,
		Payload:         op.Payload,
		ClientTimestamp: op.ClientTimestamp,
		Synced:          result.Success,
		CreatedAt:       now,
	}
	if result.Success {
		row.SyncedAt = &now
	}

	if err := s.oplog.Record(ctx, row); err != nil {
		s.log.WarnContext(ctx, "record sync history failed",
			slog.String("operation_id", op.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
