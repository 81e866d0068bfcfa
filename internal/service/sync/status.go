package sync

import (
	"context"
	"fmt"

	"github.com/lifehub-app/backend/internal/domain"
	"github.com/lifehub-app/backend/pkg/ctxutil"
)

// Status computes the read-only sync summary for the authenticated user:
// synced/pending operation counts, the most recent sync time, pending
// counts per entity type, and a projection of the open conflicts. Safe to
// poll; it has no side effects.
func (s *Service) Status(ctx context.Context) (*domain.SyncStatusSummary, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	ops, err := s.oplog.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}

	summary := &domain.SyncStatusSummary{
		Status:          domain.SyncStatusSynced,
		PendingByEntity: make(map[domain.EntityType]int),
	}

	for _, op := range ops {
		summary.TotalOperations++
		if op.Synced {
			summary.SyncedOperations++
			if op.SyncedAt != nil &&
				(summary.LastSyncTime == nil || op.SyncedAt.After(*summary.LastSyncTime)) {
				summary.LastSyncTime = op.SyncedAt
			}
			continue
		}
		summary.PendingOperations++
		summary.PendingByEntity[op.EntityType]++
	}

	if summary.PendingOperations > 0 {
		summary.Status = domain.SyncStatusPending
	}

	open, err := s.conflicts.ListOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open conflicts: %w", err)
	}

	summary.UnresolvedConflicts = len(open)
	summary.Conflicts = make([]domain.ConflictSummary, 0, len(open))
	for _, rec := range open {
		summary.Conflicts = append(summary.Conflicts, domain.ConflictSummary{
			ID:         rec.ID,
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			Strategy:   rec.Strategy,
		})
	}

	return summary, nil
}
