package sync

import (
	"context"
	"fmt"

	"github.com/lifehub-app/backend/internal/domain"
	"github.com/lifehub-app/backend/pkg/ctxutil"
)

// ListConflicts returns the authenticated user's conflict records, open
// ones only unless includeResolved is set.
func (s *Service) ListConflicts(ctx context.Context, includeResolved bool) ([]*domain.ConflictRecord, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	list := s.conflicts.ListOpenByUser
	if includeResolved {
		list = s.conflicts.ListAllByUser
	}

	recs, err := list(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return recs, nil
}
