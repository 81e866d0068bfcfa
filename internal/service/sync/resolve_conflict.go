package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lifehub-app/backend/internal/domain"
	"github.com/lifehub-app/backend/pkg/ctxutil"
)

// ResolveConflict computes the final value for a conflicted entity under
// the requested strategy and commits it: the entity upsert and the record
// close run in one transaction, so a failed resolution leaves the record
// open and retryable.
func (s *Service) ResolveConflict(ctx context.Context, input ResolveConflictInput) (*ResolveResult, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	rec, err := s.conflicts.GetByID(ctx, input.ConflictID)
	if err != nil {
		return nil, fmt.Errorf("get conflict: %w", err)
	}

	// The conflict exists but the caller has no right to act on it:
	// forbidden, not not-found.
	if rec.UserID != userID {
		return nil, fmt.Errorf("conflict %s: %w", rec.ID, domain.ErrForbidden)
	}

	if rec.IsResolved() {
		return nil, fmt.Errorf("conflict %s: %w", rec.ID, domain.ErrAlreadyResolved)
	}

	resolved, err := computeResolution(input, rec)
	if err != nil {
		return nil, err
	}

	store, err := s.registry.StoreFor(rec.EntityType)
	if err != nil {
		return nil, err
	}

	// Entity write and record close commit together or not at all, so a
	// failed resolution leaves the record open and retryable.
	resolvedAt := s.now().UTC()
	var ent *domain.Entity
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ent, err = store.Upsert(ctx, rec.EntityID, rec.UserID, resolved)
		if err != nil {
			return fmt.Errorf("write resolved entity: %w", err)
		}
		if err := s.conflicts.Resolve(ctx, rec.ID, input.Strategy, resolved, resolvedAt); err != nil {
			return fmt.Errorf("close conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	strategy := input.Strategy
	rec.Strategy = &strategy
	rec.ResolvedVersion = resolved
	rec.ResolvedAt = &resolvedAt

	s.log.InfoContext(ctx, "sync conflict resolved",
		slog.String("conflict_id", rec.ID.String()),
		slog.String("strategy", input.Strategy.String()),
		slog.String("entity_type", rec.EntityType.String()),
		slog.String("entity_id", rec.EntityID.String()),
	)

	return &ResolveResult{Conflict: rec, Entity: ent}, nil
}

// computeResolution derives the final payload. Explicit resolvedData
// always wins over the computed branches: an operator can submit an
// arbitrary merged value while still recording which named strategy was
// nominally selected.
func computeResolution(input ResolveConflictInput, rec *domain.ConflictRecord) (domain.Payload, error) {
	if input.ResolvedData != nil {
		return input.ResolvedData.Clone(), nil
	}

	switch input.Strategy {
	case domain.StrategyLocalWins:
		return rec.LocalVersion.Clone(), nil
	case domain.StrategyServerWins:
		return rec.ServerVersion.Clone(), nil
	case domain.StrategyLatestWins:
		// Ties break toward the server snapshot.
		if snapshotTime(rec.LocalVersion).After(snapshotTime(rec.ServerVersion)) {
			return rec.LocalVersion.Clone(), nil
		}
		return rec.ServerVersion.Clone(), nil
	case domain.StrategyMerge:
		// Shallow field union, local precedence on overlapping keys.
		// Nested objects are taken wholesale from whichever side wins
		// the key; this is deliberately not a structural merge.
		return rec.LocalVersion.Merge(rec.ServerVersion), nil
	case domain.StrategyManual:
		// Validate() requires resolvedData for MANUAL; reaching here
		// means it was nil.
		return nil, domain.NewValidationError("resolvedData", "required for MANUAL strategy")
	default:
		return nil, domain.NewValidationError("strategy", "unknown strategy")
	}
}

// Epoch-second values stay below this for thousands of years; epoch
// milliseconds (JS Date.now()) crossed it back in 1973.
const epochMillisThreshold = 1e11

// snapshotTime extracts the updatedAt timestamp carried in a snapshot.
// Accepts RFC 3339 strings and numeric epochs, where values at or above
// epochMillisThreshold are read as milliseconds and the rest as seconds
// (including the fractional part JSON numbers decode to); anything
// absent or unparseable counts as the epoch.
func snapshotTime(p domain.Payload) time.Time {
	epoch := time.Unix(0, 0).UTC()
	v, ok := p["updatedAt"]
	if !ok {
		return epoch
	}

	switch ts := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
		return epoch
	case float64:
		if ts >= epochMillisThreshold {
			return time.UnixMilli(int64(ts)).UTC()
		}
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC()
	case time.Time:
		return ts
	default:
		return epoch
	}
}
