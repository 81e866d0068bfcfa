package sync

import "github.com/lifehub-app/backend/internal/domain"

// BatchResult aggregates the per-operation outcomes of one batch.
type BatchResult struct {
	Results        []domain.SyncResult
	TotalProcessed int
	Successful     int
	Failed         int
}

// ResolveResult is the outcome of a successful conflict resolution.
type ResolveResult struct {
	Conflict *domain.ConflictRecord
	Entity   *domain.Entity
}
