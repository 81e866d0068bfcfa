package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResolutionStrategy is a named policy for deriving an entity's final
// value from two divergent snapshots.
type ResolutionStrategy string

const (
	StrategyLocalWins  ResolutionStrategy = "LOCAL_WINS"
	StrategyServerWins ResolutionStrategy = "SERVER_WINS"
	StrategyLatestWins ResolutionStrategy = "LATEST_WINS"
	StrategyMerge      ResolutionStrategy = "MERGE"
	StrategyManual     ResolutionStrategy = "MANUAL"
)

func (s ResolutionStrategy) String() string { return string(s) }

func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case StrategyLocalWins, StrategyServerWins, StrategyLatestWins,
		StrategyMerge, StrategyManual:
		return true
	}
	return false
}

// ConflictRecord is a persisted divergence between a client's assumed
// prior state and the server's actual state for one entity.
//
// Lifecycle: created exactly once when the applier detects the divergence;
// mutated exactly once by the resolver (Strategy, ResolvedVersion,
// ResolvedAt); never deleted by this subsystem. A record with a nil
// ResolvedVersion is open; once set it is permanently resolved.
//
// The record references its entity by (EntityType, EntityID) only.
// Deleting the entity does not cascade to the record: resolution still
// works through the upsert path.
type ConflictRecord struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	EntityType      EntityType
	EntityID        uuid.UUID
	LocalVersion    Payload
	ServerVersion   Payload
	Strategy        *ResolutionStrategy
	ResolvedVersion Payload
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// IsResolved reports whether the record has been closed.
func (c *ConflictRecord) IsResolved() bool {
	return c.ResolvedVersion != nil
}

// ConflictSummary is the lightweight projection of an open conflict
// returned by the status aggregator.
type ConflictSummary struct {
	ID         uuid.UUID
	EntityType EntityType
	EntityID   uuid.UUID
	Strategy   *ResolutionStrategy
}

// SyncStatus is the derived overall classification of a user's queue.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// SyncStatusSummary is the computed read-only view of a user's sync state.
// Derived on every request, never a source of truth.
type SyncStatusSummary struct {
	Status              SyncStatus
	TotalOperations     int
	SyncedOperations    int
	PendingOperations   int
	UnresolvedConflicts int
	LastSyncTime        *time.Time
	PendingByEntity     map[EntityType]int
	Conflicts           []ConflictSummary
}
