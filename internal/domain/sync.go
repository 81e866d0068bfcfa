package domain

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind is the mutation type of a queued sync operation.
type OperationKind string

const (
	OperationCreate OperationKind = "CREATE"
	OperationUpdate OperationKind = "UPDATE"
	OperationDelete OperationKind = "DELETE"
)

func (k OperationKind) String() string { return string(k) }

func (k OperationKind) IsValid() bool {
	switch k {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// SyncOperation is one client-originated mutation awaiting application to
// the server. The ID is client-generated: it doubles as the target entity
// ID for CREATE and as the correlation ID in the per-operation result.
//
// ClientTimestamp is the instant the client last observed the server state
// of the entity (last fetched, not last locally modified). An UPDATE whose
// ClientTimestamp is older than the server's updated_at edited a stale view
// and is flagged as a conflict.
type SyncOperation struct {
	ID              uuid.UUID
	Kind            OperationKind
	EntityType      EntityType
	EntityID        uuid.UUID
	Payload         Payload
	ClientTimestamp time.Time
}

// ConflictInfo is the divergence detail embedded in a failed SyncResult so
// the caller can decide on resolution without a follow-up fetch.
type ConflictInfo struct {
	ConflictID    uuid.UUID
	LocalVersion  Payload
	ServerVersion Payload
}

// SyncResult is the per-operation outcome of batch processing. It is
// returned to the client and never persisted.
type SyncResult struct {
	OperationID uuid.UUID
	Success     bool
	Error       string
	Conflict    *ConflictInfo
}

// QueuedOperation is the persisted history row behind the status
// aggregator: one record per processed sync operation, partitioned into
// synced and pending by the Synced flag. ID is server-assigned;
// OperationID is the client correlation ID, which may recur when a client
// retries an operation.
type QueuedOperation struct {
	ID              uuid.UUID
	OperationID     uuid.UUID
	UserID          uuid.UUID
	Kind            OperationKind
	EntityType      EntityType
	EntityID        uuid.UUID
	Payload         Payload
	ClientTimestamp time.Time
	Synced          bool
	SyncedAt        *time.Time
	CreatedAt       time.Time
}
