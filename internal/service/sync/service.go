// Package sync implements the offline-sync subsystem: applying queued
// client mutations against the entity store, detecting and recording
// conflicts, resolving them under selectable strategies, and aggregating
// sync status for client polling.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
)

// DefaultMaxBatchSize bounds one batch submission when no limit is configured.
const DefaultMaxBatchSize = 500

type conflictStore interface {
	Insert(ctx context.Context, rec *domain.ConflictRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ConflictRecord, error)
	Resolve(ctx context.Context, id uuid.UUID, strategy domain.ResolutionStrategy, resolved domain.Payload, resolvedAt time.Time) error
	ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error)
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error)
}

type operationLog interface {
	Record(ctx context.Context, op *domain.QueuedOperation) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.QueuedOperation, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service provides batch sync processing, conflict resolution, and
// sync-status aggregation.
type Service struct {
	registry     *Registry
	conflicts    conflictStore
	oplog        operationLog
	tx           txManager
	maxBatchSize int
	now          func() time.Time
	log          *slog.Logger
}

// NewService creates a new sync service. maxBatchSize <= 0 falls back to
// DefaultMaxBatchSize.
func NewService(
	log *slog.Logger,
	registry *Registry,
	conflicts conflictStore,
	oplog operationLog,
	tx txManager,
	maxBatchSize int,
) *Service {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Service{
		registry:     registry,
		conflicts:    conflicts,
		oplog:        oplog,
		tx:           tx,
		maxBatchSize: maxBatchSize,
		now:          time.Now,
		log:          log.With("service", "sync"),
	}
}
