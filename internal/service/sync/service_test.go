package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
	"github.com/lifehub-app/backend/pkg/ctxutil"
)

// ===========================================================================
// Manual mocks (moq-style with func fields)
// ===========================================================================

type mockConflictStore struct {
	InsertFunc         func(ctx context.Context, rec *domain.ConflictRecord) error
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*domain.ConflictRecord, error)
	ResolveFunc        func(ctx context.Context, id uuid.UUID, strategy domain.ResolutionStrategy, resolved domain.Payload, resolvedAt time.Time) error
	ListOpenByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error)
	ListAllByUserFunc  func(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error)

	mu       sync.Mutex
	inserted []*domain.ConflictRecord
}

func (m *mockConflictStore) Insert(ctx context.Context, rec *domain.ConflictRecord) error {
	m.mu.Lock()
	m.inserted = append(m.inserted, rec)
	m.mu.Unlock()
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, rec)
	}
	return nil
}

func (m *mockConflictStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConflictRecord, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockConflictStore) Resolve(ctx context.Context, id uuid.UUID, strategy domain.ResolutionStrategy, resolved domain.Payload, resolvedAt time.Time) error {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, id, strategy, resolved, resolvedAt)
	}
	return nil
}

func (m *mockConflictStore) ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error) {
	if m.ListOpenByUserFunc != nil {
		return m.ListOpenByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockConflictStore) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ConflictRecord, error) {
	if m.ListAllByUserFunc != nil {
		return m.ListAllByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockConflictStore) insertedRecords() []*domain.ConflictRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserted
}

type mockOperationLog struct {
	RecordFunc     func(ctx context.Context, op *domain.QueuedOperation) error
	ListByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.QueuedOperation, error)

	mu       sync.Mutex
	recorded []*domain.QueuedOperation
}

func (m *mockOperationLog) Record(ctx context.Context, op *domain.QueuedOperation) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, op)
	m.mu.Unlock()
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, op)
	}
	return nil
}

func (m *mockOperationLog) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.QueuedOperation, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockOperationLog) recordedRows() []*domain.QueuedOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recorded
}

type mockTxManager struct {
	RunInTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.RunInTxFunc != nil {
		return m.RunInTxFunc(ctx, fn)
	}
	return fn(ctx)
}

// memEntityStore is an in-memory EntityStore with the same contract as the
// postgres repo: Update merges, Upsert replaces, Delete is idempotent.
type memEntityStore struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*domain.Entity
	now      func() time.Time

	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr error
	UpsertErr error
}

func newMemEntityStore() *memEntityStore {
	return &memEntityStore{
		entities: make(map[uuid.UUID]*domain.Entity),
		now:      time.Now,
	}
}

func (m *memEntityStore) Get(_ context.Context, id uuid.UUID) (*domain.Entity, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ent, ok := m.entities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ent
	cp.Payload = ent.Payload.Clone()
	return &cp, nil
}

func (m *memEntityStore) Create(_ context.Context, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; ok {
		return nil, domain.ErrAlreadyExists
	}
	now := m.now().UTC()
	ent := &domain.Entity{
		ID:        id,
		UserID:    userID,
		Payload:   payload.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.entities[id] = ent
	return ent, nil
}

func (m *memEntityStore) Update(_ context.Context, id uuid.UUID, partial domain.Payload) (*domain.Entity, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ent, ok := m.entities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ent.Payload = partial.Merge(ent.Payload)
	ent.UpdatedAt = m.now().UTC()
	return ent, nil
}

func (m *memEntityStore) Delete(_ context.Context, id uuid.UUID) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
	return nil
}

func (m *memEntityStore) Upsert(_ context.Context, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error) {
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	ent, ok := m.entities[id]
	if !ok {
		ent = &domain.Entity{ID: id, UserID: userID, CreatedAt: now}
		m.entities[id] = ent
	}
	ent.Payload = payload.Clone()
	ent.UpdatedAt = now
	cp := *ent
	cp.Payload = ent.Payload.Clone()
	return &cp, nil
}

func (m *memEntityStore) seed(id, userID uuid.UUID, payload domain.Payload, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[id] = &domain.Entity{
		EntityType: domain.EntityTypeTask,
		ID:         id,
		UserID:     userID,
		Payload:    payload.Clone(),
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
}

// ===========================================================================
// Helpers
// ===========================================================================

type testDeps struct {
	tasks     *memEntityStore
	habits    *memEntityStore
	conflicts *mockConflictStore
	oplog     *mockOperationLog
	tx        *mockTxManager
}

func newTestService() (*Service, *testDeps) {
	deps := &testDeps{
		tasks:     newMemEntityStore(),
		habits:    newMemEntityStore(),
		conflicts: &mockConflictStore{},
		oplog:     &mockOperationLog{},
		tx:        &mockTxManager{},
	}

	registry := NewRegistry()
	registry.Register(domain.EntityTypeTask, deps.tasks)
	registry.Register(domain.EntityTypeHabit, deps.habits)

	svc := NewService(slog.Default(), registry, deps.conflicts, deps.oplog, deps.tx, 10)
	return svc, deps
}

func authCtx() (context.Context, uuid.UUID) {
	userID := uuid.New()
	return ctxutil.WithUserID(context.Background(), userID), userID
}

func createOp(payload domain.Payload) domain.SyncOperation {
	return domain.SyncOperation{
		ID:              uuid.New(),
		Kind:            domain.OperationCreate,
		EntityType:      domain.EntityTypeTask,
		Payload:         payload,
		ClientTimestamp: time.Now().UTC(),
	}
}

func updateOp(entityID uuid.UUID, payload domain.Payload, clientTS time.Time) domain.SyncOperation {
	return domain.SyncOperation{
		ID:              uuid.New(),
		Kind:            domain.OperationUpdate,
		EntityType:      domain.EntityTypeTask,
		EntityID:        entityID,
		Payload:         payload,
		ClientTimestamp: clientTS,
	}
}

func deleteOp(entityID uuid.UUID) domain.SyncOperation {
	return domain.SyncOperation{
		ID:              uuid.New(),
		Kind:            domain.OperationDelete,
		EntityType:      domain.EntityTypeTask,
		EntityID:        entityID,
		ClientTimestamp: time.Now().UTC(),
	}
}

func batch(ops ...domain.SyncOperation) ProcessBatchInput {
	return ProcessBatchInput{Operations: ops}
}
