package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
)

// EntityStore is the per-entity-type persistence capability the applier
// and resolver work against. One implementation exists per registered
// entity type; the type tag is fixed at registration, which keeps the
// apply logic free of per-type switches.
type EntityStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Entity, error)
	Create(ctx context.Context, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error)
	Update(ctx context.Context, id uuid.UUID, partial domain.Payload) (*domain.Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Upsert(ctx context.Context, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error)
}

// Registry maps entity-type tags to their stores. Unknown tags are
// per-operation failures, never batch-level ones.
type Registry struct {
	stores map[domain.EntityType]EntityStore
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[domain.EntityType]EntityStore)}
}

// Register binds a store to an entity type, replacing any previous binding.
func (r *Registry) Register(entityType domain.EntityType, store EntityStore) {
	r.stores[entityType] = store
}

// StoreFor returns the store registered for the given type.
func (r *Registry) StoreFor(entityType domain.EntityType) (EntityStore, error) {
	store, ok := r.stores[entityType]
	if !ok {
		return nil, fmt.Errorf("unknown entity type %q: %w", entityType, domain.ErrValidation)
	}
	return store, nil
}

// genericEntityRepo is the shape of the shared keyed record store
// (implemented by the postgres entity repo).
type genericEntityRepo interface {
	Get(ctx context.Context, entityType domain.EntityType, id uuid.UUID) (*domain.Entity, error)
	Create(ctx context.Context, entityType domain.EntityType, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error)
	Update(ctx context.Context, entityType domain.EntityType, id uuid.UUID, partial domain.Payload) (*domain.Entity, error)
	Delete(ctx context.Context, entityType domain.EntityType, id uuid.UUID) error
	Upsert(ctx context.Context, entityType domain.EntityType, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error)
}

// boundStore adapts the generic repo to a single entity type.
type boundStore struct {
	repo       genericEntityRepo
	entityType domain.EntityType
}

func (s *boundStore) Get(ctx context.Context, id uuid.UUID) (*domain.Entity, error) {
	return s.repo.Get(ctx, s.entityType, id)
}

func (s *boundStore) Create(ctx context.Context, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error) {
	return s.repo.Create(ctx, s.entityType, id, userID, payload)
}

func (s *boundStore) Update(ctx context.Context, id uuid.UUID, partial domain.Payload) (*domain.Entity, error) {
	return s.repo.Update(ctx, s.entityType, id, partial)
}

func (s *boundStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, s.entityType, id)
}

func (s *boundStore) Upsert(ctx context.Context, id, userID uuid.UUID, payload domain.Payload) (*domain.Entity, error) {
	return s.repo.Upsert(ctx, s.entityType, id, userID, payload)
}

// NewDefaultRegistry registers every known entity type against the shared
// record store.
func NewDefaultRegistry(repo genericEntityRepo) *Registry {
	r := NewRegistry()
	for _, et := range domain.EntityTypes() {
		r.Register(et, &boundStore{repo: repo, entityType: et})
	}
	return r
}
