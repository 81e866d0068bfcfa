package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which record partition a sync operation targets.
// The set mirrors the client-side local stores that participate in
// offline sync.
type EntityType string

const (
	EntityTypeTask             EntityType = "task"
	EntityTypeHabit            EntityType = "habit"
	EntityTypeTransaction      EntityType = "transaction"
	EntityTypeExercise         EntityType = "exercise"
	EntityTypeMeal             EntityType = "meal"
	EntityTypeWaterIntake      EntityType = "water_intake"
	EntityTypeLearningResource EntityType = "learning_resource"
)

func (t EntityType) String() string { return string(t) }

func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeTask, EntityTypeHabit, EntityTypeTransaction,
		EntityTypeExercise, EntityTypeMeal, EntityTypeWaterIntake,
		EntityTypeLearningResource:
		return true
	}
	return false
}

// EntityTypes returns all known entity types in a stable order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityTypeTask,
		EntityTypeHabit,
		EntityTypeTransaction,
		EntityTypeExercise,
		EntityTypeMeal,
		EntityTypeWaterIntake,
		EntityTypeLearningResource,
	}
}

// Payload is an entity-type-specific field map. The sync subsystem treats
// it as opaque: it is passed through to the entity store without schema
// validation.
type Payload map[string]any

// Clone returns a shallow copy of the payload. Nested values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a shallow field union of p over base: every key present in
// p overrides the same key in base. Neither input is mutated. This is a
// flat last-writer-per-field combination, not a recursive merge.
func (p Payload) Merge(base Payload) Payload {
	out := base.Clone()
	if out == nil {
		out = make(Payload, len(p))
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Entity is one canonical record in the entity store, keyed by
// (EntityType, ID). The ID is client-assignable so that offline CREATE
// operations can be replayed idempotently.
type Entity struct {
	EntityType EntityType
	ID         uuid.UUID
	UserID     uuid.UUID
	Payload    Payload
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Snapshot renders the entity as a payload snapshot for conflict records:
// the stored field map plus the server-side updatedAt, which the
// LATEST_WINS strategy compares against the client snapshot.
func (e *Entity) Snapshot() Payload {
	snap := e.Payload.Clone()
	if snap == nil {
		snap = Payload{}
	}
	snap["updatedAt"] = e.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return snap
}
