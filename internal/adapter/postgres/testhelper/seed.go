package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifehub-app/backend/internal/domain"
)

// SeedEntity inserts an entity row directly and returns it.
func SeedEntity(t *testing.T, pool *pgxpool.Pool, entityType domain.EntityType, userID uuid.UUID, payload domain.Payload) domain.Entity {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	ent := domain.Entity{
		EntityType: entityType,
		ID:         uuid.New(),
		UserID:     userID,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("seed entity: marshal payload: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO entities (entity_type, id, user_id, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ent.EntityType.String(), ent.ID, ent.UserID, raw, ent.CreatedAt, ent.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed entity: %v", err)
	}

	return ent
}

// SeedConflict inserts an open conflict record directly and returns it.
func SeedConflict(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID, local, server domain.Payload) domain.ConflictRecord {
	t.Helper()
	ctx := context.Background()

	rec := domain.ConflictRecord{
		ID:            uuid.New(),
		UserID:        userID,
		EntityType:    entityType,
		EntityID:      entityID,
		LocalVersion:  local,
		ServerVersion: server,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	localRaw, err := json.Marshal(local)
	if err != nil {
		t.Fatalf("seed conflict: marshal local: %v", err)
	}
	serverRaw, err := json.Marshal(server)
	if err != nil {
		t.Fatalf("seed conflict: marshal server: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO sync_conflicts (id, user_id, entity_type, entity_id, local_version, server_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.UserID, rec.EntityType.String(), rec.EntityID, localRaw, serverRaw, rec.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed conflict: %v", err)
	}

	return rec
}
