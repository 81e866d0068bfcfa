package testhelper

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lifehub-app/backend/internal/domain"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)

	userID := uuid.New()
	ent := SeedEntity(t, pool, domain.EntityTypeTask, userID, domain.Payload{"title": "smoke"})

	var gotUser uuid.UUID
	err := pool.QueryRow(
		context.Background(),
		`SELECT user_id FROM entities WHERE entity_type = $1 AND id = $2`,
		ent.EntityType.String(), ent.ID,
	).Scan(&gotUser)
	if err != nil {
		t.Fatalf("expected entity in DB, got error: %v", err)
	}

	if gotUser != userID {
		t.Fatalf("expected user_id %s, got %s", userID, gotUser)
	}
}
