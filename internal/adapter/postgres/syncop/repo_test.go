package syncop_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehub-app/backend/internal/adapter/postgres/syncop"
	"github.com/lifehub-app/backend/internal/adapter/postgres/testhelper"
	"github.com/lifehub-app/backend/internal/domain"
)

func buildOp(userID uuid.UUID, synced bool, createdAt time.Time) *domain.QueuedOperation {
	op := &domain.QueuedOperation{
		ID:              uuid.New(),
		OperationID:     uuid.New(),
		UserID:          userID,
		Kind:            domain.OperationCreate,
		EntityType:      domain.EntityTypeTask,
		EntityID:        uuid.New(),
		Payload:         domain.Payload{"title": "x"},
		ClientTimestamp: createdAt,
		Synced:          synced,
		CreatedAt:       createdAt,
	}
	if synced {
		op.SyncedAt = &createdAt
	}
	return op
}

func TestRepo_RecordAndList(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := syncop.New(pool)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	first := buildOp(userID, true, base.Add(-2*time.Minute))
	second := buildOp(userID, false, base.Add(-time.Minute))
	require.NoError(t, repo.Record(ctx, first))
	require.NoError(t, repo.Record(ctx, second))

	// another user's history must not leak in
	require.NoError(t, repo.Record(ctx, buildOp(uuid.New(), true, base)))

	got, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, first.ID, got[0].ID, "oldest first")
	assert.Equal(t, second.ID, got[1].ID)
	assert.True(t, got[0].Synced)
	require.NotNil(t, got[0].SyncedAt)
	assert.False(t, got[1].Synced)
	assert.Nil(t, got[1].SyncedAt)
	assert.Equal(t, domain.EntityTypeTask, got[0].EntityType)
	assert.Equal(t, "x", got[0].Payload["title"])
}

func TestRepo_ListByUser_Empty(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := syncop.New(pool)

	got, err := repo.ListByUser(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepo_Record_RetriedOperationID(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := syncop.New(pool)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	op := buildOp(userID, false, now)
	require.NoError(t, repo.Record(ctx, op))

	// a client retry re-delivers the same operation_id under a new row
	retry := buildOp(userID, true, now.Add(time.Second))
	retry.OperationID = op.OperationID
	require.NoError(t, repo.Record(ctx, retry))

	got, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
