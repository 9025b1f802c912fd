package database

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareOutboxEvent(t *testing.T) {
	now := time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC)
	event := &OutboxEvent{
		AggregateType: AggregateTypeProduct,
		AggregateID:   "123456",
		EventType:     EventTypePriceObserved,
		Payload:       json.RawMessage(`{}`),
	}

	prepareOutboxEvent(event, now)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.Equal(t, DefaultTargetStream, event.TargetStream)
	assert.Equal(t, now, event.CreatedAt)
	require.NotNil(t, event.NextRetryAt)
	assert.Equal(t, now, *event.NextRetryAt)
}

func TestPrepareOutboxEventKeepsExplicitValues(t *testing.T) {
	id := uuid.New()
	event := &OutboxEvent{ID: id, TargetStream: "stream:custom", Status: OutboxStatusFailed}

	prepareOutboxEvent(event, time.Now())

	assert.Equal(t, id, event.ID)
	assert.Equal(t, "stream:custom", event.TargetStream)
	assert.Equal(t, OutboxStatusFailed, event.Status)
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute},
		{40, 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, retryBackoff(tt.retryCount), "retry %d", tt.retryCount)
	}
}

func TestNextOutboxStatus(t *testing.T) {
	assert.Equal(t, OutboxStatusFailed, nextOutboxStatus(1))
	assert.Equal(t, OutboxStatusFailed, nextOutboxStatus(MaxRetryCount-1))
	assert.Equal(t, OutboxStatusDeadLetter, nextOutboxStatus(MaxRetryCount))
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)
	event := observedEvent("outbox-" + uuid.NewString())
	event.CreatedAt = time.Time{}

	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.InsertWithTx(ctx, tx, event)
	})
	require.NoError(t, err)

	pending, err := repo.GetPending(ctx, 100)
	require.NoError(t, err)
	assert.True(t, containsEvent(pending, event.ID))

	require.NoError(t, repo.MarkProcessed(ctx, event.ID))

	pending, err = repo.GetPending(ctx, 100)
	require.NoError(t, err)
	assert.False(t, containsEvent(pending, event.ID))

	assert.Error(t, repo.MarkProcessed(ctx, uuid.New()))
}

func TestOutboxRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewOutboxRepository(db)
	event := observedEvent("outbox-" + uuid.NewString())

	require.NoError(t, db.Transaction(ctx, func(tx pgx.Tx) error {
		return repo.InsertWithTx(ctx, tx, event)
	}))

	for i := 0; i < MaxRetryCount; i++ {
		require.NoError(t, repo.MarkFailed(ctx, event.ID, assert.AnError))
	}

	var status string
	var retryCount int
	err := db.QueryRow(ctx,
		"SELECT status, retry_count FROM outbox_event WHERE id = $1",
		event.ID).Scan(&status, &retryCount)
	require.NoError(t, err)

	assert.Equal(t, OutboxStatusDeadLetter, status)
	assert.Equal(t, MaxRetryCount, retryCount)
}

func containsEvent(events []*OutboxEvent, id uuid.UUID) bool {
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}

// setupTestDB connects to TEST_DATABASE_URL and applies the schema. Tests
// that need it are skipped when it is not set.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Test database not configured")
	}

	ctx := context.Background()
	db, err := connect(ctx, dsn, Config{})
	require.NoError(t, err)

	require.NoError(t, NewHistoryRepository(db, "", slog.Default()).Migrate(ctx))
	return db
}
