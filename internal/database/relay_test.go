package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *MockOutboxRepository) CountByStatus(ctx context.Context, statuses ...string) (int64, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).(int64), args.Error(1)
}

func observedEvent(productID string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: AggregateTypeProduct,
		AggregateID:   productID,
		EventType:     EventTypePriceObserved,
		Payload:       json.RawMessage(`{"product_id":"` + productID + `","price":"199"}`),
		TargetStream:  DefaultTargetStream,
		CreatedAt:     time.Now(),
	}
}

func newTestRelay(redisClient RedisClient, outbox OutboxRepo) *Relay {
	return NewRelay(outbox, redisClient, slog.Default(), RelayConfig{BatchSize: 10, PollInterval: 50 * time.Millisecond})
}

func TestRelay_ProcessPending(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks every event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		events := []*OutboxEvent{observedEvent("123456"), observedEvent("654321")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			event := event
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == DefaultTargetStream &&
					args.Values.(map[string]interface{})["event_type"] == EventTypePriceObserved &&
					args.Values.(map[string]interface{})["aggregate_id"] == event.AggregateID
			})).Return(nil)
			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		published, err := relay.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, published)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("marks event failed when redis rejects it", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		event := observedEvent("123456")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: redis connection failed"
		})).Return(nil)

		published, err := relay.ProcessPending(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, published)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("empty batch does not touch redis", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		published, err := relay.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Zero(t, published)
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("continues after a failed event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		events := []*OutboxEvent{observedEvent("111"), observedEvent("222")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]interface{})["aggregate_id"] == "111"
		})).Return(errors.New("redis error"))
		mockOutbox.On("MarkFailed", ctx, events[0].ID, mock.Anything).Return(nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]interface{})["aggregate_id"] == "222"
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		published, err := relay.ProcessPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, published)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("outbox query failure is returned", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(new(MockRedisClient), mockOutbox)

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("connection reset"))

		_, err := relay.ProcessPending(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestStreamArgs(t *testing.T) {
	event := observedEvent("123456")

	args, err := StreamArgs(event)
	require.NoError(t, err)

	assert.Equal(t, DefaultTargetStream, args.Stream)
	assert.Equal(t, EventTypePriceObserved, args.Values.(map[string]interface{})["type"])
	assert.Equal(t, event.ID.String(), args.Values.(map[string]interface{})["original_id"])

	val, ok := args.Values.(map[string]interface{})["data"].(string)
	require.True(t, ok)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(val), &data))

	assert.Equal(t, EventTypePriceObserved, data["type"])
	assert.Equal(t, "product", data["aggregate_type"])
	assert.Equal(t, "123456", data["aggregate_id"])

	payload, ok := data["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "199", payload["price"])

	metadata, ok := data["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "vprok-parser", metadata["source"])
}

func TestStreamArgsRejectsInvalidPayload(t *testing.T) {
	event := observedEvent("123456")
	event.Payload = json.RawMessage(`not json`)

	_, err := StreamArgs(event)
	assert.Error(t, err)
}

func TestRelay_Backlog(t *testing.T) {
	ctx := context.Background()
	mockOutbox := new(MockOutboxRepository)
	relay := newTestRelay(new(MockRedisClient), mockOutbox)

	mockOutbox.On("CountByStatus", ctx, []string{OutboxStatusPending, OutboxStatusFailed}).Return(int64(4), nil)
	mockOutbox.On("CountByStatus", ctx, []string{OutboxStatusDeadLetter}).Return(int64(1), nil)

	pending, dead, err := relay.Backlog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pending)
	assert.Equal(t, int64(1), dead)
}

func TestRelay_Start(t *testing.T) {
	mockOutbox := new(MockOutboxRepository)
	relay := newTestRelay(new(MockRedisClient), mockOutbox)

	mockOutbox.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil).Maybe()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- relay.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop on context cancellation")
	}
}
