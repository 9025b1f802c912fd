package database

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/vprok-price-parser/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testObservation(productID string) *models.Observation {
	old := "249"
	return &models.Observation{
		RunID:      uuid.NewString(),
		ProductID:  productID,
		Region:     "Москва и область",
		URL:        "https://www.vprok.ru/product/moloko--" + productID,
		DateString: "2024-3-7_9-5-2",
		ScrapedAt:  time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC),
		Attempt:    2,
		Properties: models.ProductProperties{
			Price:       "199",
			PriceOld:    &old,
			Rating:      "4.8",
			ReviewCount: "1234",
		},
		TextPath:       "/tmp/parse_results/Москва и область/" + productID + "_product.txt",
		ScreenshotPath: "/tmp/parse_results/Москва и область/2024-3-7_9-5-2_#" + productID + "_screenshot.jpg",
	}
}

func TestNewPriceObservedEvent(t *testing.T) {
	obs := testObservation("123456")

	event, err := NewPriceObservedEvent(obs, "")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, AggregateTypeProduct, event.AggregateType)
	assert.Equal(t, "123456", event.AggregateID)
	assert.Equal(t, EventTypePriceObserved, event.EventType)
	assert.Equal(t, DefaultTargetStream, event.TargetStream)

	var payload PriceObservedPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))

	assert.Equal(t, event.ID.String(), payload.EventID)
	assert.Equal(t, obs.RunID, payload.RunID)
	assert.Equal(t, "Москва и область", payload.Region)
	assert.Equal(t, "199", payload.Price)
	require.NotNil(t, payload.PriceOld)
	assert.Equal(t, "249", *payload.PriceOld)
	assert.Equal(t, "1234", payload.ReviewCount)
	assert.Equal(t, 2, payload.Attempt)
	assert.True(t, obs.ScrapedAt.Equal(payload.Timestamp))
}

func TestNewPriceObservedEventWithoutOldPrice(t *testing.T) {
	obs := testObservation("123456")
	obs.Properties.PriceOld = nil

	event, err := NewPriceObservedEvent(obs, "stream:custom")
	require.NoError(t, err)
	assert.Equal(t, "stream:custom", event.TargetStream)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &raw))
	value, present := raw["price_old"]
	assert.True(t, present)
	assert.Nil(t, value)
}

func TestHistoryRepository_RecordAndLatest(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repo := NewHistoryRepository(db, "", slog.Default())
	productID := "hist-" + uuid.NewString()

	first := testObservation(productID)
	second := testObservation(productID)
	second.ScrapedAt = first.ScrapedAt.Add(time.Hour)
	second.Properties.Price = "189"

	require.NoError(t, repo.Record(ctx, first))
	require.NoError(t, repo.Record(ctx, second))

	observations, err := repo.Latest(ctx, productID, "", 10)
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, "189", observations[0].Properties.Price)
	assert.Equal(t, second.RunID, observations[0].RunID)

	observations, err = repo.Latest(ctx, productID, "Санкт-Петербург", 10)
	require.NoError(t, err)
	assert.Empty(t, observations)
}

func TestHistoryRepository_RecordRejectsBadRunID(t *testing.T) {
	repo := NewHistoryRepository(nil, "", slog.Default())
	obs := testObservation("123456")
	obs.RunID = "not-a-uuid"

	err := repo.Record(context.Background(), obs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid run id")
}
