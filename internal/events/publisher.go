package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/vprok-price-parser/internal/database"
	"github.com/maltedev/vprok-price-parser/internal/models"
)

// Publisher announces observations directly on a Redis stream. It is used
// when no database is configured; otherwise events go through the outbox
// and the relay.
type Publisher struct {
	redis  database.RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client database.RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultTargetStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

// Record publishes a PRODUCT_PRICE_OBSERVED event for obs.
func (p *Publisher) Record(ctx context.Context, obs *models.Observation) error {
	event, err := database.NewPriceObservedEvent(obs, p.stream)
	if err != nil {
		return err
	}
	event.CreatedAt = p.now()

	if err := database.Publish(ctx, p.redis, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published",
		"type", event.EventType,
		"event_id", event.ID,
		"product_id", obs.ProductID,
		"stream", event.TargetStream)

	return nil
}
