package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/vprok-price-parser/internal/database"
	"github.com/redis/go-redis/v9"
)

// StreamReader is the part of *redis.Client the consumer uses.
type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Handler processes one decoded event. A returned error leaves the message
// unacknowledged.
type Handler func(ctx context.Context, payload *database.PriceObservedPayload) error

type ConsumerConfig struct {
	Stream string
	Group  string
	Name   string
	Block  time.Duration
	Count  int64
}

type Consumer struct {
	redis   StreamReader
	cfg     ConsumerConfig
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(client StreamReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = database.DefaultTargetStream
	}
	if cfg.Group == "" {
		cfg.Group = "price-observation-consumers"
	}
	if cfg.Name == "" {
		cfg.Name = "consumer-1"
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count == 0 {
		cfg.Count = 10
	}
	return &Consumer{
		redis:   client,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "event_consumer"),
	}
}

// Run reads the stream as part of the consumer group until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "stream", c.cfg.Stream, "group", c.cfg.Group, "name", c.cfg.Name)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.readBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := c.processMessage(ctx, message); err != nil {
				c.logger.Error("failed to process message", "id", message.ID, "error", err)
				continue
			}

			if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, message.ID).Err(); err != nil {
				c.logger.Error("failed to acknowledge message", "id", message.ID, "error", err)
			}
		}
	}

	return nil
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	payload, ok, err := DecodeMessage(msg)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return c.handler(ctx, payload)
}

// DecodeMessage extracts the observation payload of a stream entry. ok is
// false for entries of other event types.
func DecodeMessage(msg redis.XMessage) (payload *database.PriceObservedPayload, ok bool, err error) {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != database.EventTypePriceObserved {
		return nil, false, nil
	}

	data, isString := msg.Values["data"].(string)
	if !isString {
		return nil, false, fmt.Errorf("message %s has no data field", msg.ID)
	}

	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to parse envelope: %w", err)
	}

	payload = &database.PriceObservedPayload{}
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return nil, false, fmt.Errorf("failed to parse payload: %w", err)
	}
	if payload.ProductID == "" {
		return nil, false, fmt.Errorf("message %s has no product id", msg.ID)
	}

	return payload, true, nil
}
