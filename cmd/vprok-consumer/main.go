package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/maltedev/vprok-price-parser/internal/config"
	"github.com/maltedev/vprok-price-parser/internal/database"
	"github.com/maltedev/vprok-price-parser/internal/events"
	"github.com/maltedev/vprok-price-parser/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if !cfg.Redis.Enabled() {
		log.Error("REDIS_ADDR is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis", "addr", cfg.Redis.Addr)

	tracker := events.NewPriceTracker()
	handler := func(ctx context.Context, p *database.PriceObservedPayload) error {
		log.Info("price observed",
			"product_id", p.ProductID,
			"region", p.Region,
			"price", p.Price,
			"attempt", p.Attempt)

		if change, ok := tracker.Observe(p); ok {
			log.Warn("price changed",
				"product_id", change.ProductID,
				"region", change.Region,
				"from", change.From,
				"to", change.To)
		}
		return nil
	}

	hostname, _ := os.Hostname()
	consumer := events.NewConsumer(rdb, events.ConsumerConfig{
		Stream: cfg.Redis.Stream,
		Group:  os.Getenv("CONSUMER_GROUP"),
		Name:   hostname,
	}, handler, log)

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("consumer stopped")
}
