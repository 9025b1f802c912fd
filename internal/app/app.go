package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maltedev/vprok-price-parser/internal/browser"
	"github.com/maltedev/vprok-price-parser/internal/config"
	"github.com/maltedev/vprok-price-parser/internal/database"
	"github.com/maltedev/vprok-price-parser/internal/events"
	"github.com/maltedev/vprok-price-parser/internal/metrics"
	"github.com/maltedev/vprok-price-parser/internal/ratelimit"
	"github.com/maltedev/vprok-price-parser/internal/scraper"
	"github.com/maltedev/vprok-price-parser/internal/storage"
	"github.com/redis/go-redis/v9"
)

// App holds the runner and the optional backends built from configuration.
type App struct {
	Runner  *scraper.Runner
	Limiter *ratelimit.AdaptiveRateLimiter
	Metrics *metrics.Metrics
	Writer  *storage.ResultWriter

	// History and Relay are nil unless a database is configured.
	History *database.HistoryRepository
	Relay   *database.Relay

	db     *database.DB
	redis  *redis.Client
	logger *slog.Logger
}

// New wires the application. Postgres is used when DB_HOST is set, Redis
// when REDIS_ADDR is set. With both, observations reach the stream through
// the outbox relay; with Redis alone they are published directly.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Metrics: metrics.New(),
		Limiter: ratelimit.NewAdaptiveRateLimiter(cfg.Parser.RetryDelayMin, cfg.Parser.RetryDelayMax),
		logger:  logger,
	}

	resultsDir, err := ResultsDir(cfg.Parser.ResultsDir)
	if err != nil {
		return nil, err
	}
	a.Writer = storage.NewResultWriter(resultsDir, logger)

	var sinks []scraper.NamedSink

	if cfg.Database.Enabled() {
		a.db, err = database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, err
		}

		stream := ""
		if cfg.Redis.Enabled() {
			stream = cfg.Redis.Stream
		}
		a.History = database.NewHistoryRepository(a.db, stream, logger)
		if err := a.History.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, scraper.NamedSink{Name: "postgres", Sink: a.History})
	}

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		if a.db != nil {
			a.Relay = database.NewRelay(database.NewOutboxRepository(a.db), a.redis, logger, database.RelayConfig{})
		} else {
			sinks = append(sinks, scraper.NamedSink{
				Name: "redis",
				Sink: events.NewPublisher(a.redis, cfg.Redis.Stream, logger),
			})
		}
	}

	a.Runner = scraper.NewRunner(NewLauncher(BrowserOptions(cfg.Browser)), a.Writer, scraper.Options{
		MaxAttempts: cfg.Parser.MaxAttempts,
		URLPrefix:   cfg.Parser.URLPrefix,
		Limiter:     a.Limiter,
		Metrics:     a.Metrics,
		Sinks:       sinks,
	}, logger)

	logger.Info("parser configured",
		"results_dir", resultsDir,
		"max_attempts", a.Runner.MaxAttempts(),
		"history", a.History != nil,
		"relay", a.Relay != nil,
		"sinks", len(sinks))

	return a, nil
}

// FlushOutbox publishes whatever the relay has pending. It is a no-op
// without a relay.
func (a *App) FlushOutbox(ctx context.Context) {
	if a.Relay == nil {
		return
	}
	published, err := a.Relay.ProcessPending(ctx)
	if err != nil {
		a.logger.Error("failed to flush outbox", "error", err)
		return
	}
	a.logger.Debug("outbox flushed", "published", published)
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ResultsDir resolves dir against the working directory.
func ResultsDir(dir string) (string, error) {
	if dir == "" {
		dir = storage.DefaultResultsDir
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(cwd, dir), nil
}

func BrowserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.Timeout = cfg.Timeout
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.Locale = cfg.Locale
	opts.TimezoneID = cfg.TimezoneID
	opts.ProxyServer = cfg.ProxyServer
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	return opts
}

// NewLauncher starts a fresh browser session per attempt.
func NewLauncher(opts *browser.Options) scraper.Launcher {
	return scraper.LauncherFunc(func(ctx context.Context) (scraper.Session, error) {
		session, err := browser.Launch(ctx, opts)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
}
