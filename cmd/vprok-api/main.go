package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/maltedev/vprok-price-parser/internal/api"
	"github.com/maltedev/vprok-price-parser/internal/app"
	"github.com/maltedev/vprok-price-parser/internal/config"
	"github.com/maltedev/vprok-price-parser/internal/jobs"
	"github.com/maltedev/vprok-price-parser/internal/queue"
	"github.com/maltedev/vprok-price-parser/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize parser", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.Relay != nil {
		go func() {
			if err := a.Relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "error", err)
			}
		}()
	}

	jobQueue := queue.NewInMemoryQueue(cfg.Server.QueueSize)
	jobManager := jobs.NewManager(a.Runner, jobQueue, jobs.Options{
		URLPrefix: cfg.Parser.URLPrefix,
		Feedback:  a.Limiter,
		Metrics:   a.Metrics,
		Retention: cfg.Server.JobRetention,
	}, log)

	workerDone := make(chan struct{})
	go func() {
		jobManager.StartWorker(ctx)
		close(workerDone)
	}()

	// Typed nils would make the optional backends look configured.
	var history api.HistoryReader
	if a.History != nil {
		history = a.History
	}
	var outbox api.OutboxMonitor
	if a.Relay != nil {
		outbox = a.Relay
	}

	handlers := api.NewHandlers(jobManager, history, outbox, log)
	router := api.NewRouter(handlers, api.RouterOptions{
		RequestTimeout: cfg.Server.WriteTimeout,
		Registry:       a.Metrics.Registry,
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}

		jobQueue.Close()
		cancel()
	}()

	log.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	<-workerDone
	log.Info("server stopped")
}
