package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/princekumarofficial/media-service/internal/app"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/events"
	"github.com/princekumarofficial/media-service/internal/http/middleware"
	"github.com/princekumarofficial/media-service/internal/reconcile"
)

func main() {
	// Load config
	cfg := config.MustLoad()
	middleware.InitLogger(cfg.LogLevel)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No websocket subscribers live in this process
	deps, err := app.New(ctx, cfg, events.Discard{})
	if err != nil {
		log.Fatal("Failed to initialize dependencies:", err)
	}
	defer deps.Close()

	if deps.Redis == nil {
		slog.Warn("Redis not configured, this worker only sees intents it created itself",
			"operator_action", "set redis.addr to share upload intents with the HTTP service")
	}

	worker := reconcile.NewWorker(deps.Intents, deps.Tracker, deps.Finalizer, events.Discard{}, cfg.Reconcile.Interval, cfg.Reconcile.BatchSize)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	worker.Start(ctx)

	slog.Info("Reconcile worker stopped")
}
