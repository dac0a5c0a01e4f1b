package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/princekumarofficial/media-service/docs"
	"github.com/princekumarofficial/media-service/internal/app"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/events"
	galleryHandlers "github.com/princekumarofficial/media-service/internal/http/handlers/gallery"
	"github.com/princekumarofficial/media-service/internal/http/handlers/health"
	mediaHandlers "github.com/princekumarofficial/media-service/internal/http/handlers/media"
	"github.com/princekumarofficial/media-service/internal/http/handlers/webhook"
	wsHandlers "github.com/princekumarofficial/media-service/internal/http/handlers/websocket"
	"github.com/princekumarofficial/media-service/internal/http/middleware"
	"github.com/princekumarofficial/media-service/internal/metrics"
	"github.com/princekumarofficial/media-service/internal/reconcile"
	"github.com/princekumarofficial/media-service/internal/websocket"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Media Service API
// @version 1.0
// @description Media ingestion, transcoding orchestration and profile galleries.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// load config
	cfg := config.MustLoad()
	middleware.InitLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// job events fan out to websocket subscribers
	hub := websocket.NewHub()
	go hub.Run(ctx)
	publisher := events.NewEventPublisher(hub)

	deps, err := app.New(ctx, cfg, publisher)
	if err != nil {
		log.Fatal("Failed to initialize dependencies:", err)
	}
	defer deps.Close()

	if cfg.Reconcile.Embedded {
		worker := reconcile.NewWorker(deps.Intents, deps.Tracker, deps.Finalizer, publisher, cfg.Reconcile.Interval, cfg.Reconcile.BatchSize)
		go worker.Start(ctx)
	}

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	limits := middleware.NewRateLimitConfig(deps.Limiters)
	timeout := middleware.WithTimeout(cfg.HTTPServer.RequestTimeout)

	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, auth, timeout)
	}
	limited := func(action string, h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, auth, limits.RateLimitMiddleware(action), timeout)
	}

	media := mediaHandlers.NewMediaHandlers(deps.Media, deps.Finalizer, deps.DB, cfg.IsProduction())
	hooks := webhook.NewHandler(deps.Tracker, deps.Deduper, deps.Intents, deps.Finalizer, publisher, cfg.Transcoding.WebhookSecret)
	if cfg.Transcoding.WebhookSecret == "" {
		slog.Warn("Webhook signatures are not verified",
			"operator_action", "set transcoding.webhook_secret")
	}

	// setup server
	router := http.NewServeMux()

	router.Handle("POST /media/uploads/plan", protected(media.Plan()))
	router.Handle("POST /media/uploads/image", limited(middleware.ActionUpload, media.IssueImageUpload()))
	router.Handle("POST /media/videos", limited(middleware.ActionUpload, media.CreateVideoJob()))
	router.Handle("GET /media/videos/{jobId}", protected(media.JobStatus()))
	router.Handle("POST /media/finalize", protected(media.Finalize()))
	router.Handle("GET /media", protected(media.ListMedia()))

	router.Handle("GET /gallery", protected(galleryHandlers.GetGallery(deps.Gallery, cfg.IsProduction())))
	router.Handle("POST /gallery/slots", limited(middleware.ActionGallery, galleryHandlers.UpdateSlot(deps.Gallery, cfg.IsProduction())))

	router.Handle("POST /webhooks/transcoding", middleware.Chain(hooks.Receive(), timeout))
	// websocket connections outlive the request timeout
	router.HandleFunc("GET /ws/jobs/{jobId}", wsHandlers.JobEventsHandler(hub, deps.Intents, deps.Tracker, cfg.JWTSecret, cfg.IsProduction()))

	router.HandleFunc("GET /healthz", health.Healthz(deps.DB, deps.Redis, deps.Intents, hub))
	router.Handle("GET /metrics", metrics.Handler())
	router.Handle("GET /swagger/", httpSwagger.WrapHandler)

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: middleware.Chain(router, middleware.WithRequestID, middleware.WithRequestLog),
	}

	slog.Info("server started", "address", cfg.HTTPServer.Address, "env", cfg.Env)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = server.Shutdown(shutdownCtx)
	// stops the hub, the embedded worker and closes websocket clients
	cancel()
	if err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	slog.Info("Server stopped")
}
