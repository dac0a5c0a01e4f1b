// Package app wires the service's dependencies from configuration. Both the
// HTTP service and the reconcile worker build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/cache"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/events"
	"github.com/princekumarofficial/media-service/internal/http/middleware"
	"github.com/princekumarofficial/media-service/internal/objectstore"
	"github.com/princekumarofficial/media-service/internal/ratelimit"
	"github.com/princekumarofficial/media-service/internal/retry"
	"github.com/princekumarofficial/media-service/internal/services/finalize"
	galleryService "github.com/princekumarofficial/media-service/internal/services/gallery"
	mediaService "github.com/princekumarofficial/media-service/internal/services/media"
	"github.com/princekumarofficial/media-service/internal/storage/postgres"
	"github.com/princekumarofficial/media-service/internal/transcode"
	"github.com/princekumarofficial/media-service/internal/types"
)

// IntentStore is satisfied by both cache intent stores.
type IntentStore interface {
	Save(ctx context.Context, intent types.UploadIntent) error
	Get(ctx context.Context, handle string) (*types.UploadIntent, error)
	Delete(ctx context.Context, handle string) error
	PendingVideos(ctx context.Context, limit int) ([]types.UploadIntent, error)
	Count(ctx context.Context) (int64, error)
}

type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
}

type App struct {
	Config    *config.Config
	DB        *postgres.Postgres
	Redis     *redis.Client
	Store     objectstore.Store
	Intents   IntentStore
	Deduper   Deduper
	Tracker   *transcode.Tracker
	Media     *mediaService.Service
	Finalizer *finalize.Finalizer
	Gallery   *galleryService.Service
	Limiters  map[string]ratelimit.Limiter
}

// New connects to Postgres and Redis and builds every service. Missing
// object storage or transcoding configuration is logged and leaves the
// matching upload path answering *_unconfigured.
func New(ctx context.Context, cfg *config.Config, publisher events.Publisher) (*App, error) {
	db, err := postgres.NewPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		db.Db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	a := &App{Config: cfg, DB: db, Redis: redisClient}

	var phases transcode.PhaseStore
	if redisClient != nil {
		slog.Info("Using Redis for upload state", "addr", cfg.Redis.Addr)
		a.Intents = cache.NewRedisIntentStore(redisClient)
		a.Deduper = cache.NewRedisDeduper(redisClient)
		phases = cache.NewRedisPhaseStore(redisClient)
	} else {
		slog.Warn("Redis not configured, upload state is local to this process")
		a.Intents = cache.NewMemoryIntentStore()
		a.Deduper = cache.NewMemoryDeduper()
		phases = cache.NewMemoryPhaseStore()
	}

	if a.Limiters, err = newLimiters(cfg, redisClient); err != nil {
		a.Close()
		return nil, err
	}

	a.Store = newObjectStore(ctx, cfg.Storage)

	var backend transcode.Backend
	if client, err := transcode.NewStreamClient(cfg.Transcoding); err != nil {
		slog.Warn("Transcoding backend unavailable",
			"error", err.Error(),
			"operator_action", "set transcoding.account_id and transcoding.api_token")
	} else {
		backend = client
	}

	policy := retry.FromConfig(cfg.Retry)
	a.Tracker = transcode.NewTracker(backend, phases, policy, cfg.Transcoding.MaxDurationSeconds)

	selector := mediaService.NewSelector(cfg.Media, a.Store != nil, backend != nil)
	a.Media = mediaService.NewService(cfg, selector, a.Store, a.Tracker, a.Intents, publisher)
	a.Gallery = galleryService.NewService(db)
	a.Finalizer = finalize.New(db, a.Store, a.Tracker, a.Intents, a.Media, a.Gallery, policy, publisher)

	return a, nil
}

func newObjectStore(ctx context.Context, cfg config.Storage) objectstore.Store {
	store, err := objectstore.New(cfg)
	if err != nil {
		attrs := []any{"error", err.Error()}
		if apperr.Is(err, apperr.StorageUnconfigured) {
			attrs = append(attrs, "operator_action", "set storage.endpoint, storage.bucket and storage credentials")
		}
		slog.Warn("Object storage unavailable", attrs...)
		return nil
	}

	if m, ok := store.(*objectstore.Minio); ok {
		if err := m.EnsureBucket(ctx); err != nil {
			slog.Warn("Failed to ensure storage bucket", "bucket", cfg.Bucket, "error", err.Error())
		}
	}

	slog.Info("Object storage ready", "provider", cfg.Provider, "bucket", cfg.Bucket)
	return store
}

func newLimiters(cfg *config.Config, redisClient *redis.Client) (map[string]ratelimit.Limiter, error) {
	limits := map[string]int{
		middleware.ActionUpload:  cfg.RateLimit.UploadLimit,
		middleware.ActionGallery: cfg.RateLimit.GalleryLimit,
	}

	limiters := make(map[string]ratelimit.Limiter, len(limits))
	for action, limit := range limits {
		var (
			limiter ratelimit.Limiter
			err     error
		)
		if redisClient != nil {
			limiter, err = ratelimit.NewRedisFixedWindow(redisClient, "ratelimit:"+action, limit, cfg.RateLimit.Window)
		} else {
			limiter, err = ratelimit.NewMemory(limit, cfg.RateLimit.Window)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid %s rate limit: %w", action, err)
		}
		limiters[action] = limiter
	}
	return limiters, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Db.Close())
	}
	return errors.Join(errs...)
}
