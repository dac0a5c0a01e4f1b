package health

import (
	"context"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/media-service/internal/cache"
	"github.com/princekumarofficial/media-service/internal/utils/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PendingCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Subscribers interface {
	TopicCount() int
	SubscriberCount() int
}

type Status struct {
	Status      string           `json:"status"`
	Database    bool             `json:"database"`
	Cache       cache.CacheStats `json:"cache"`
	Topics      int              `json:"topics"`
	Subscribers int              `json:"subscribers"`
}

// Healthz reports dependency health
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} Status
// @Failure 503 {object} Status
// @Router /healthz [get]
func Healthz(db Pinger, redisClient *redis.Client, intents PendingCounter, hub Subscribers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Status{
			Status:      "ok",
			Database:    db.Ping(r.Context()) == nil,
			Cache:       cache.Stats(r.Context(), redisClient, intents),
			Topics:      hub.TopicCount(),
			Subscribers: hub.SubscriberCount(),
		}

		code := http.StatusOK
		if !status.Database || (redisClient != nil && !status.Cache.RedisConnected) {
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		response.WriteJSON(w, code, status)
	}
}
