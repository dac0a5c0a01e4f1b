// Package cache holds the short-lived state of in-flight uploads: upload
// intents, the mirrored transcoding phase per job and webhook delivery
// markers. Each store has a Redis implementation for multi-node
// deployments and a process-local one for a single node and for tests.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/media-service/internal/config"
)

// Cache key patterns
const (
	IntentKey        = "upload:intent:%s" // upload:intent:storageKey|jobID
	PendingVideosKey = "upload:intents:video"
	JobPhaseKey      = "transcode:job:%s" // transcode:job:jobID
	WebhookEventKey  = "webhook:event:%s" // webhook:event:jobID:phase
)

// Cache durations
const (
	JobPhaseDuration     = 7 * 24 * time.Hour // jobs are never resumed after a week
	WebhookEventDuration = 24 * time.Hour     // backends stop redelivering well before this
)

// NewRedisClient connects to the configured Redis. It returns nil, nil when
// no address is configured.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
