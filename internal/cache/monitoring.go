package cache

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// CacheStats reports the state of the ephemeral stores.
type CacheStats struct {
	Backend        string `json:"backend"`
	RedisConnected bool   `json:"redis_connected"`
	PendingVideos  int64  `json:"pending_videos"`
	TrackedJobs    int64  `json:"tracked_jobs"`
	KeyCount       int64  `json:"total_keys"`
}

type pendingCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Stats collects CacheStats. redisClient may be nil for the process-local
// backend.
func Stats(ctx context.Context, redisClient *redis.Client, intents pendingCounter) CacheStats {
	stats := CacheStats{Backend: "memory"}

	if intents != nil {
		if n, err := intents.Count(ctx); err == nil {
			stats.PendingVideos = n
		}
	}

	if redisClient == nil {
		return stats
	}
	stats.Backend = "redis"

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return stats
	}
	stats.RedisConnected = true

	var cursor uint64
	for {
		keys, next, err := redisClient.Scan(ctx, cursor, "transcode:job:*", 500).Result()
		if err != nil {
			break
		}
		stats.TrackedJobs += int64(len(keys))
		if cursor = next; cursor == 0 {
			break
		}
	}

	if n, err := redisClient.DBSize(ctx).Result(); err == nil {
		stats.KeyCount = n
	}

	return stats
}
