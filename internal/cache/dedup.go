package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisDeduper remembers webhook event ids. First reports whether this is
// the first delivery of id; the marker is written atomically with SETNX.
type RedisDeduper struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisDeduper(redisClient *redis.Client) *RedisDeduper {
	return &RedisDeduper{redis: redisClient, ttl: WebhookEventDuration}
}

func (d *RedisDeduper) First(ctx context.Context, id string) (bool, error) {
	ok, err := d.redis.SetNX(ctx, fmt.Sprintf(WebhookEventKey, id), time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return ok, nil
}

// MemoryDeduper is the process-local deduper.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: WebhookEventDuration, now: time.Now}
}

func (d *MemoryDeduper) First(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expires, ok := d.seen[id]; ok && now.Before(expires) {
		return false, nil
	}

	for k, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, k)
		}
	}
	d.seen[id] = now.Add(d.ttl)
	return true, nil
}
