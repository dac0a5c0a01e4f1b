package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration
}

// Limiter bounds how many calls a key may make per window. Implementations
// differ only in where the counters live.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Lua script for an atomic fixed window: the first hit in a window sets the
// expiry, every hit increments.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisFixedWindow keeps counters in Redis so every node shares them.
type RedisFixedWindow struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisFixedWindow creates a Redis-backed limiter allowing limit calls per window.
func NewRedisFixedWindow(redisClient *redis.Client, prefix string, limit int, window time.Duration) (*RedisFixedWindow, error) {
	if redisClient == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rate_limit"
	}
	return &RedisFixedWindow{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: prefix,
	}, nil
}

func (l *RedisFixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, normalizeKey(key))

	res, err := fixedWindowScript.Run(ctx, l.redis, []string{redisKey}, l.window.Milliseconds()).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("unexpected result from rate limit script")
	}
	count, ok1 := res[0].(int64)
	ttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return Decision{}, fmt.Errorf("unexpected result type from rate limit script")
	}

	resetAfter := l.window
	if ttl > 0 {
		resetAfter = time.Duration(ttl) * time.Millisecond
	}

	return decide(int(count), l.limit, resetAfter), nil
}

func decide(count, limit int, resetAfter time.Duration) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
