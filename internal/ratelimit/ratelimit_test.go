package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		DB:   0,
	})

	// Test connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return redisClient, mr, cleanup
}

func TestRedisFixedWindow_Allow(t *testing.T) {
	redisClient, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter, err := NewRedisFixedWindow(redisClient, "test", 5, time.Minute)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(ctx, "uploads:user1")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Fatalf("Expected %d remaining, got %d", 4-i, d.Remaining)
		}
	}

	// The 6th request inside the window is rejected
	d, err := limiter.Allow(ctx, "uploads:user1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("Expected request to be denied after limit reached")
	}
	if d.ResetAfter <= 0 || d.ResetAfter > time.Minute {
		t.Fatalf("Expected reset within the window, got %v", d.ResetAfter)
	}

	// After the window elapses the counter resets
	mr.FastForward(time.Minute)

	d, err = limiter.Allow(ctx, "uploads:user1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !d.Allowed {
		t.Fatal("Expected request to be allowed after window reset")
	}
}

func TestRedisFixedWindow_KeysAreIndependent(t *testing.T) {
	redisClient, _, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter, _ := NewRedisFixedWindow(redisClient, "test", 1, time.Minute)
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "user1"); !d.Allowed {
		t.Fatal("Expected first request for user1 to be allowed")
	}
	if d, _ := limiter.Allow(ctx, "user2"); !d.Allowed {
		t.Fatal("Expected first request for user2 to be allowed")
	}
	if d, _ := limiter.Allow(ctx, "user1"); d.Allowed {
		t.Fatal("Expected second request for user1 to be denied")
	}
}

func TestRedisFixedWindow_RedisDown(t *testing.T) {
	redisClient, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter, _ := NewRedisFixedWindow(redisClient, "test", 1, time.Minute)
	mr.Close()

	if _, err := limiter.Allow(context.Background(), "user1"); err == nil {
		t.Fatal("Expected an error when redis is unavailable")
	}
}

func TestNewRedisFixedWindow_InvalidArgs(t *testing.T) {
	if _, err := NewRedisFixedWindow(nil, "x", 1, time.Second); err == nil {
		t.Fatal("Expected error for nil client")
	}
	redisClient, _, cleanup := setupTestRedis(t)
	defer cleanup()
	if _, err := NewRedisFixedWindow(redisClient, "x", 0, time.Second); err == nil {
		t.Fatal("Expected error for zero limit")
	}
}

func TestMemory_Allow(t *testing.T) {
	limiter, err := NewMemory(3, time.Minute)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if d, _ := limiter.Allow(ctx, "user1"); !d.Allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}
	if d, _ := limiter.Allow(ctx, "user1"); d.Allowed {
		t.Fatal("Expected 4th request to be denied")
	}

	now = now.Add(59 * time.Second)
	if d, _ := limiter.Allow(ctx, "user1"); d.Allowed {
		t.Fatal("Expected request inside the window to be denied")
	}

	now = now.Add(time.Second)
	d, _ := limiter.Allow(ctx, "user1")
	if !d.Allowed {
		t.Fatal("Expected request to be allowed once the window elapsed")
	}
	if d.Remaining != 2 {
		t.Fatalf("Expected 2 remaining, got %d", d.Remaining)
	}
}

func TestMemory_SweepsExpiredWindows(t *testing.T) {
	limiter, _ := NewMemory(1, time.Second)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < sweepEvery-1; i++ {
		limiter.Allow(ctx, string(rune('a'+i%26))+time.Duration(i).String())
	}

	now = now.Add(2 * time.Second)
	limiter.Allow(ctx, "fresh")

	if n := len(limiter.windows); n != 1 {
		t.Fatalf("Expected expired windows to be swept, %d keys remain", n)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	limiter, _ := NewMemory(50, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _ := limiter.Allow(ctx, "shared")
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("Expected exactly 50 allowed requests, got %d", allowed)
	}
}
