package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/media-service/internal/types"
)

// RedisIntentStore keeps upload intents until they expire. Video intents
// are also indexed in a sorted set scored by expiry so the reconciler can
// list the ones still pending.
type RedisIntentStore struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisIntentStore(redisClient *redis.Client) *RedisIntentStore {
	return &RedisIntentStore{redis: redisClient, now: time.Now}
}

func (s *RedisIntentStore) Save(ctx context.Context, intent types.UploadIntent) error {
	handle := intent.Handle()
	if handle == "" {
		return errors.New("upload intent has no storage key or job id")
	}

	ttl := intent.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("upload intent already expired")
	}

	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(IntentKey, handle), data, ttl)
		if intent.JobID != "" {
			pipe.ZAdd(ctx, PendingVideosKey, &redis.Z{
				Score:  float64(intent.ExpiresAt.Unix()),
				Member: intent.JobID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save upload intent: %w", err)
	}
	return nil
}

// Get returns nil, nil when the intent is unknown or expired.
func (s *RedisIntentStore) Get(ctx context.Context, handle string) (*types.UploadIntent, error) {
	cached, err := s.redis.Get(ctx, fmt.Sprintf(IntentKey, handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload intent: %w", err)
	}

	var intent types.UploadIntent
	if err := json.Unmarshal(cached, &intent); err != nil {
		return nil, nil
	}
	return &intent, nil
}

func (s *RedisIntentStore) Delete(ctx context.Context, handle string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fmt.Sprintf(IntentKey, handle))
		pipe.ZRem(ctx, PendingVideosKey, handle)
		return nil
	})
	return err
}

// PendingVideos returns the unexpired video intents, oldest expiry first,
// and drops expired entries from the index.
func (s *RedisIntentStore) PendingVideos(ctx context.Context, limit int) ([]types.UploadIntent, error) {
	now := strconv.FormatInt(s.now().Unix(), 10)

	if err := s.redis.ZRemRangeByScore(ctx, PendingVideosKey, "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune pending videos: %w", err)
	}

	jobIDs, err := s.redis.ZRangeByScore(ctx, PendingVideosKey, &redis.ZRangeBy{
		Min:   now,
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending videos: %w", err)
	}

	intents := make([]types.UploadIntent, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		intent, err := s.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if intent == nil {
			s.redis.ZRem(ctx, PendingVideosKey, jobID)
			continue
		}
		intents = append(intents, *intent)
	}
	return intents, nil
}

// Count returns the number of indexed video intents.
func (s *RedisIntentStore) Count(ctx context.Context) (int64, error) {
	return s.redis.ZCard(ctx, PendingVideosKey).Result()
}

// MemoryIntentStore is the process-local intent store.
type MemoryIntentStore struct {
	mu      sync.Mutex
	intents map[string]types.UploadIntent
	now     func() time.Time
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{intents: make(map[string]types.UploadIntent), now: time.Now}
}

func (s *MemoryIntentStore) Save(_ context.Context, intent types.UploadIntent) error {
	handle := intent.Handle()
	if handle == "" {
		return errors.New("upload intent has no storage key or job id")
	}
	if !intent.ExpiresAt.After(s.now()) {
		return errors.New("upload intent already expired")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[handle] = intent
	return nil
}

func (s *MemoryIntentStore) Get(_ context.Context, handle string) (*types.UploadIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[handle]
	if !ok {
		return nil, nil
	}
	if !intent.ExpiresAt.After(s.now()) {
		delete(s.intents, handle)
		return nil, nil
	}
	return &intent, nil
}

func (s *MemoryIntentStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, handle)
	return nil
}

func (s *MemoryIntentStore) PendingVideos(_ context.Context, limit int) ([]types.UploadIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []types.UploadIntent
	for handle, intent := range s.intents {
		if !intent.ExpiresAt.After(now) {
			delete(s.intents, handle)
			continue
		}
		if intent.JobID == "" {
			continue
		}
		out = append(out, intent)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryIntentStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, intent := range s.intents {
		if intent.JobID != "" {
			n++
		}
	}
	return n, nil
}
