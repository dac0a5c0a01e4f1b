package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/media-service/internal/types"
)

const maxWatchRetries = 10

// RedisPhaseStore mirrors job status in Redis. Observe runs under WATCH so
// concurrent pollers and webhooks cannot move a job backwards.
type RedisPhaseStore struct {
	redis *redis.Client
}

func NewRedisPhaseStore(redisClient *redis.Client) *RedisPhaseStore {
	return &RedisPhaseStore{redis: redisClient}
}

func (s *RedisPhaseStore) Observe(ctx context.Context, observed types.TranscodingJob) (types.TranscodingJob, error) {
	key := fmt.Sprintf(JobPhaseKey, observed.ExternalJobID)
	var exposed types.TranscodingJob

	txf := func(tx *redis.Tx) error {
		var prev *types.TranscodingJob

		cached, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var p types.TranscodingJob
			// a corrupt mirror is treated as absent
			if json.Unmarshal(cached, &p) == nil {
				prev = &p
			}
		}

		var stored types.TranscodingJob
		stored, exposed = types.Advance(prev, observed)

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, JobPhaseDuration)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return exposed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return types.TranscodingJob{}, fmt.Errorf("failed to record job phase: %w", err)
	}

	return types.TranscodingJob{}, fmt.Errorf("failed to record job phase: too much contention on %s", key)
}

// Get returns the stored status of a job, if any.
func (s *RedisPhaseStore) Get(ctx context.Context, jobID string) (*types.TranscodingJob, error) {
	cached, err := s.redis.Get(ctx, fmt.Sprintf(JobPhaseKey, jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job types.TranscodingJob
	if err := json.Unmarshal(cached, &job); err != nil {
		return nil, nil
	}
	return &job, nil
}

// MemoryPhaseStore is the process-local PhaseStore.
type MemoryPhaseStore struct {
	mu   sync.Mutex
	jobs map[string]types.TranscodingJob
}

func NewMemoryPhaseStore() *MemoryPhaseStore {
	return &MemoryPhaseStore{jobs: make(map[string]types.TranscodingJob)}
}

func (s *MemoryPhaseStore) Observe(_ context.Context, observed types.TranscodingJob) (types.TranscodingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *types.TranscodingJob
	if p, ok := s.jobs[observed.ExternalJobID]; ok {
		prev = &p
	}

	stored, exposed := types.Advance(prev, observed)
	s.jobs[observed.ExternalJobID] = stored
	return exposed, nil
}

func (s *MemoryPhaseStore) Get(_ context.Context, jobID string) (*types.TranscodingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[jobID]; ok {
		return &job, nil
	}
	return nil, nil
}
