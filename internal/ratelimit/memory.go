package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// sweepEvery controls how often expired windows are dropped from the map.
const sweepEvery = 256

type window struct {
	count   int
	resetAt time.Time
}

// Memory is a process-local fixed-window limiter. Counters are not shared
// between nodes, so limits are only exact on a single instance.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
	calls   int
	now     func() time.Time
}

func NewMemory(limit int, per time.Duration) (*Memory, error) {
	if limit <= 0 || per <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &Memory{
		limit:   limit,
		window:  per,
		windows: make(map[string]*window),
		now:     time.Now,
	}, nil
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	key = normalizeKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	m.calls++
	if m.calls%sweepEvery == 0 {
		for k, w := range m.windows {
			if !now.Before(w.resetAt) {
				delete(m.windows, k)
			}
		}
	}

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.window)}
		m.windows[key] = w
	}
	w.count++

	return decide(w.count, m.limit, w.resetAt.Sub(now)), nil
}
