package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryStore counts in process memory. It backs local development and tests;
// deployments with more than one replica should use the postgres or redis store.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	start time.Time
	count int
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{windows: make(map[string]*memoryWindow), now: now}
}

func (s *MemoryStore) CheckAndIncrement(_ context.Context, identifier, endpoint string, cfg Config) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := endpoint + "|" + identifier
	now := s.now()
	window := time.Duration(cfg.WindowMinutes) * time.Minute

	w, ok := s.windows[key]
	if !ok || !now.Before(w.start.Add(window)) {
		s.windows[key] = &memoryWindow{start: now, count: 1}
		return Result{Allowed: true, Current: 1, Limit: cfg.MaxRequests, Remaining: intPtr(cfg.MaxRequests - 1)}, nil
	}

	if w.count >= cfg.MaxRequests {
		retry := int(math.Ceil(w.start.Add(window).Sub(now).Seconds()))
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, Current: w.count, Limit: cfg.MaxRequests, Remaining: intPtr(0), RetryAfter: intPtr(retry)}, nil
	}

	w.count++
	return Result{Allowed: true, Current: w.count, Limit: cfg.MaxRequests, Remaining: intPtr(cfg.MaxRequests - w.count)}, nil
}
