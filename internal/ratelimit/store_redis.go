package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window opens on the first counted request and closes window_ms later.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local max = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local start = tonumber(redis.call('HGET', key, 'start'))
local count = tonumber(redis.call('HGET', key, 'count'))
if (not start) or now >= start + window_ms then
  redis.call('HSET', key, 'start', now, 'count', 1)
  redis.call('PEXPIRE', key, window_ms)
  return {1, 1, 0}
end
if count >= max then
  return {0, count, start + window_ms - now}
end
count = redis.call('HINCRBY', key, 'count', 1)
return {1, count, 0}
`)

type RedisStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedisStore(client redis.Scripter, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func (s *RedisStore) CheckAndIncrement(ctx context.Context, identifier, endpoint string, cfg Config) (Result, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", endpoint, identifier)
	windowMs := int64(cfg.WindowMinutes) * int64(time.Minute/time.Millisecond)

	vals, err := checkScript.Run(ctx, s.client, []string{key}, cfg.MaxRequests, windowMs, s.now().UnixMilli()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("redis rate limit script: unexpected reply %v", vals)
	}

	current := int(vals[1])
	if vals[0] == 1 {
		return Result{Allowed: true, Current: current, Limit: cfg.MaxRequests, Remaining: intPtr(cfg.MaxRequests - current)}, nil
	}
	retry := int((vals[2] + 999) / 1000)
	if retry < 1 {
		retry = 1
	}
	return Result{Allowed: false, Current: current, Limit: cfg.MaxRequests, Remaining: intPtr(0), RetryAfter: intPtr(retry)}, nil
}
