package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs sliding-window rate limiting. With a Redis client it
// uses a sorted-set sliding window shared across instances; without one
// it falls back to an in-process sliding window. The local fallback is
// a real limiter, not fail-open: the outbound completion budget must
// hold even in single-instance deployments without Redis.
type Limiter struct {
	rdb *redis.Client

	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	stamps []time.Time
}

// NewLimiter creates a new rate limiter. rdb may be nil.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{
		rdb:     rdb,
		windows: make(map[string]*localWindow),
	}
}

// slidingWindowScript atomically: removes expired entries, adds current, counts.
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro)
// ARGV[2] = now (unix micro) — used as both score and member uniqueness
// ARGV[3] = limit
// ARGV[4] = TTL seconds for the key
// Returns: [current_count, 1=allowed/0=denied]
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1}
end

redis.call('EXPIRE', key, ttl)
return {count, 0}
`)

// Check performs a sliding-window rate limit check.
// key: the rate limit bucket identifier
// limit: maximum allowed requests in the window
// window: the sliding window duration
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	if l.rdb == nil {
		return l.checkLocal(key, limit, window), nil
	}

	now := time.Now()
	windowStart := now.Add(-window).UnixMicro()
	nowMicro := now.UnixMicro()
	ttlSecs := int64(window.Seconds()) + 1

	redisKey := fmt.Sprintf("cdc:rl:%s", key)

	result, err := slidingWindowScript.Run(ctx, l.rdb, []string{redisKey},
		windowStart, nowMicro, limit, ttlSecs,
	).Int64Slice()
	if err != nil {
		// Redis unreachable: fall back to the local window so the
		// budget still holds on this instance.
		return l.checkLocal(key, limit, window), nil
	}

	count := result[0]
	allowed := result[1] == 1
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(window)
	var retryAfter time.Duration
	if !allowed {
		retryAfter = window / 2 // conservative estimate
	}

	return LimitResult{
		Allowed:    allowed,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}, nil
}

func (l *Limiter) checkLocal(key string, limit int64, window time.Duration) LimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	w, ok := l.windows[key]
	if !ok {
		w = &localWindow{}
		l.windows[key] = w
	}

	// Drop stamps that slid out of the window.
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep

	if int64(len(w.stamps)) >= limit {
		retryAfter := window - now.Sub(w.stamps[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return LimitResult{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    w.stamps[0].Add(window),
			RetryAfter: retryAfter,
		}
	}

	w.stamps = append(w.stamps, now)
	return LimitResult{
		Allowed:   true,
		Remaining: limit - int64(len(w.stamps)),
		ResetAt:   now.Add(window),
	}
}
