package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Defaults applied to the answer-upsert path.
const (
	DefaultCapacity = 20
	DefaultWindow   = 10 * time.Second
)

// bucketScript refills and spends one token atomically. Time comes from
// redis TIME so every process meters against the same clock. State per key:
// tokens (scaled by 1000 to keep fractional refill in integer math) and the
// last refill timestamp in ms.
//
// Returns {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local t = redis.call("TIME")
local now_ms = t[1] * 1000 + math.floor(t[2] / 1000)

local scale = 1000
local rate = capacity * scale / window_ms

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
	tokens = capacity * scale
	ts = now_ms
end

local elapsed = now_ms - ts
if elapsed > 0 then
	tokens = math.min(capacity * scale, tokens + elapsed * rate)
end

local allowed = 0
local retry_after_ms = 0
if tokens >= scale then
	tokens = tokens - scale
	allowed = 1
else
	retry_after_ms = math.ceil((scale - tokens) / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now_ms)
redis.call("PEXPIRE", key, window_ms * 2)

return {allowed, math.floor(tokens / scale), retry_after_ms}
`)

// Result is one metering decision.
type Result struct {
	Allowed       bool
	Limit         int
	Remaining     int
	RetryAfterSec int
}

// TokenBucket is a redis-backed token bucket limiter. When redis is down it
// fails open: throttling is a protection, not a correctness requirement.
type TokenBucket struct {
	client   *redis.Client
	capacity int
	window   time.Duration
}

func NewTokenBucket(client *redis.Client, capacity int, window time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &TokenBucket{client: client, capacity: capacity, window: window}
}

// Allow spends one token for the key and reports the decision.
func (b *TokenBucket) Allow(ctx context.Context, key string) Result {
	open := Result{Allowed: true, Limit: b.capacity, Remaining: b.capacity}
	if b.client == nil {
		return open
	}

	values, err := bucketScript.Run(ctx, b.client,
		[]string{"ratelimit:" + key},
		b.capacity, b.window.Milliseconds(),
	).Int64Slice()
	if err != nil || len(values) != 3 {
		slog.WarnContext(ctx, "rate limiter unavailable, failing open", "error", err, "key", key)
		return open
	}

	result := Result{
		Allowed:   values[0] == 1,
		Limit:     b.capacity,
		Remaining: int(values[1]),
	}
	if !result.Allowed {
		retryMs := values[2]
		result.RetryAfterSec = int((retryMs + 999) / 1000)
		if result.RetryAfterSec < 1 {
			result.RetryAfterSec = 1
		}
	}
	return result
}
