package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "tagdesk:ratelimit:"

// Limit sizes a token bucket: PerMinute tokens are added each minute, up to
// Burst.
type Limit struct {
	PerMinute int
	Burst     int
}

func (l Limit) perMilli() float64 {
	return float64(l.PerMinute) / float64(time.Minute/time.Millisecond)
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed   bool
	Remaining int64
	// RetryAfter is how long until a token is available. Zero when allowed.
	RetryAfter time.Duration
	// ResetAt is when the bucket will be full again.
	ResetAt time.Time
}

// APIKeyBucket names the bucket of one API key.
func APIKeyBucket(keyID string) string {
	return rateLimitPrefix + "key:" + keyID
}

// VerifyBucket names the access password bucket of a client IP. The IP is
// hashed so that addresses are not kept in Redis.
func VerifyBucket(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return rateLimitPrefix + "verify:" + hex.EncodeToString(sum[:8])
}

// takeToken refills and takes one token atomically, using the Redis clock.
// Returns {allowed, retry_ms, tokens_left}.
var takeToken = redis.NewScript(`
local rate  = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl   = tonumber(ARGV[3])

local t   = redis.call('TIME')
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(state[1]) or burst
local at     = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - at) * rate)

local allowed, retry = 0, 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'at', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, retry, math.floor(tokens)}
`)

// Allow takes a token from bucket. Errors are returned to the caller, which
// decides whether to fail open.
func (c *Cache) Allow(ctx context.Context, bucket string, limit Limit) (Decision, error) {
	if limit.PerMinute <= 0 || limit.Burst <= 0 {
		return Decision{}, fmt.Errorf("invalid rate limit %+v", limit)
	}

	rate := limit.perMilli()
	ttl := fullAfter(limit, 0) + time.Second

	res, err := takeToken.Run(ctx, c.client, []string{bucket}, rate, limit.Burst, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", bucket, err)
	}

	remaining := res[2]
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  remaining,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
		ResetAt:    time.Now().Add(fullAfter(limit, remaining)),
	}, nil
}

// fullAfter is how long a bucket holding remaining tokens takes to refill.
func fullAfter(limit Limit, remaining int64) time.Duration {
	missing := int64(limit.Burst) - remaining
	if missing <= 0 {
		return 0
	}
	perMinute := int64(limit.PerMinute)
	ms := (missing*time.Minute.Milliseconds() + perMinute - 1) / perMinute
	return time.Duration(ms) * time.Millisecond
}
