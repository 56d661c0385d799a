package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a new Redis client from options
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Sliding window over a sorted set of request timestamps (milliseconds).
// Returns {allowed, count, oldest}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  return {0, count, tonumber(oldest[2]) or now}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return {1, count + 1, now}
`)

// RedisLimiter shares its window across every process using the same Redis.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "crowdfund:ratelimit:",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records one request for key if the window has room.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()
	window := l.window.Milliseconds()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		now, window, l.limit, uuid.NewString()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 3 {
		return Decision{}, fmt.Errorf("unexpected redis script result: %v", res)
	}
	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	oldest, _ := vals[2].(int64)

	d := Decision{Allowed: allowed == 1, Limit: l.limit, Remaining: l.limit - int(count)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration(oldest+window-now) * time.Millisecond
		if d.RetryAfter <= 0 {
			d.RetryAfter = time.Millisecond
		}
	}
	return d, nil
}
