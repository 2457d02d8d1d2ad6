package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "projectsvc:ratelimit:"

// allowScript increments the window counter and starts its expiry on the
// first hit, returning the count and the remaining TTL in milliseconds.
var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

var (
	errUnexpectedRedisResponse = errors.New("unexpected redis rate limit response")
	errInvalidRedisCounter     = errors.New("invalid redis counter response")
)

// RedisLimiter is a fixed-window limiter shared by every replica through
// redis.
type RedisLimiter struct {
	client redis.Scripter
	limit  int
	window time.Duration
}

func NewRedisLimiter(client redis.Scripter, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if r.limit <= 0 {
		return Decision{Allowed: true}, nil
	}
	windowMillis := r.window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}

	result, err := allowScript.Run(ctx, r.client, []string{redisKeyPrefix + key}, windowMillis).Result()
	if err != nil {
		return Decision{}, err
	}
	return parseWindowResult(result, r.limit)
}

func parseWindowResult(result any, limit int) (Decision, error) {
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return Decision{}, errUnexpectedRedisResponse
	}
	current, ok := values[0].(int64)
	if !ok {
		return Decision{}, errInvalidRedisCounter
	}
	ttlMillis, _ := values[1].(int64)

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	decision := Decision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
	}
	if !decision.Allowed && ttlMillis > 0 {
		decision.RetryAfter = time.Duration(ttlMillis) * time.Millisecond
	}
	return decision, nil
}
