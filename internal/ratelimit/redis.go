package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Check, then increment only if under the limit. The first hit of a window
// sets its expiry. Returns {allowed, count, pttl}.
const fixedWindowLuaScript = `
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= limit then
    return {0, current, redis.call("PTTL", KEYS[1])}
end

local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
    redis.call("PEXPIRE", KEYS[1], window)
end
return {1, n, redis.call("PTTL", KEYS[1])}
`

// RedisLimiter keeps fixed-window counters in Redis so every API instance
// sees the same counts.
type RedisLimiter struct {
	client redis.Cmdable
	script *redis.Script
}

// NewRedisLimiter creates a limiter with a pre-compiled Lua script.
func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(fixedWindowLuaScript),
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, rule Rule, key string) (Decision, error) {
	res, err := l.script.Run(ctx, l.client, []string{storageKey(rule, key)},
		rule.Limit, rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit check: unexpected reply %v", res)
	}
	return decide(rule, res[0] == 1, int(res[1]), time.Duration(res[2])*time.Millisecond), nil
}
