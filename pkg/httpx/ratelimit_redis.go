package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and starts its window on first use.
// Returns {count, pttl}.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisThrottle is a fixed-window counter shared by every instance that
// points at the same Redis.
type RedisThrottle struct {
	client redis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisThrottle allows cfg.RequestsPerWindow attempts per key per window.
func NewRedisThrottle(client redis.UniversalClient, prefix string, cfg RateLimitConfig) *RedisThrottle {
	return &RedisThrottle{
		client: client,
		prefix: prefix,
		limit:  int64(cfg.RequestsPerWindow),
		window: cfg.Window,
	}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindow.Run(ctx, t.client, []string{t.prefix + key}, t.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("throttle: redis: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("throttle: unexpected script reply %v", res)
	}

	count, pttl := res[0], res[1]
	if count <= t.limit {
		return Decision{Allowed: true}, nil
	}

	retry := time.Duration(pttl) * time.Millisecond
	if pttl < 0 {
		retry = t.window
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
