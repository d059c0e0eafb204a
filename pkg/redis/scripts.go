package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Both scripts run atomically on a live server. Without one (tests) the
// same steps run as separate commands.

var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// FixedWindowAllow counts a hit against scope in the current window and
// reports whether the count is still within limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.New("window must be positive")
	}
	key := c.RateLimitKey(scope)

	var (
		count int64
		err   error
	)
	if c.raw != nil {
		count, err = fixedWindowScript.Run(ctx, c.raw, []string{key}, window.Milliseconds()).Int64()
	} else {
		count, err = c.incrWithExpiry(ctx, key, window)
	}
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

func (c *Client) incrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotConnected
	}
	count, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.cmd.PExpire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// CompareAndDelete removes key only while it still holds value.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if c.raw != nil {
		n, err := compareAndDeleteScript.Run(ctx, c.raw, []string{key}, value).Int64()
		return n > 0, err
	}
	if c.cmd == nil {
		return false, errNotConnected
	}
	current, err := c.cmd.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	case current != value:
		return false, nil
	}
	n, err := c.cmd.Del(ctx, key).Result()
	return n > 0, err
}
