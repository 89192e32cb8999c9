package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// luaAllow increments the window counter and arms its expiry in one round
// trip, so a crash between INCR and EXPIRE cannot leave a key that never
// resets.
var luaAllow = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return hits`)

// RateLimiter is a fixed-window counter, keyed per user and action.
type RateLimiter struct {
	cli *redis.Client
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{cli: c.cli}
}

// Allow records one hit against key and reports whether it is still within
// limit for the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	hits, err := luaAllow.Run(ctx, r.cli, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return hits <= int64(limit), nil
}

func UserScanKey(userID string) string {
	return fmt.Sprintf("rate_limit:scan:%s", userID)
}
