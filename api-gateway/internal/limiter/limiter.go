package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "limiter:bids:"

const redisTimeout = 300 * time.Millisecond

// Limiter counts bid attempts per user in fixed windows.
type Limiter struct {
	Redis  *redis.Client
	Limit  int
	Window time.Duration

	// Now defaults to time.Now
	Now func() time.Time
}

// Increment records one attempt by userID in the current window and returns the count so far.
func (l *Limiter) Increment(ctx context.Context, userID string) (int, error) {
	key := l.userCounterKey(userID)

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.Redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("can't increment user's counter: %w", err)
	}

	if val == 1 {
		if err := l.Redis.Expire(ctx, key, l.window()).Err(); err != nil {
			return 0, fmt.Errorf("can't set counter expiration: %w", err)
		}
	}

	return int(val), nil
}

func (l *Limiter) window() time.Duration {
	if l.Window <= 0 {
		return time.Minute
	}
	return l.Window
}

// userCounterKey is the user's ID followed by the start of the current window.
func (l *Limiter) userCounterKey(userID string) string {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	start := now().Truncate(l.window()).Unix()
	return cacheKeyPrefix + userID + ":" + strconv.FormatInt(start, 10)
}
