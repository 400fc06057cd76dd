package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
)

const rateKeyPrefix = "tasker:rate:"

// Limiter is a fixed-window request counter shared by every server instance.
type Limiter struct {
	client   rueidis.Client
	limit    int
	window   time.Duration
	timeFunc func() time.Time
}

// NewLimiter allows limit requests per key in each window.
func NewLimiter(client rueidis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window, timeFunc: time.Now}
}

// Allow counts one request for key. When the window is exhausted it returns
// false and the time until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.timeFunc()
	windowKey, reset := l.windowKey(key, now)

	resps := l.client.DoMulti(ctx,
		l.client.B().Incr().Key(windowKey).Build(),
		l.client.B().Expire().Key(windowKey).Seconds(ttlSeconds(l.window)).Build(),
	)
	count, err := resps[0].AsInt64()
	if err != nil {
		return false, 0, fmt.Errorf("failed to count request: %w", err)
	}
	if err := resps[1].Error(); err != nil {
		return false, 0, fmt.Errorf("failed to set rate window expiry: %w", err)
	}

	if count > int64(l.limit) {
		return false, reset.Sub(now), nil
	}
	return true, 0, nil
}

// windowKey returns the counter key for the window containing now and the
// instant that window ends.
func (l *Limiter) windowKey(key string, now time.Time) (string, time.Time) {
	start := now.Truncate(l.window)
	return rateKeyPrefix + key + ":" + strconv.FormatInt(start.Unix(), 10), start.Add(l.window)
}
