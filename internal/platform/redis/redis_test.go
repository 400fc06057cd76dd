package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(60), ttlSeconds(time.Minute))
	assert.Equal(t, int64(1), ttlSeconds(10*time.Millisecond))
	assert.Equal(t, int64(3), ttlSeconds(2*time.Second+time.Nanosecond))
}

func TestLimiterWindowKey(t *testing.T) {
	t.Parallel()

	l := &Limiter{limit: 5, window: time.Minute}
	at := time.Date(2025, 1, 1, 12, 0, 30, 0, time.UTC)

	key, reset := l.windowKey("203.0.113.7", at)
	assert.Equal(t, "tasker:rate:203.0.113.7:1735732800", key)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 1, 0, 0, time.UTC), reset)

	sameWindow, _ := l.windowKey("203.0.113.7", at.Add(29*time.Second))
	assert.Equal(t, key, sameWindow)

	nextWindow, _ := l.windowKey("203.0.113.7", at.Add(30*time.Second))
	assert.NotEqual(t, key, nextWindow)
}

func TestRevokedKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "tasker:revoked:abc", revokedKey("abc"))
}
