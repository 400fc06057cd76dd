// Package redis holds the Redis-backed implementations of shared request
// state: refresh token revocation and per-client rate limiting. Both are
// optional; without a configured address the server uses in-memory versions.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/tasker-api/internal/config"
	"github.com/redis/rueidis"
)

// NewClient connects to the configured Redis server and verifies the
// connection with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (rueidis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.Addr},
		Password:    cfg.Password,
		// Client-side caching needs RESP3 tracking, which managed Redis
		// offerings do not always enable.
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// ttlSeconds rounds d up to whole seconds, the resolution of EXPIRE.
func ttlSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
