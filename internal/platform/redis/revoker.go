package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/tasker-api/internal/service/auth"
	"github.com/redis/rueidis"
)

const revokedKeyPrefix = "tasker:revoked:"

// Revoker implements auth.Revoker with one expiring key per token id.
type Revoker struct {
	client   rueidis.Client
	timeFunc func() time.Time
}

// NewRevoker creates a Revoker on client.
func NewRevoker(client rueidis.Client) *Revoker {
	return &Revoker{client: client, timeFunc: time.Now}
}

var _ auth.Revoker = (*Revoker)(nil)

// Revoke implements auth.Revoker.
// SET NX makes the first revocation win.
func (r *Revoker) Revoke(ctx context.Context, jti string, until time.Time) (bool, error) {
	ttl := until.Sub(r.timeFunc())
	if ttl <= 0 {
		return true, nil
	}
	cmd := r.client.B().Set().Key(revokedKey(jti)).Value("1").Nx().ExSeconds(ttlSeconds(ttl)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return true, nil
}

// IsRevoked implements auth.Revoker.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Do(ctx, r.client.B().Exists().Key(revokedKey(jti)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

func revokedKey(jti string) string {
	return revokedKeyPrefix + jti
}
