package auth

import (
	"context"
	"sync"
	"time"
)

// Revoker records token ids (jti) that must no longer be accepted.
type Revoker interface {
	// Revoke blocks jti until the given time. It reports false when jti was
	// already revoked, so exactly one caller claims a token.
	Revoke(ctx context.Context, jti string, until time.Time) (bool, error)

	// IsRevoked reports whether jti is currently blocked.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevoker is a process-local Revoker for single-instance deployments
// and tests. Expired entries are dropped lazily.
type MemoryRevoker struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	timeFunc func() time.Time
}

// NewMemoryRevoker creates an empty MemoryRevoker.
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		revoked:  make(map[string]time.Time),
		timeFunc: time.Now,
	}
}

var _ Revoker = (*MemoryRevoker)(nil)

// Revoke implements Revoker.
func (r *MemoryRevoker) Revoke(_ context.Context, jti string, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeFunc()
	for id, exp := range r.revoked {
		if !exp.After(now) {
			delete(r.revoked, id)
		}
	}
	if _, ok := r.revoked[jti]; ok {
		return false, nil
	}
	if until.After(now) {
		r.revoked[jti] = until
	}
	return true, nil
}

// IsRevoked implements Revoker.
func (r *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if !exp.After(r.timeFunc()) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}
