package security

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type memoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() Denylist {
	return &memoryDenylist{revoked: make(map[string]time.Time), now: time.Now}
}

func (d *memoryDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[tokenID] = expiresAt
	// drop entries whose token could no longer be presented anyway
	now := d.now()
	for id, exp := range d.revoked {
		if exp.Before(now) {
			delete(d.revoked, id)
		}
	}
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return exp.After(d.now()), nil
}
