// Package claim provides an at-most-once guard for notification dispatch.
// Multiple workers sweeping the same store coordinate through a Guard so
// each alert transition notifies once per rule.
package claim

import (
	"context"
	"sync"
	"time"
)

// Guard records dispatch claims. Acquire returns true exactly once per key
// within the TTL window; later callers holding the same key lose the claim.
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

// MemoryGuard is a single-process Guard backed by a map. It is the default
// when no Redis address is configured.
type MemoryGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewMemoryGuard creates an in-process claim guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Acquire claims the key if it is unclaimed or its previous claim expired.
func (g *MemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expiry, ok := g.claims[key]; ok && expiry.After(now) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)

	// Opportunistic cleanup keeps the map bounded between sweeps.
	if len(g.claims) > 4096 {
		for k, expiry := range g.claims {
			if !expiry.After(now) {
				delete(g.claims, k)
			}
		}
	}
	return true, nil
}

// Release drops the claim so the key can be acquired again.
func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
	return nil
}

// Close is a no-op for the in-process guard.
func (g *MemoryGuard) Close() error { return nil }
