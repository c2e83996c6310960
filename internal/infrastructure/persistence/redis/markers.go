package redis

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARKERS
// ══════════════════════════════════════════════════════════════════════════════

// Markers implements the short-lived coordination flags: the per-user
// debounce marker, the verification marker and named singleflight locks.
// Every operation is a single Redis command, so markers stay correct under
// concurrent producers.
type Markers struct {
	cache *Cache
}

// NewMarkers wraps a cache client.
func NewMarkers(cache *Cache) *Markers {
	return &Markers{cache: cache}
}

// AcquireDebounce attempts to claim the debounce window for a user.
// It returns true when this caller is the first inside the window and should
// enqueue a job; false means an equivalent job was enqueued within the TTL.
func (m *Markers) AcquireDebounce(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	ok, err := m.cache.SetNX(ctx, DebounceKey(userID), 1, ttl)
	if err != nil {
		return false, fmt.Errorf("markers: debounce %s: %w", userID, err)
	}
	return ok, nil
}

// ClearDebounce drops the debounce marker early, letting the next update
// enqueue immediately. Used after a worker finishes a user's recompute.
func (m *Markers) ClearDebounce(ctx context.Context, userID string) error {
	return m.cache.Delete(ctx, DebounceKey(userID))
}

// MarkVerified records that a user passed verification.
func (m *Markers) MarkVerified(ctx context.Context, userID string, ttl time.Duration) error {
	if err := m.cache.SetString(ctx, VerifiedKey(userID), "1", ttl); err != nil {
		return fmt.Errorf("markers: verify %s: %w", userID, err)
	}
	return nil
}

// IsVerified reports whether the verification marker is present.
func (m *Markers) IsVerified(ctx context.Context, userID string) (bool, error) {
	ok, err := m.cache.Exists(ctx, VerifiedKey(userID))
	if err != nil {
		return false, fmt.Errorf("markers: verify check %s: %w", userID, err)
	}
	return ok, nil
}

// AcquireLock claims a named singleflight lock for ttl. Returns false when
// another holder already owns it.
func (m *Markers) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := m.cache.SetNX(ctx, LockKey(name), 1, ttl)
	if err != nil {
		return false, fmt.Errorf("markers: lock %s: %w", name, err)
	}
	return ok, nil
}

// ReleaseLock frees a named lock before its TTL runs out.
func (m *Markers) ReleaseLock(ctx context.Context, name string) error {
	return m.cache.Delete(ctx, LockKey(name))
}
