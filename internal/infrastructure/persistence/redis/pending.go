package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// PENDING RESULT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// PendingCache parks computed results for users that have not passed
// verification yet. A later verification event takes the parked result and
// persists it without rescoring; consumption is destructive (GETDEL), so a
// parked result is flushed at most once even when verification events race.
type PendingCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewPendingCache wraps a cache client. A non-positive ttl falls back to
// TTLPending.
func NewPendingCache(cache *Cache, ttl time.Duration) *PendingCache {
	if ttl <= 0 {
		ttl = TTLPending
	}
	return &PendingCache{cache: cache, ttl: ttl}
}

// Put parks a computed result, replacing any earlier parked result for the
// same user (last write wins).
func (p *PendingCache) Put(ctx context.Context, pending ranking.Pending) error {
	if err := p.cache.Set(ctx, PendingKey(pending.UserID), pending, p.ttl); err != nil {
		return fmt.Errorf("pending: put %s: %w", pending.UserID, err)
	}
	return nil
}

// Take removes and returns the parked result for a user. The second return
// value is false when nothing was parked (or it already expired).
func (p *PendingCache) Take(ctx context.Context, userID string) (ranking.Pending, bool, error) {
	var pending ranking.Pending
	err := p.cache.GetDel(ctx, PendingKey(userID), &pending)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ranking.Pending{}, false, nil
		}
		return ranking.Pending{}, false, fmt.Errorf("pending: take %s: %w", userID, err)
	}
	return pending, true, nil
}
