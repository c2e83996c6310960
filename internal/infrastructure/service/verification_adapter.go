// Package service contains thin adapters composing infrastructure pieces
// into the interfaces the application layer consumes.
package service

import (
	"context"

	"github.com/rankhub/student-ranking-hub/internal/infrastructure/persistence/redis"
)

// DurableVerificationStore is the Postgres side of the verification flag.
type DurableVerificationStore interface {
	IsVerified(ctx context.Context, userID string) (bool, error)
}

// VerificationCheckerAdapter answers "is this user verified?" for the worker
// loop. The Redis marker is the fast path; a miss falls through to the
// durable profile flag, because markers expire while the flag does not.
type VerificationCheckerAdapter struct {
	markers *redis.Markers
	durable DurableVerificationStore
}

// NewVerificationCheckerAdapter creates the adapter. markers may be nil, in
// which case only the durable flag is consulted.
func NewVerificationCheckerAdapter(markers *redis.Markers, durable DurableVerificationStore) *VerificationCheckerAdapter {
	return &VerificationCheckerAdapter{markers: markers, durable: durable}
}

// IsVerified reports whether the user has passed verification. Marker lookup
// errors are not fatal: the durable flag is authoritative, so the fallthrough
// covers a degraded Redis.
func (a *VerificationCheckerAdapter) IsVerified(ctx context.Context, userID string) (bool, error) {
	if a.markers != nil {
		ok, err := a.markers.IsVerified(ctx, userID)
		if err == nil && ok {
			return true, nil
		}
	}
	return a.durable.IsVerified(ctx, userID)
}
