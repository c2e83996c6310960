package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// VerificationMarkers is the transient marker side of the verification flag.
type VerificationMarkers interface {
	MarkVerified(ctx context.Context, userID string, ttl time.Duration) error
	AcquireDebounce(ctx context.Context, userID string, ttl time.Duration) (bool, error)
}

// VerifiedFlagStore is the durable side of the verification flag.
type VerifiedFlagStore interface {
	SetVerified(ctx context.Context, userID string) error
}

// PendingTaker consumes parked results destructively.
type PendingTaker interface {
	Take(ctx context.Context, userID string) (ranking.Pending, bool, error)
}

// ResultWriter persists a completed scoring pass.
type ResultWriter interface {
	ApplyUpsert(ctx context.Context, up ranking.Upsert) error
	MarkVerified(ctx context.Context, userID string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// VERIFICATION HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// VerifierConfig tunes the verification flush.
type VerifierConfig struct {
	// MarkerTTL bounds the fast-path verification marker in Redis.
	MarkerTTL time.Duration

	// FlushDebounceTTL guards the one-shot flush against duplicate
	// verification events for the same user.
	FlushDebounceTTL time.Duration
}

// DefaultVerifierConfig returns standard verification timings.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		MarkerTTL:        24 * time.Hour,
		FlushDebounceTTL: 5 * time.Second,
	}
}

// Verifier handles user-verified events: it records the flag on both the
// fast path (marker) and the durable path (profile row), then flushes the
// user's parked result, if any, exactly once.
type Verifier struct {
	markers VerificationMarkers
	flags   VerifiedFlagStore
	pending PendingTaker
	results ResultWriter
	cfg     VerifierConfig
	logger  *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(
	markers VerificationMarkers,
	flags VerifiedFlagStore,
	pending PendingTaker,
	results ResultWriter,
	cfg VerifierConfig,
	logger *slog.Logger,
) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{
		markers: markers,
		flags:   flags,
		pending: pending,
		results: results,
		cfg:     cfg,
		logger:  logger,
	}
}

// HandleVerified processes one user-verified event.
//
// The flag writes are idempotent, so they run on every delivery. The flush is
// not: it is guarded by its own short debounce so duplicate verification
// events cannot persist the parked result twice, and the pending entry is
// consumed destructively regardless of flush success — a failed flush is
// logged and left to the next recompute, never retried here.
func (v *Verifier) HandleVerified(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}

	if err := v.flags.SetVerified(ctx, userID); err != nil {
		return fmt.Errorf("ingest: durable verified flag: %w", err)
	}
	if err := v.markers.MarkVerified(ctx, userID, v.cfg.MarkerTTL); err != nil {
		// The durable flag is already set; the marker is only a fast path.
		v.logger.Warn("verification marker write failed", "user_id", userID, "error", err)
	}
	if err := v.results.MarkVerified(ctx, userID); err != nil {
		v.logger.Warn("ranking row verified flag failed", "user_id", userID, "error", err)
	}

	acquired, err := v.markers.AcquireDebounce(ctx, "verify_flush:"+userID, v.cfg.FlushDebounceTTL)
	if err != nil {
		// Fail open: a duplicate flush attempt is bounded by the destructive
		// pending read below.
		v.logger.Warn("flush debounce unavailable, proceeding", "user_id", userID, "error", err)
	} else if !acquired {
		v.logger.Debug("duplicate verification event suppressed", "user_id", userID)
		return nil
	}

	pending, ok, err := v.pending.Take(ctx, userID)
	if err != nil {
		return fmt.Errorf("ingest: take pending result: %w", err)
	}
	if !ok {
		metrics.RecordVerificationMiss()
		return nil
	}

	up := ranking.Upsert{
		UserID:       pending.UserID,
		Result:       pending.Result,
		Checksum:     pending.Checksum,
		Version:      pending.Version,
		ComputeRunID: uuid.NewString(),
		IsVerified:   true,
		Reason:       ranking.ReasonUserVerified,
	}
	if err := v.results.ApplyUpsert(ctx, up); err != nil {
		// The pending entry is already gone; the score stays stale until the
		// next profile update for this user.
		v.logger.Error("pending result flush failed",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	metrics.RecordVerificationFlush()
	v.logger.Info("pending result flushed",
		"user_id", userID,
		"composite", pending.Result.Composite,
	)
	return nil
}
