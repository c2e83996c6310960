// Package ingest contains the write-side entry points of the pipeline: the
// debounce-gated recompute enqueue and the verification-event handler that
// flushes pending results. Both are invoked by the HTTP webhook layer and by
// the internal event bus.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// DebounceGate is the atomic set-if-absent marker used to coalesce event
// bursts for one user. ClearDebounce releases the window early when the
// acquired update never made it onto the queue.
type DebounceGate interface {
	AcquireDebounce(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	ClearDebounce(ctx context.Context, userID string) error
}

// Queue is the producer side of the recompute queue.
type Queue interface {
	Enqueue(ctx context.Context, job ranking.Job) error
}

// ══════════════════════════════════════════════════════════════════════════════
// GATE POLICY
// ══════════════════════════════════════════════════════════════════════════════

// GatePolicy decides what happens when the debounce gate itself is
// unreachable.
type GatePolicy int

const (
	// GateProceed treats an unreachable gate as acquired: the update is
	// enqueued anyway. Dropping an update silently is worse than an extra
	// duplicate, which the checksum guard absorbs downstream.
	GateProceed GatePolicy = iota

	// GateSuppress drops the update when the gate is unreachable.
	GateSuppress
)

// ══════════════════════════════════════════════════════════════════════════════
// ENQUEUE HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ErrUserIDRequired is returned for events without a user id.
var ErrUserIDRequired = errors.New("ingest: user_id is required")

// EnqueueConfig holds per-reason debounce windows. A zero TTL means the
// reason bypasses the gate entirely (manual recomputes are always honoured).
type EnqueueConfig struct {
	StudentUpdatedTTL time.Duration
	UserCreatedTTL    time.Duration
	OnGateUnavailable GatePolicy

	// ConfigVersion is stamped on every job this producer enqueues.
	ConfigVersion string
}

// DefaultEnqueueConfig returns the standard debounce windows: registration
// bursts coalesce harder than ordinary profile edits.
func DefaultEnqueueConfig() EnqueueConfig {
	return EnqueueConfig{
		StudentUpdatedTTL: 2 * time.Second,
		UserCreatedTTL:    1 * time.Second,
		OnGateUnavailable: GateProceed,
	}
}

// Enqueuer pushes recompute jobs through the debounce gate onto the queue.
type Enqueuer struct {
	gate   DebounceGate
	queue  Queue
	cfg    EnqueueConfig
	logger *slog.Logger
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(gate DebounceGate, queue Queue, cfg EnqueueConfig, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{gate: gate, queue: queue, cfg: cfg, logger: logger}
}

// Enqueue gates and enqueues a recompute for one user. It returns true when a
// job was enqueued, false when the update was absorbed by an open debounce
// window.
func (e *Enqueuer) Enqueue(ctx context.Context, userID string, reason ranking.UpdateReason, eventIDs ...string) (bool, error) {
	if userID == "" {
		return false, ErrUserIDRequired
	}

	ttl := e.debounceTTL(reason)
	gated := false
	if ttl > 0 {
		acquired, err := e.gate.AcquireDebounce(ctx, userID, ttl)
		if err != nil {
			if e.cfg.OnGateUnavailable == GateSuppress {
				return false, fmt.Errorf("ingest: debounce gate unavailable: %w", err)
			}
			e.logger.Warn("debounce gate unavailable, proceeding",
				"user_id", userID,
				"reason", string(reason),
				"error", err,
			)
			metrics.RecordGateUnavailable()
		} else if !acquired {
			e.logger.Debug("update debounced",
				"user_id", userID,
				"reason", string(reason),
			)
			metrics.RecordEventDebounced()
			return false, nil
		} else {
			gated = true
		}
	}

	job := ranking.NewJob(userID, reason, eventIDs...)
	job.ConfigVersion = e.cfg.ConfigVersion
	if err := e.queue.Enqueue(ctx, job); err != nil {
		if gated {
			// The update was never queued; release the window so the next
			// event for this user is not silently absorbed.
			if clearErr := e.gate.ClearDebounce(ctx, userID); clearErr != nil {
				e.logger.Warn("failed to release debounce window",
					"user_id", userID,
					"error", clearErr,
				)
			}
		}
		return false, fmt.Errorf("ingest: enqueue: %w", err)
	}

	metrics.RecordQueueEnqueue()
	e.logger.Info("recompute enqueued",
		"user_id", userID,
		"reason", string(reason),
		"job_id", job.ID,
	)
	return true, nil
}

func (e *Enqueuer) debounceTTL(reason ranking.UpdateReason) time.Duration {
	switch reason {
	case ranking.ReasonStudentUpdated:
		return e.cfg.StudentUpdatedTTL
	case ranking.ReasonUserCreated:
		return e.cfg.UserCreatedTTL
	default:
		// Manual and verification-driven recomputes are explicit operator or
		// system intents; they are never debounced.
		return 0
	}
}
