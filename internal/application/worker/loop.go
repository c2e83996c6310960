// Package worker contains the recompute loop that drains the job queue:
// dequeue, checksum guard, score, verification gate, atomic persist. A small
// pool of independent loops runs concurrently; per-user idempotency comes
// from the checksum comparison, not from locking.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
	"github.com/rankhub/student-ranking-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Dequeuer is the consumer side of the recompute queue. Dequeue blocks up to
// timeout and reports ok=false when the queue stayed empty.
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (ranking.Job, bool, error)
	Len(ctx context.Context) (int64, error)
}

// ProfileStore provides the scoring input bundle for jobs that do not carry
// it inline. Absent profiles resolve to defaults, not errors.
type ProfileStore interface {
	FetchBundle(ctx context.Context, userID string) (profile.Bundle, error)
}

// ResultStore is the durable side: the existing record for the checksum
// guard, and the atomic upsert.
type ResultStore interface {
	GetRecord(ctx context.Context, userID string) (ranking.Record, error)
	ApplyUpsert(ctx context.Context, up ranking.Upsert) error
}

// VerificationChecker reports whether a user has passed verification.
type VerificationChecker interface {
	IsVerified(ctx context.Context, userID string) (bool, error)
}

// PendingWriter parks results for unverified users.
type PendingWriter interface {
	Put(ctx context.Context, pending ranking.Pending) error
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB OUTCOMES
// ══════════════════════════════════════════════════════════════════════════════

// Outcome classifies how a job ended. The values double as metric labels.
type Outcome string

const (
	// OutcomeProcessed means the result was written durably.
	OutcomeProcessed Outcome = metrics.OutcomeProcessed

	// OutcomeSkippedChecksum means the stored checksum already matched the
	// input, so scoring was skipped entirely.
	OutcomeSkippedChecksum Outcome = metrics.OutcomeSkippedChecksum

	// OutcomeCachedPending means the user is unverified and the result was
	// parked in the pending cache.
	OutcomeCachedPending Outcome = metrics.OutcomeCachedPending

	// OutcomeDroppedInvalid means the job payload was unusable and dropped.
	OutcomeDroppedInvalid Outcome = metrics.OutcomeDroppedInvalid

	// OutcomeFailed means a transient infrastructure error abandoned the
	// job. Redelivery is the queue's responsibility, not the loop's.
	OutcomeFailed Outcome = metrics.OutcomeFailed
)

// Result describes one finished job.
type Result struct {
	JobID     string
	UserID    string
	Outcome   Outcome
	Composite float64
	Duration  time.Duration
	Err       error
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKER LOOP
// ══════════════════════════════════════════════════════════════════════════════

// Config tunes a worker loop.
type Config struct {
	// DequeueTimeout bounds the blocking pop; on expiry the loop checks for
	// shutdown and polls again.
	DequeueTimeout time.Duration

	// ConfigVersion is stamped on every result this loop produces.
	ConfigVersion string

	// SkipChecksumGuard disables the stored-checksum comparison, rescoring
	// every job. Only useful when load-testing the scorer.
	SkipChecksumGuard bool

	// DisableVerificationGate persists results for unverified users instead
	// of parking them in the pending cache.
	DisableVerificationGate bool
}

// DefaultConfig returns standard worker timings.
func DefaultConfig(configVersion string) Config {
	return Config{
		DequeueTimeout: 5 * time.Second,
		ConfigVersion:  configVersion,
	}
}

// Loop is a single recompute worker.
type Loop struct {
	queue    Dequeuer
	profiles ProfileStore
	scorer   scoring.Scorer
	store    ResultStore
	verifier VerificationChecker
	pending  PendingWriter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoop creates a worker loop.
func NewLoop(
	queue Dequeuer,
	profiles ProfileStore,
	scorer scoring.Scorer,
	store ResultStore,
	verifier VerificationChecker,
	pending PendingWriter,
	cfg Config,
	logger *slog.Logger,
) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:    queue,
		profiles: profiles,
		scorer:   scorer,
		store:    store,
		verifier: verifier,
		pending:  pending,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run drains the queue until the context is cancelled. Every dequeued job is
// fully handled locally: failures are logged and counted, never propagated.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok, err := l.queue.Dequeue(ctx, l.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("dequeue failed", "error", err)
			continue
		}
		if !ok {
			continue
		}
		metrics.RecordQueueDequeue()

		res := l.Process(ctx, job)
		metrics.RecordJobOutcome(string(res.Outcome))
		metrics.RecordJobDuration(res.Duration.Seconds())
		l.logResult(res)
	}
}

// Process runs one job through the full pipeline and reports how it ended.
func (l *Loop) Process(ctx context.Context, job ranking.Job) Result {
	started := l.now()
	res := Result{JobID: job.ID, UserID: job.UserID}
	res.Outcome, res.Composite, res.Err = l.process(ctx, job)
	res.Duration = l.now().Sub(started)
	return res
}

func (l *Loop) process(ctx context.Context, job ranking.Job) (Outcome, float64, error) {
	if job.UserID == "" {
		return OutcomeDroppedInvalid, 0, errors.New("worker: job without user_id")
	}

	bundle, err := l.bundleFor(ctx, job)
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("worker: fetch bundle: %w", err)
	}

	checksum, err := scoring.Checksum(bundle)
	if err != nil {
		// The bundle cannot even be serialized; there is nothing to retry.
		return OutcomeDroppedInvalid, 0, fmt.Errorf("worker: checksum: %w", err)
	}

	if !l.cfg.SkipChecksumGuard {
		existing, err := l.store.GetRecord(ctx, job.UserID)
		switch {
		case err == nil:
			if existing.ScoreChecksum == checksum {
				return OutcomeSkippedChecksum, existing.CompositeScore, nil
			}
		case errors.Is(err, ranking.ErrNotFound):
			// First score for this user.
		default:
			return OutcomeFailed, 0, fmt.Errorf("worker: load existing record: %w", err)
		}
	}

	scoreStart := l.now()
	result, err := l.scorer.Score(bundle)
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("worker: score: %w", err)
	}
	metrics.RecordScoringDuration(l.now().Sub(scoreStart).Seconds())

	verified := true
	if !l.cfg.DisableVerificationGate {
		verified, err = l.verifier.IsVerified(ctx, job.UserID)
		if err != nil {
			// Fail open: persisting an unverified score is recoverable, losing
			// a verified one is not.
			l.logger.Warn("verification check unavailable, treating as verified",
				"user_id", job.UserID,
				"error", err,
			)
			verified = true
		}
	}

	if !verified {
		pending := ranking.Pending{
			UserID:     job.UserID,
			Result:     result,
			Checksum:   checksum,
			Version:    l.cfg.ConfigVersion,
			Reason:     job.Reason,
			ComputedAt: l.now(),
		}
		if err := l.pending.Put(ctx, pending); err != nil {
			return OutcomeFailed, result.Composite, fmt.Errorf("worker: park pending result: %w", err)
		}
		return OutcomeCachedPending, result.Composite, nil
	}

	up := ranking.Upsert{
		UserID:       job.UserID,
		Result:       result,
		Checksum:     checksum,
		Version:      l.cfg.ConfigVersion,
		ComputeRunID: uuid.NewString(),
		IsVerified:   true,
		Reason:       job.Reason,
	}
	if err := l.store.ApplyUpsert(ctx, up); err != nil {
		return OutcomeFailed, result.Composite, fmt.Errorf("worker: persist result: %w", err)
	}
	return OutcomeProcessed, result.Composite, nil
}

func (l *Loop) bundleFor(ctx context.Context, job ranking.Job) (profile.Bundle, error) {
	if job.Profile != nil {
		b := *job.Profile
		if b.UserID == "" {
			b.UserID = job.UserID
		}
		return b, nil
	}
	return l.profiles.FetchBundle(ctx, job.UserID)
}

func (l *Loop) logResult(res Result) {
	switch res.Outcome {
	case OutcomeProcessed:
		l.logger.Info("job processed",
			"job_id", res.JobID,
			"user_id", res.UserID,
			"composite", res.Composite,
			"duration", res.Duration,
		)
	case OutcomeSkippedChecksum:
		l.logger.Debug("job skipped, checksum unchanged",
			"job_id", res.JobID,
			"user_id", res.UserID,
		)
	case OutcomeCachedPending:
		l.logger.Info("result parked until verification",
			"job_id", res.JobID,
			"user_id", res.UserID,
			"composite", res.Composite,
		)
	case OutcomeDroppedInvalid:
		l.logger.Warn("job dropped",
			"job_id", res.JobID,
			"user_id", res.UserID,
			"error", res.Err,
		)
	case OutcomeFailed:
		l.logger.Error("job failed",
			"job_id", res.JobID,
			"user_id", res.UserID,
			"error", res.Err,
		)
	}
}
