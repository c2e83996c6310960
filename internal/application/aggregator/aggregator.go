// Package aggregator recomputes global ranking state on a fixed interval:
// rank positions, exact percentiles, the score histogram and the global
// statistics snapshot. A TTL-bound singleflight lock keeps at most one pass
// running system-wide; losing the lock means skipping the cycle, not waiting.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Locker is the keyed singleflight lock.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// Store is the slice of the ranking store the aggregator needs.
type Store interface {
	ListRecords(ctx context.Context) ([]ranking.Record, error)
	SaveRankings(ctx context.Context, records []ranking.Record, histogram []ranking.HistogramBucket, stats ranking.GlobalStats) error
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// Outcome of one aggregator cycle; the values double as metric labels.
type Outcome string

const (
	// OutcomeCompleted means the pass ran and saved the rebuilt state.
	OutcomeCompleted Outcome = "completed"

	// OutcomeSkipped means another pass holds the lock.
	OutcomeSkipped Outcome = "skipped_locked"

	// OutcomeFailed means the pass aborted; stored ranks stay as they were.
	OutcomeFailed Outcome = "failed"
)

// Config tunes the aggregator.
type Config struct {
	// LockName identifies the singleflight lock shared by all instances.
	LockName string

	// LockTTL bounds the lock so a crashed pass self-heals.
	LockTTL time.Duration

	// ConfigVersion is stamped on the global stats snapshot.
	ConfigVersion string
}

// DefaultConfig returns standard aggregator settings.
func DefaultConfig(configVersion string) Config {
	return Config{
		LockName:      "ranking_aggregator",
		LockTTL:       5 * time.Minute,
		ConfigVersion: configVersion,
	}
}

// Aggregator rebuilds rank positions, percentiles, the histogram and global
// statistics from the full set of stored records.
type Aggregator struct {
	lock   Locker
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Aggregator.
func New(lock Locker, store Store, cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		lock:   lock,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one aggregation cycle. Errors are reported to the caller for
// logging and metrics but carry no retry obligation: the next interval tick
// repairs any staleness.
func (a *Aggregator) Run(ctx context.Context) (Outcome, error) {
	acquired, err := a.lock.AcquireLock(ctx, a.cfg.LockName, a.cfg.LockTTL)
	if err != nil {
		// Fail open: a duplicate pass is idempotent, a skipped one leaves
		// stale ranks for a full interval.
		a.logger.Warn("aggregator lock store unavailable, proceeding", "error", err)
	} else if !acquired {
		a.logger.Debug("aggregator cycle skipped, lock held elsewhere")
		metrics.RecordAggregatorRun(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	} else {
		defer func() {
			// A failed release is harmless: the TTL expires it.
			if relErr := a.lock.ReleaseLock(context.WithoutCancel(ctx), a.cfg.LockName); relErr != nil {
				a.logger.Warn("aggregator lock release failed", "error", relErr)
			}
		}()
	}

	started := a.now()
	outcome, err := a.rebuild(ctx)
	elapsed := a.now().Sub(started)

	metrics.RecordAggregatorRun(string(outcome))
	metrics.RecordAggregatorDuration(elapsed.Seconds())
	return outcome, err
}

func (a *Aggregator) rebuild(ctx context.Context) (Outcome, error) {
	records, err := a.store.ListRecords(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("aggregator: list records: %w", err)
	}

	ranking.AssignRanks(records)
	histogram := ranking.BuildHistogram(records)
	stats := ranking.Summarize(records)
	stats.ConfigVersion = a.cfg.ConfigVersion
	stats.UpdatedAt = a.now()

	if err := a.store.SaveRankings(ctx, records, histogram, stats); err != nil {
		return OutcomeFailed, fmt.Errorf("aggregator: save rankings: %w", err)
	}

	metrics.UpdateRankedStudents(len(records))
	a.logger.Info("ranking aggregation completed",
		"students", len(records),
		"buckets", len(histogram),
		"mean_composite", stats.MeanComposite,
	)
	return OutcomeCompleted, nil
}
