// Package jobs contains the scheduled job implementations of the ranking
// pipeline.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/application/aggregator"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE RANKINGS JOB
// ══════════════════════════════════════════════════════════════════════════════

// AggregateRankingsJob wraps the ranking aggregator for the scheduler: every
// run recomputes rank positions, percentiles, the histogram and global
// statistics from the full stored population. Cross-process exclusivity is
// handled inside the aggregator by its singleflight lock, so overlapping
// schedules across instances are safe.
type AggregateRankingsJob struct {
	agg    *aggregator.Aggregator
	logger *slog.Logger

	lastStats atomic.Value // *AggregateStats
}

// AggregateStats describes the most recent run of the job.
type AggregateStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Outcome     aggregator.Outcome
}

// NewAggregateRankingsJob creates the job.
func NewAggregateRankingsJob(agg *aggregator.Aggregator, logger *slog.Logger) *AggregateRankingsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateRankingsJob{agg: agg, logger: logger}
}

// Name returns the job name.
func (j *AggregateRankingsJob) Name() string {
	return "aggregate_rankings"
}

// Description returns a human-readable description.
func (j *AggregateRankingsJob) Description() string {
	return "Recomputes global rank positions, percentiles, histogram and statistics"
}

// Run executes one aggregation cycle. A skipped cycle (lock held elsewhere)
// is success, not failure.
func (j *AggregateRankingsJob) Run(ctx context.Context) error {
	startedAt := time.Now()

	outcome, err := j.agg.Run(ctx)

	completedAt := time.Now()
	j.lastStats.Store(&AggregateStats{
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Outcome:     outcome,
	})

	if err != nil {
		return fmt.Errorf("aggregate rankings: %w", err)
	}
	return nil
}

// LastStats returns the stats of the most recent run, or nil before the
// first one.
func (j *AggregateRankingsJob) LastStats() *AggregateStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*AggregateStats)
	}
	return nil
}
