package ranking

import (
	"context"

	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

// Store is the persistence port for ranking rows, breakdowns, the histogram
// and global statistics. The Postgres implementation lives in
// internal/infrastructure/persistence/postgres.
type Store interface {
	// GetRecord returns the ranking row for a user, or ErrNotFound.
	GetRecord(ctx context.Context, userID string) (Record, error)

	// GetBreakdown returns the stored component breakdown for a user, or
	// ErrNoBreakdown.
	GetBreakdown(ctx context.Context, userID string) (scoring.Breakdown, error)

	// ApplyUpsert atomically writes one scoring pass: the ranking row, its
	// breakdown, a history entry, the incremental histogram adjustment and an
	// audit log row. Either all land or none do.
	ApplyUpsert(ctx context.Context, up Upsert) error

	// ListRecords returns every ranking record, in no particular order.
	ListRecords(ctx context.Context) ([]Record, error)

	// SaveRankings rewrites rank positions and percentiles for the given
	// records in one transaction, replaces the histogram with the supplied
	// buckets and stores the global stats row.
	SaveRankings(ctx context.Context, records []Record, histogram []HistogramBucket, stats GlobalStats) error

	// ListHistogram returns the current histogram sorted by bucket index.
	ListHistogram(ctx context.Context) ([]HistogramBucket, error)

	// GetGlobalStats returns the latest global statistics snapshot, or
	// ErrNotFound when no aggregation pass has run yet.
	GetGlobalStats(ctx context.Context) (GlobalStats, error)

	// MarkVerified flips the verification flag on an existing record.
	// Missing records are not an error: the flag is applied when the row is
	// eventually written.
	MarkVerified(ctx context.Context, userID string) error
}
