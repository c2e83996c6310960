package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GLOBAL STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GlobalStatsDTO is the read-side view of the population statistics plus the
// score distribution.
type GlobalStatsDTO struct {
	TotalStudents int       `json:"total_students"`
	MeanComposite float64   `json:"mean_composite"`
	P50           float64   `json:"p50"`
	P90           float64   `json:"p90"`
	P99           float64   `json:"p99"`
	ConfigVersion string    `json:"config_version"`
	UpdatedAt     time.Time `json:"updated_at"`

	Histogram []HistogramBucketDTO `json:"histogram"`
}

// HistogramBucketDTO is one fixed-width score bucket.
type HistogramBucketDTO struct {
	Bucket int     `json:"bucket_id"`
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Count  int     `json:"count"`
}

// GetGlobalStatsHandler serves the population statistics.
type GetGlobalStatsHandler struct {
	store ranking.Store
}

// NewGetGlobalStatsHandler creates the handler.
func NewGetGlobalStatsHandler(store ranking.Store) *GetGlobalStatsHandler {
	return &GetGlobalStatsHandler{store: store}
}

// Handle returns the latest snapshot. Before the first aggregation pass it
// returns an empty snapshot rather than an error.
func (h *GetGlobalStatsHandler) Handle(ctx context.Context) (*GlobalStatsDTO, error) {
	dto := &GlobalStatsDTO{Histogram: []HistogramBucketDTO{}}

	stats, err := h.store.GetGlobalStats(ctx)
	switch {
	case err == nil:
		dto.TotalStudents = stats.TotalStudents
		dto.MeanComposite = stats.MeanComposite
		dto.P50 = stats.P50
		dto.P90 = stats.P90
		dto.P99 = stats.P99
		dto.ConfigVersion = stats.ConfigVersion
		dto.UpdatedAt = stats.UpdatedAt
	case errors.Is(err, ranking.ErrNotFound):
		// No pass has run yet.
	default:
		return nil, fmt.Errorf("query: get global stats: %w", err)
	}

	hist, err := h.store.ListHistogram(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: list histogram: %w", err)
	}
	for _, b := range hist {
		dto.Histogram = append(dto.Histogram, HistogramBucketDTO{
			Bucket: b.Bucket,
			From:   float64(b.Bucket) * ranking.BucketWidth,
			To:     float64(b.Bucket+1) * ranking.BucketWidth,
			Count:  b.Count,
		})
	}
	return dto, nil
}
