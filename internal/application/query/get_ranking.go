// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANKING QUERY
// Returns one student's scores, rank and approximate percentile. The
// percentile is estimated from the histogram so it stays fresh between
// aggregation passes, while the rank field reflects the last completed pass.
// ══════════════════════════════════════════════════════════════════════════════

// GetRankingQuery identifies the student to look up.
type GetRankingQuery struct {
	UserID string

	// IncludeBreakdown requests the per-component details alongside the
	// scores. Callers gate it per user.
	IncludeBreakdown bool
}

// Validate checks the query parameters.
func (q *GetRankingQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id must be provided")
	}
	return nil
}

// RankingDTO is the read-side view of one student's ranking.
type RankingDTO struct {
	// UserID identifies the student.
	UserID string `json:"user_id"`

	// Composite is the overall score on the 0..1000 scale.
	Composite float64 `json:"composite"`

	// Academic and Experience are the 0..100 sub-scores.
	Academic   float64 `json:"academic"`
	Experience float64 `json:"experience"`

	// Rank is the position from the last aggregation pass; nil before the
	// first pass covers this student.
	Rank *int `json:"rank"`

	// Percentile is the histogram-based estimate, 0..100.
	Percentile float64 `json:"percentile"`

	// OutOf is the population size from the last aggregation pass.
	OutOf int `json:"out_of"`

	// IsVerified reports whether the durable row is verified.
	IsVerified bool `json:"is_verified"`

	// ConfigVersion is the scoring configuration that produced the scores.
	ConfigVersion string `json:"config_version"`

	// UpdatedAt is when the score was last recomputed.
	UpdatedAt time.Time `json:"updated_at"`

	// Breakdown carries the per-component details when stored.
	Breakdown *scoring.Breakdown `json:"breakdown,omitempty"`
}

// GetRankingHandler serves GetRankingQuery.
type GetRankingHandler struct {
	store ranking.Store
}

// NewGetRankingHandler creates the handler.
func NewGetRankingHandler(store ranking.Store) *GetRankingHandler {
	return &GetRankingHandler{store: store}
}

// Handle resolves the query. It returns ranking.ErrNotFound when the user
// has no ranking row yet.
func (h *GetRankingHandler) Handle(ctx context.Context, q GetRankingQuery) (*RankingDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rec, err := h.store.GetRecord(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("query: get ranking record: %w", err)
	}

	dto := &RankingDTO{
		UserID:        rec.UserID,
		Composite:     rec.CompositeScore,
		Academic:      rec.AcademicScore,
		Experience:    rec.ExperienceScore,
		IsVerified:    rec.IsVerified,
		ConfigVersion: rec.ConfigVersion,
		UpdatedAt:     rec.UpdatedAt,
	}
	if rec.RankPosition > 0 {
		rank := rec.RankPosition
		dto.Rank = &rank
	}

	// Percentile comes from the histogram, not the stored per-record value:
	// the histogram is maintained incrementally on every write and is
	// therefore fresher between aggregation passes.
	hist, err := h.store.ListHistogram(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: list histogram: %w", err)
	}
	dto.Percentile = ranking.EstimatePercentile(hist, rec.CompositeScore)

	if stats, err := h.store.GetGlobalStats(ctx); err == nil {
		dto.OutOf = stats.TotalStudents
	} else if !errors.Is(err, ranking.ErrNotFound) {
		return nil, fmt.Errorf("query: get global stats: %w", err)
	}

	if q.IncludeBreakdown {
		breakdown, err := h.store.GetBreakdown(ctx, q.UserID)
		switch {
		case err == nil:
			dto.Breakdown = &breakdown
		case errors.Is(err, ranking.ErrNoBreakdown):
			// Older rows may predate breakdown storage.
		default:
			return nil, fmt.Errorf("query: get breakdown: %w", err)
		}
	}

	return dto, nil
}
