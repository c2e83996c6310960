// Package ranking holds the read-side model of the leaderboard: persisted
// per-student ranking records, the score histogram, global statistics and the
// deterministic ordering that turns raw composites into rank positions.
package ranking

import (
	"errors"
	"sort"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotFound is returned when no ranking record exists for a user.
	ErrNotFound = errors.New("ranking: record not found")

	// ErrNoBreakdown is returned when a record exists but its component
	// breakdown row is missing.
	ErrNoBreakdown = errors.New("ranking: breakdown not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// Record is one student's persisted ranking row.
type Record struct {
	UserID          string
	CompositeScore  float64
	AcademicScore   float64
	ExperienceScore float64
	RankPosition    int
	Percentile      float64
	ScoreChecksum   string
	ConfigVersion   string
	ComputeRunID    string
	IsVerified      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistogramBucket is one bar of the score distribution. Bucket is the index
// floor(composite/width); Count is how many students fall inside it.
type HistogramBucket struct {
	Bucket int
	Count  int
}

// GlobalStats is the aggregate snapshot rebuilt on every aggregation pass.
type GlobalStats struct {
	TotalStudents int
	MeanComposite float64
	P50           float64
	P90           float64
	P99           float64
	ConfigVersion string
	UpdatedAt     time.Time
}

// UpdateReason classifies why a ranking row changed. The values are persisted
// in the audit log, so they are part of the storage contract.
type UpdateReason string

const (
	ReasonStudentUpdated UpdateReason = "student_updated"
	ReasonUserCreated    UpdateReason = "user_created"
	ReasonUserVerified   UpdateReason = "user_verified"
	ReasonManual         UpdateReason = "manual"
)

// AuditEntry is one row of the ranking_updates_log table. OldComposite is nil
// for a user's first ever scoring pass.
type AuditEntry struct {
	ID           int64
	UserID       string
	Reason       UpdateReason
	OldComposite *float64
	NewComposite float64
	Delta        *float64
	CreatedAt    time.Time
}

// Upsert bundles everything persisted atomically after one scoring pass.
type Upsert struct {
	UserID       string
	Result       scoring.Result
	Checksum     string
	Version      string
	ComputeRunID string
	IsVerified   bool
	Reason       UpdateReason
}

// ══════════════════════════════════════════════════════════════════════════════
// DETERMINISTIC ORDERING
// ══════════════════════════════════════════════════════════════════════════════

// Sort orders records into the canonical rank order:
// composite descending, then experience descending, then most recently
// updated first, then user id ascending. Applying it to the same set always
// yields the same sequence, so rank positions are reproducible.
func Sort(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.ExperienceScore != b.ExperienceScore {
			return a.ExperienceScore > b.ExperienceScore
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.UserID < b.UserID
	})
}

// AssignRanks sorts records in place and stamps RankPosition (1-based) and
// exact Percentile (share of students strictly below, as a percentage).
func AssignRanks(records []Record) {
	Sort(records)
	n := len(records)
	for i := range records {
		records[i].RankPosition = i + 1
		if n <= 1 {
			records[i].Percentile = round2(100)
			continue
		}
		below := n - 1 - i
		records[i].Percentile = round2(float64(below) / float64(n) * 100)
	}
}
