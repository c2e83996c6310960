// Package scoring implements the deterministic score calculators for
// Student Ranking Hub. A scorer maps an immutable profile bundle to academic,
// experience and composite scores plus a per-component breakdown, with no I/O.
//
// Two interchangeable strategies live behind the Scorer interface:
//   - WeightedScorer: the inline weighted-component formula
//   - LookupScorer: the externally-configured band/lookup-table formula
//
// The strategy is selected once at process start from configuration.
package scoring

import (
	"errors"
	"math"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrUnknownStrategy is returned when the configured strategy name is not recognised.
	ErrUnknownStrategy = errors.New("scoring: unknown strategy")

	// ErrConfigUnavailable is returned when the scoring configuration cannot be loaded.
	ErrConfigUnavailable = errors.New("scoring: configuration unavailable")
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT TYPES
// ══════════════════════════════════════════════════════════════════════════════

// AcademicComponents holds the per-component academic sub-scores, each in [0,100].
type AcademicComponents struct {
	UniversityPrestige float64 `json:"universityPrestige"`
	Grades             float64 `json:"grades"`
	ALevels            float64 `json:"aLevels"`
	GCSEs              float64 `json:"gcses"`
	Awards             float64 `json:"awards"`
}

// ExperienceComponents holds the per-component experience sub-scores, each in [0,100].
type ExperienceComponents struct {
	Internships        float64 `json:"internships"`
	MonthsOfExperience float64 `json:"monthsOfExperience"`
	SocietyRoles       float64 `json:"societyRoles"`
	Certifications     float64 `json:"certifications"`
	IndustryExposure   float64 `json:"industryExposure"`
}

// Breakdown is the full component breakdown persisted alongside the ranking row.
type Breakdown struct {
	AcademicComponents       AcademicComponents   `json:"academic_components"`
	ExperienceComponents     ExperienceComponents `json:"experience_components"`
	EffectiveAcademicWeights map[string]float64   `json:"effective_academic_weights"`
	AcademicTotal            float64              `json:"academic_total"`
	ExperienceTotal          float64              `json:"experience_total"`
	Composite                float64              `json:"composite"`
}

// Result is the output of one scoring pass.
// Academic and Experience are in [0,100]; Composite is in [0,1000].
type Result struct {
	Composite  float64   `json:"composite"`
	Academic   float64   `json:"academic"`
	Experience float64   `json:"experience"`
	Breakdown  Breakdown `json:"breakdown"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORER INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Scorer computes scores for a profile bundle. Implementations must be pure:
// identical input yields bit-identical output on every call.
type Scorer interface {
	Score(bundle profile.Bundle) (Result, error)
}

// Strategy names accepted by New.
const (
	StrategyWeighted = "weighted"
	StrategyLookup   = "lookup"
)

// New constructs the scorer named by strategy.
// The clock is only consulted for internship time-decay (elapsed years from
// each internship's stated end date); injecting it keeps the scorer
// reproducible under test.
func New(strategy string, cfg Config, clock func() time.Time) (Scorer, error) {
	if clock == nil {
		clock = time.Now
	}
	switch strategy {
	case StrategyWeighted:
		return NewWeightedScorer(cfg, clock), nil
	case StrategyLookup:
		return NewLookupScorer(cfg, DefaultLookupTables(), clock), nil
	default:
		return nil, ErrUnknownStrategy
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// AcademicWeights is the base academic weight vector. Weights sum to 1.
type AcademicWeights struct {
	UniversityPrestige float64
	Grades             float64
	ALevels            float64
	GCSEs              float64
	Awards             float64
}

// ExperienceWeights is the experience weight vector. Weights sum to 1.
type ExperienceWeights struct {
	Internships        float64
	MonthsOfExperience float64
	SocietyRoles       float64
	Certifications     float64
	IndustryExposure   float64
}

// Config is the immutable scoring configuration in effect for a compute run.
// Version tags every persisted result so historic scores stay attributable
// to the weights that produced them.
type Config struct {
	Version           string
	AcademicWeights   AcademicWeights
	ExperienceWeights ExperienceWeights

	// AcademicCompositeWeight and ExperienceCompositeWeight combine the two
	// totals into the composite. They sum to 1.
	AcademicCompositeWeight   float64
	ExperienceCompositeWeight float64

	// InternshipDecayRate is the per-year decay base applied to internship
	// points (0.9 means an internship loses 10% of its value per elapsed year).
	InternshipDecayRate float64
}

// DefaultConfig returns the standard weighted-formula configuration.
func DefaultConfig(version string) Config {
	return Config{
		Version: version,
		AcademicWeights: AcademicWeights{
			UniversityPrestige: 0.35,
			Grades:             0.25,
			ALevels:            0.20,
			GCSEs:              0.10,
			Awards:             0.10,
		},
		ExperienceWeights: ExperienceWeights{
			Internships:        0.40,
			MonthsOfExperience: 0.20,
			SocietyRoles:       0.20,
			Certifications:     0.10,
			IndustryExposure:   0.10,
		},
		AcademicCompositeWeight:   0.40,
		ExperienceCompositeWeight: 0.60,
		InternshipDecayRate:       0.90,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// clamp bounds v to [0,100].
func clamp(v float64) float64 {
	return clampTo(v, 0, 100)
}

func clampTo(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round3 rounds to 3 decimals with a small epsilon offset so that values
// sitting exactly on a rounding boundary (x.xx5) round up instead of being
// truncated by binary floating point representation.
func round3(v float64) float64 {
	return math.Round((v+1e-9)*1000) / 1000
}

// yearsSince returns the fractional years elapsed from an internship's end
// date to now, never negative. End dates are anchored to the first day of the
// stated month.
func yearsSince(endYear, endMonth int, now time.Time) float64 {
	if endMonth < 1 || endMonth > 12 {
		endMonth = 6
	}
	end := time.Date(endYear, time.Month(endMonth), 1, 0, 0, 0, 0, time.UTC)
	years := now.UTC().Sub(end).Hours() / (24 * 365.25)
	if years < 0 {
		return 0
	}
	return years
}
