package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

func newLookup(t *testing.T) *LookupScorer {
	t.Helper()
	return NewLookupScorer(DefaultConfig("v1"), DefaultLookupTables(), fixedClock)
}

func TestALevelBand(t *testing.T) {
	al := func(grades ...profile.ALevelGrade) []profile.ALevel {
		out := make([]profile.ALevel, len(grades))
		for i, g := range grades {
			out[i] = profile.ALevel{Grade: g, Category: profile.CategoryTraditional}
		}
		return out
	}

	tests := []struct {
		name    string
		alevels []profile.ALevel
		want    string
	}{
		{"unsorted input", al(profile.ALevelA, profile.ALevelAStar, profile.ALevelA), "A*AA"},
		{"top three of four", al(profile.ALevelE, profile.ALevelA, profile.ALevelA, profile.ALevelA), "AAA"},
		{"triple a-star", al(profile.ALevelAStar, profile.ALevelAStar, profile.ALevelAStar), "A*A*A*"},
		{"bbc", al(profile.ALevelB, profile.ALevelC, profile.ALevelB), "BBC"},
		{"off ladder", al(profile.ALevelC, profile.ALevelD, profile.ALevelE), "Other"},
		{"too few", al(profile.ALevelAStar, profile.ALevelAStar), "Other"},
		{"none", nil, "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ALevelBand(tt.alevels))
		})
	}
}

func TestBandValue(t *testing.T) {
	bands := DefaultLookupTables().MonthBands

	assert.Equal(t, 0.0, bandValue(bands, 0))
	assert.Equal(t, 4.0, bandValue(bands, 1))
	assert.Equal(t, 4.0, bandValue(bands, 2))
	assert.Equal(t, 9.0, bandValue(bands, 5))
	assert.Equal(t, 13.0, bandValue(bands, 11))
	assert.Equal(t, 17.0, bandValue(bands, 23))
	assert.Equal(t, 20.0, bandValue(bands, 48))
}

func TestLookupScorer_Bounds(t *testing.T) {
	scorer := newLookup(t)

	maxed := profile.Bundle{
		UserID:         "u-max",
		AcademicYear:   3,
		UniversityTier: profile.TierOxbridge,
		DegreeGrade:    profile.GradeFirst,
		ALevels: []profile.ALevel{
			{Grade: profile.ALevelAStar}, {Grade: profile.ALevelAStar}, {Grade: profile.ALevelAStar},
		},
		GCSECount:             11,
		AwardsCount:           9,
		Internships:           []profile.Internship{{Tier: profile.InternBulgeBracket, Months: 6, EndYear: 2026, EndMonth: 2}},
		TotalMonthsExperience: 30,
		SocietyRoles:          []profile.SocietyRole{{Role: profile.RolePresident, Size: profile.SizeLarge, Years: 3}},
		CertificationsCount:   6,
		Exposure:              profile.ExposurePlacement,
	}

	res, err := scorer.Score(maxed)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, res.Academic, 1e-9)
	assert.InDelta(t, 100.0, res.Experience, 1e-9)
	assert.InDelta(t, 1000.0, res.Composite, 1e-9)

	empty, err := scorer.Score(profile.Default("u-empty"))
	require.NoError(t, err)
	assert.Zero(t, empty.Composite)
}

func TestLookupScorer_NoALevelsScoreNothing(t *testing.T) {
	scorer := newLookup(t)

	none, err := scorer.Score(profile.Default("u-none"))
	require.NoError(t, err)
	assert.Zero(t, none.Breakdown.AcademicComponents.ALevels)
	assert.Zero(t, none.Composite)

	// Off-ladder grades still land in the "Other" band.
	offLadder := profile.Default("u-other")
	offLadder.ALevels = []profile.ALevel{
		{Grade: profile.ALevelD}, {Grade: profile.ALevelE}, {Grade: profile.ALevelE},
	}
	res, err := scorer.Score(offLadder)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, res.Breakdown.AcademicComponents.ALevels, 1e-9)
}

func TestLookupScorer_BestInternshipWins(t *testing.T) {
	scorer := newLookup(t)

	bundle := profile.Default("u-best")
	bundle.AcademicYear = 3 // no experience bonus
	bundle.Internships = []profile.Internship{
		{Tier: profile.InternRegional, Months: 3, EndYear: 2026, EndMonth: 1},
		{Tier: profile.InternBulgeBracket, Months: 3, EndYear: 2026, EndMonth: 1},
	}

	res, err := scorer.Score(bundle)
	require.NoError(t, err)

	// Only the bulge-bracket stint counts, undecayed (under a year old).
	assert.InDelta(t, 40.0, res.Breakdown.ExperienceComponents.Internships, 1e-9)
}

func TestLookupScorer_InternshipWholeYearDecay(t *testing.T) {
	scorer := newLookup(t)

	bundle := profile.Default("u-decay")
	bundle.AcademicYear = 3
	bundle.Internships = []profile.Internship{
		{Tier: profile.InternBulgeBracket, Months: 3, EndYear: 2024, EndMonth: 1},
	}

	res, err := scorer.Score(bundle)
	require.NoError(t, err)

	// Two full elapsed years at 15% per year: 40 x 0.85^2.
	assert.InDelta(t, 28.9, res.Breakdown.ExperienceComponents.Internships, 1e-9)
}

func TestLookupScorer_GradesIgnoredBeforeYearTwo(t *testing.T) {
	scorer := newLookup(t)

	bundle := profile.Default("u-y1")
	bundle.AcademicYear = 1
	bundle.DegreeGrade = profile.GradeFirst

	res, err := scorer.Score(bundle)
	require.NoError(t, err)
	assert.Zero(t, res.Breakdown.AcademicComponents.Grades)
}

func TestLookupAndWeightedAgreeOnOrdering(t *testing.T) {
	// The two strategies need not produce equal numbers, but a clearly
	// stronger profile must outrank a clearly weaker one under both.
	weighted := newWeighted(t)
	lookup := newLookup(t)

	strong := profile.Bundle{
		UserID:         "u-strong",
		AcademicYear:   3,
		UniversityTier: profile.TierOxbridge,
		DegreeGrade:    profile.GradeFirst,
		ALevels: []profile.ALevel{
			{Grade: profile.ALevelAStar, Category: profile.CategorySTEM},
			{Grade: profile.ALevelAStar, Category: profile.CategorySTEM},
			{Grade: profile.ALevelA, Category: profile.CategorySTEM},
		},
		GCSECount:             10,
		AwardsCount:           3,
		Internships:           []profile.Internship{{Tier: profile.InternBulgeBracket, Months: 3, EndYear: 2025, EndMonth: 9}},
		TotalMonthsExperience: 12,
		SocietyRoles:          []profile.SocietyRole{{Role: profile.RolePresident, Size: profile.SizeLarge, Years: 2}},
		CertificationsCount:   2,
		Exposure:              profile.ExposureSummer,
	}
	weak := profile.Default("u-weak")
	weak.AcademicYear = 3

	for name, scorer := range map[string]Scorer{"weighted": weighted, "lookup": lookup} {
		strongRes, err := scorer.Score(strong)
		require.NoError(t, err, name)
		weakRes, err := scorer.Score(weak)
		require.NoError(t, err, name)
		assert.Greater(t, strongRes.Composite, weakRes.Composite, name)
	}
}
