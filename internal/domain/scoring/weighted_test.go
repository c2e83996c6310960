package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func newWeighted(t *testing.T) *WeightedScorer {
	t.Helper()
	return NewWeightedScorer(DefaultConfig("v1"), fixedClock)
}

func TestWeightedScorer_Deterministic(t *testing.T) {
	scorer := newWeighted(t)
	bundle := profile.Bundle{
		UserID:         "u-1",
		AcademicYear:   2,
		UniversityTier: profile.TierUCL,
		DegreeGrade:    profile.GradeUpperSec,
		ALevels: []profile.ALevel{
			{Grade: profile.ALevelA, Category: profile.CategorySTEM},
			{Grade: profile.ALevelB, Category: profile.CategoryTraditional},
			{Grade: profile.ALevelAStar, Category: profile.CategoryFurtherMaths},
		},
		GCSECount:             9,
		AwardsCount:           1,
		Internships:           []profile.Internship{{Tier: profile.InternMiddleMarket, Months: 3, EndYear: 2025, EndMonth: 9}},
		TotalMonthsExperience: 3,
		SocietyRoles:          []profile.SocietyRole{{Role: profile.RoleCommittee, Size: profile.SizeMedium, Years: 2}},
		CertificationsCount:   1,
		Exposure:              profile.ExposureSpring,
	}

	first, err := scorer.Score(bundle)
	require.NoError(t, err)
	second, err := scorer.Score(bundle)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWeightedScorer_Bounds(t *testing.T) {
	scorer := newWeighted(t)

	maxed := profile.Bundle{
		UserID:         "u-max",
		AcademicYear:   3,
		UniversityTier: profile.TierOxbridge,
		DegreeGrade:    profile.GradeFirst,
		ALevels: []profile.ALevel{
			{Grade: profile.ALevelAStar, Category: profile.CategoryFurtherMaths},
			{Grade: profile.ALevelAStar, Category: profile.CategoryFurtherMaths},
			{Grade: profile.ALevelAStar, Category: profile.CategoryFurtherMaths},
		},
		GCSECount:   12,
		AwardsCount: 20,
		Internships: []profile.Internship{
			{Tier: profile.InternBulgeBracket, Months: 6, EndYear: 2026, EndMonth: 2},
		},
		TotalMonthsExperience: 48,
		SocietyRoles: []profile.SocietyRole{
			{Role: profile.RolePresident, Size: profile.SizeLarge, Years: 3},
			{Role: profile.RolePresident, Size: profile.SizeLarge, Years: 3},
		},
		CertificationsCount: 10,
		Exposure:            profile.ExposurePlacement,
	}

	for name, bundle := range map[string]profile.Bundle{
		"empty": profile.Default("u-empty"),
		"maxed": maxed,
	} {
		res, err := scorer.Score(bundle)
		require.NoError(t, err, name)

		assert.GreaterOrEqual(t, res.Academic, 0.0, name)
		assert.LessOrEqual(t, res.Academic, 100.0, name)
		assert.GreaterOrEqual(t, res.Experience, 0.0, name)
		assert.LessOrEqual(t, res.Experience, 100.0, name)
		assert.GreaterOrEqual(t, res.Composite, 0.0, name)
		assert.LessOrEqual(t, res.Composite, 1000.0, name)
	}
}

func TestWeightedScorer_EmptyBundleScoresZero(t *testing.T) {
	scorer := newWeighted(t)

	res, err := scorer.Score(profile.Default("u-new"))
	require.NoError(t, err)

	assert.Zero(t, res.Academic)
	assert.Zero(t, res.Experience)
	assert.Zero(t, res.Composite)
}

func TestWeightedScorer_EarlyYearWeightRedistribution(t *testing.T) {
	scorer := newWeighted(t)

	firstYear := profile.Bundle{
		UserID:         "u-y1",
		AcademicYear:   1,
		UniversityTier: profile.TierOxbridge,
		DegreeGrade:    profile.GradeFirst, // must be ignored below year 2
		ALevels: []profile.ALevel{
			{Grade: profile.ALevelA, Category: profile.CategorySTEM},
			{Grade: profile.ALevelA, Category: profile.CategorySTEM},
			{Grade: profile.ALevelA, Category: profile.CategorySTEM},
		},
		GCSECount:   10,
		AwardsCount: 2,
		Exposure:    profile.ExposureNone,
	}

	res, err := scorer.Score(firstYear)
	require.NoError(t, err)

	weights := res.Breakdown.EffectiveAcademicWeights
	assert.Zero(t, weights["grades"])
	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Zero(t, res.Breakdown.AcademicComponents.Grades)

	// uni 100 (capped), alevels 88 (A=80 x STEM 1.1), gcses 100, awards 40;
	// weights renormalised over {.35,.20,.10,.10}.
	assert.InDelta(t, 88.8, res.Academic, 1e-6)
	assert.InDelta(t, 355.2, res.Composite, 1e-6)
}

func TestWeightedScorer_GradesCountFromYearTwo(t *testing.T) {
	scorer := newWeighted(t)

	bundle := profile.Default("u-y2")
	bundle.AcademicYear = 2
	bundle.DegreeGrade = profile.GradeFirst

	res, err := scorer.Score(bundle)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, res.Breakdown.EffectiveAcademicWeights["grades"], 1e-9)
	assert.InDelta(t, 25.0, res.Academic, 1e-6)
	assert.InDelta(t, 100.0, res.Composite, 1e-6)
}

func TestWeightedScorer_GradeBandPoints(t *testing.T) {
	scorer := newWeighted(t)

	tests := []struct {
		grade profile.DegreeGrade
		want  float64
	}{
		{profile.GradeFirst, 100},
		{profile.GradeUpperSec, 80},
		{profile.GradeLowerSec, 60},
		{profile.GradeThird, 40},
		{profile.GradeUnknown, 0},
	}
	for _, tt := range tests {
		bundle := profile.Default("u-grade")
		bundle.AcademicYear = 2
		bundle.DegreeGrade = tt.grade

		res, err := scorer.Score(bundle)
		require.NoError(t, err)

		assert.InDelta(t, tt.want, res.Breakdown.AcademicComponents.Grades, 1e-9, "grade=%s", tt.grade)
	}
}

func TestWeightedScorer_ALevelAverageAndBreadthBonus(t *testing.T) {
	scorer := newWeighted(t)

	score := func(alevels []profile.ALevel) float64 {
		bundle := profile.Default("u-alevels")
		bundle.ALevels = alevels
		res, err := scorer.Score(bundle)
		require.NoError(t, err)
		return res.Breakdown.AcademicComponents.ALevels
	}

	aGrade := profile.ALevel{Grade: profile.ALevelA, Category: profile.CategoryTraditional}
	eGrade := profile.ALevel{Grade: profile.ALevelE, Category: profile.CategoryTraditional}

	// Four entries or fewer: plain average, no bonus.
	assert.InDelta(t, 80.0, score([]profile.ALevel{aGrade, aGrade, aGrade, aGrade}), 1e-9)

	// Fifth entry earns +5 on top of the average of all five.
	assert.InDelta(t, 85.0, score([]profile.ALevel{aGrade, aGrade, aGrade, aGrade, aGrade}), 1e-9)

	// A weak subject drags the average down; it is not dropped.
	assert.InDelta(t, 71.0, score([]profile.ALevel{aGrade, aGrade, aGrade, aGrade, eGrade}), 1e-9)
}

func TestWeightedScorer_MonthsMonotonic(t *testing.T) {
	scorer := newWeighted(t)

	prev := -1.0
	for _, months := range []int{0, 1, 3, 6, 12, 24, 36} {
		bundle := profile.Default("u-months")
		bundle.TotalMonthsExperience = months

		res, err := scorer.Score(bundle)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, res.Experience, prev, "months=%d", months)
		prev = res.Experience
	}
}

func TestWeightedScorer_InternshipRecencyDecay(t *testing.T) {
	scorer := newWeighted(t)

	score := func(endYear int) float64 {
		bundle := profile.Default("u-intern")
		bundle.Internships = []profile.Internship{
			{Tier: profile.InternBulgeBracket, Months: 3, EndYear: endYear, EndMonth: 2},
		}
		res, err := scorer.Score(bundle)
		require.NoError(t, err)
		return res.Experience
	}

	recent := score(2026)
	stale := score(2023)
	assert.Greater(t, recent, stale)

	// Three full years at 0.9/year.
	assert.InDelta(t, recent*0.9*0.9*0.9, stale, 0.01)
}

func TestWeightedScorer_MultipleInternshipsDiminish(t *testing.T) {
	scorer := newWeighted(t)
	stint := profile.Internship{Tier: profile.InternEliteBoutique, Months: 3, EndYear: 2026, EndMonth: 2}

	one := profile.Default("u-one")
	one.Internships = []profile.Internship{stint}
	two := profile.Default("u-two")
	two.Internships = []profile.Internship{stint, stint}

	resOne, err := scorer.Score(one)
	require.NoError(t, err)
	resTwo, err := scorer.Score(two)
	require.NoError(t, err)

	// More internships help, but less than linearly.
	assert.Greater(t, resTwo.Experience, resOne.Experience)
	assert.Less(t, resTwo.Experience, 2*resOne.Experience)
}

func TestWeightedScorer_EarlyYearExperienceBonus(t *testing.T) {
	scorer := newWeighted(t)

	score := func(year int) float64 {
		bundle := profile.Default("u-bonus")
		bundle.AcademicYear = year
		bundle.TotalMonthsExperience = 6
		res, err := scorer.Score(bundle)
		require.NoError(t, err)
		return res.Experience
	}

	y1, y2, y3 := score(1), score(2), score(3)
	assert.InDelta(t, y3*1.2, y1, 0.01)
	assert.InDelta(t, y3*1.1, y2, 0.01)
}

func TestDurationMultiplier(t *testing.T) {
	tests := []struct {
		months int
		want   float64
	}{
		{0, 0},
		{1, 1.0 / 3},
		{2, 2.0 / 3},
		{3, 1},
		{6, 1},
		{8, 0.9},
		{16, 0.5},
		{24, 0.5}, // floor
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, durationMultiplier(tt.months), 1e-9, "months=%d", tt.months)
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New("quantile", DefaultConfig("v1"), fixedClock)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}
