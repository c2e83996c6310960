package scoring

import (
	"math"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEIGHTED STRATEGY
// ══════════════════════════════════════════════════════════════════════════════

// WeightedScorer computes academic and experience totals as weighted sums of
// normalised per-component sub-scores, then blends them into a composite on a
// 0–1000 scale.
type WeightedScorer struct {
	cfg   Config
	clock func() time.Time
}

// NewWeightedScorer builds a weighted scorer. A nil clock defaults to time.Now.
func NewWeightedScorer(cfg Config, clock func() time.Time) *WeightedScorer {
	if clock == nil {
		clock = time.Now
	}
	return &WeightedScorer{cfg: cfg, clock: clock}
}

// Score implements Scorer.
func (s *WeightedScorer) Score(b profile.Bundle) (Result, error) {
	now := s.clock()

	academic := AcademicComponents{
		UniversityPrestige: scoreUniversityPrestige(b.UniversityTier, b.AcademicYear),
		Grades:             scoreGrades(b.DegreeGrade, b.AcademicYear),
		ALevels:            scoreALevels(b.ALevels),
		GCSEs:              scoreGCSEs(b.GCSECount),
		Awards:             scoreAwards(b.AwardsCount),
	}
	weights := s.effectiveAcademicWeights(b.AcademicYear)
	academicTotal := round3(clamp(
		academic.UniversityPrestige*weights["universityPrestige"] +
			academic.Grades*weights["grades"] +
			academic.ALevels*weights["aLevels"] +
			academic.GCSEs*weights["gcses"] +
			academic.Awards*weights["awards"],
	))

	experience := ExperienceComponents{
		Internships:        s.scoreInternships(b.Internships, now),
		MonthsOfExperience: scoreMonths(b.TotalMonthsExperience),
		SocietyRoles:       scoreSocietyRoles(b.SocietyRoles),
		Certifications:     scoreCertifications(b.CertificationsCount),
		IndustryExposure:   scoreExposure(b.Exposure),
	}
	w := s.cfg.ExperienceWeights
	rawExperience := experience.Internships*w.Internships +
		experience.MonthsOfExperience*w.MonthsOfExperience +
		experience.SocietyRoles*w.SocietyRoles +
		experience.Certifications*w.Certifications +
		experience.IndustryExposure*w.IndustryExposure
	experienceTotal := round3(clamp(rawExperience * (1 + earlyYearBonus(b.AcademicYear))))

	composite := round3(10 * clamp(
		s.cfg.AcademicCompositeWeight*academicTotal+
			s.cfg.ExperienceCompositeWeight*experienceTotal,
	))

	return Result{
		Composite:  composite,
		Academic:   academicTotal,
		Experience: experienceTotal,
		Breakdown: Breakdown{
			AcademicComponents:       academic,
			ExperienceComponents:     experience,
			EffectiveAcademicWeights: weights,
			AcademicTotal:            academicTotal,
			ExperienceTotal:          experienceTotal,
			Composite:                composite,
		},
	}, nil
}

// effectiveAcademicWeights returns the academic weight vector after the
// early-year adjustment: students below year 2 have no meaningful degree
// grade yet, so the grades weight is dropped and the remainder renormalised
// to sum to 1.
func (s *WeightedScorer) effectiveAcademicWeights(academicYear int) map[string]float64 {
	base := s.cfg.AcademicWeights
	weights := map[string]float64{
		"universityPrestige": base.UniversityPrestige,
		"grades":             base.Grades,
		"aLevels":            base.ALevels,
		"gcses":              base.GCSEs,
		"awards":             base.Awards,
	}
	if academicYear >= 2 {
		return weights
	}
	weights["grades"] = 0
	var sum float64
	for _, v := range weights {
		sum += v
	}
	if sum <= 0 {
		return weights
	}
	for k, v := range weights {
		weights[k] = v / sum
	}
	return weights
}

// ──────────────────────────────────────────────────────────────────────────────
// Academic components
// ──────────────────────────────────────────────────────────────────────────────

var universityTierPoints = map[profile.UniversityTier]float64{
	profile.TierOxbridge:    100,
	profile.TierImperialLSE: 90,
	profile.TierUCL:         80,
	profile.TierKCLEdin:     70,
	profile.TierWarwickPlus: 60,
	profile.TierOther:       0,
}

// scoreUniversityPrestige awards base points per tier, lightly compounded by
// academic year: surviving at a prestigious institution is worth more the
// further in the student is.
func scoreUniversityPrestige(tier profile.UniversityTier, academicYear int) float64 {
	base := universityTierPoints[tier]
	year := academicYear
	if year < 0 {
		year = 0
	}
	return clamp(base * (1 + 0.05*float64(year)))
}

var degreeGradePoints = map[profile.DegreeGrade]float64{
	profile.GradeFirst:    100,
	profile.GradeUpperSec: 80,
	profile.GradeLowerSec: 60,
	profile.GradeThird:    40,
	profile.GradeUnknown:  0,
}

func scoreGrades(grade profile.DegreeGrade, academicYear int) float64 {
	if academicYear < 2 {
		return 0
	}
	return degreeGradePoints[grade]
}

var aLevelGradePoints = map[profile.ALevelGrade]float64{
	profile.ALevelAStar: 100,
	profile.ALevelA:     80,
	profile.ALevelB:     60,
	profile.ALevelC:     40,
	profile.ALevelD:     20,
	profile.ALevelE:     10,
}

var aLevelCategoryMultiplier = map[profile.ALevelCategory]float64{
	profile.CategoryFurtherMaths: 1.2,
	profile.CategorySTEM:         1.1,
	profile.CategoryTraditional:  1.0,
	profile.CategoryCreative:     0.9,
}

// scoreALevels averages weighted points across every subject, plus a breadth
// bonus of 5 points per entry beyond the fourth.
func scoreALevels(alevels []profile.ALevel) float64 {
	if len(alevels) == 0 {
		return 0
	}
	var sum float64
	for _, a := range alevels {
		mult, ok := aLevelCategoryMultiplier[a.Category]
		if !ok {
			mult = 1.0
		}
		sum += aLevelGradePoints[a.Grade] * mult
	}
	avg := sum / float64(len(alevels))
	if extra := len(alevels) - 4; extra > 0 {
		avg += 5 * float64(extra)
	}
	return clamp(avg)
}

func scoreGCSEs(numGCSE int) float64 {
	if numGCSE < 0 {
		numGCSE = 0
	}
	if numGCSE > 10 {
		numGCSE = 10
	}
	return float64(numGCSE) * 10
}

// scoreAwards grants 20 points per award up to five, then a token 5 points per
// extra so the component saturates rather than caps abruptly.
func scoreAwards(count int) float64 {
	if count <= 0 {
		return 0
	}
	if count <= 5 {
		return float64(count) * 20
	}
	return clamp(100 + float64(count-5)*5)
}

// ──────────────────────────────────────────────────────────────────────────────
// Experience components
// ──────────────────────────────────────────────────────────────────────────────

var internshipTierPoints = map[profile.InternshipTier]float64{
	profile.InternBulgeBracket:  100,
	profile.InternEliteBoutique: 85,
	profile.InternMiddleMarket:  70,
	profile.InternRegional:      50,
}

// scoreInternships values each internship by tier, duration and recency, then
// combines: a single internship keeps its full value, multiple internships
// sum with diminishing returns (divide by sqrt of count).
func (s *WeightedScorer) scoreInternships(internships []profile.Internship, now time.Time) float64 {
	if len(internships) == 0 {
		return 0
	}
	var sum float64
	for _, in := range internships {
		base := internshipTierPoints[in.Tier]
		value := base * durationMultiplier(in.Months) * s.recencyDecay(in, now)
		sum += value
	}
	if len(internships) == 1 {
		return clamp(sum)
	}
	return clamp(sum / math.Sqrt(float64(len(internships))))
}

// durationMultiplier scales an internship by length: a spell shorter than
// three months earns pro-rata credit, three to six months earns full credit,
// and anything longer decays 5% per extra month down to a floor of 0.5.
func durationMultiplier(months int) float64 {
	switch {
	case months <= 0:
		return 0
	case months < 3:
		return float64(months) / 3
	case months <= 6:
		return 1
	default:
		return math.Max(0.5, 1-0.05*float64(months-6))
	}
}

func (s *WeightedScorer) recencyDecay(in profile.Internship, now time.Time) float64 {
	years := yearsSince(in.EndYear, in.EndMonth, now)
	return math.Pow(s.cfg.InternshipDecayRate, years)
}

// scoreMonths maps cumulative months of experience onto a logarithmic curve:
// the first months matter most, saturating at 100 points by 24 months.
func scoreMonths(months int) float64 {
	if months <= 0 {
		return 0
	}
	m := math.Min(float64(months), 24)
	return clamp(100 * math.Log(1+m) / math.Log(25))
}

var societyRolePoints = map[profile.SocietyRoleTitle]float64{
	profile.RolePresident: 100,
	profile.RoleCommittee: 70,
	profile.RoleMember:    40,
}

var societySizeMultiplier = map[profile.SocietySize]float64{
	profile.SizeLarge:  1.0,
	profile.SizeMedium: 0.8,
	profile.SizeSmall:  0.6,
}

// scoreSocietyRoles averages role points weighted by society size and tenure
// (tenure saturates at three years), with a 5% breadth bonus for holding more
// than one role.
func scoreSocietyRoles(roles []profile.SocietyRole) float64 {
	if len(roles) == 0 {
		return 0
	}
	var sum float64
	for _, r := range roles {
		size, ok := societySizeMultiplier[r.Size]
		if !ok {
			size = 0.6
		}
		years := math.Min(math.Max(float64(r.Years), 0), 3)
		sum += societyRolePoints[r.Role] * size * (years / 3)
	}
	avg := sum / float64(len(roles))
	if len(roles) > 1 {
		avg *= 1.05
	}
	return clamp(avg)
}

func scoreCertifications(count int) float64 {
	if count < 0 {
		count = 0
	}
	if count > 4 {
		count = 4
	}
	return float64(count) * 25
}

var exposurePoints = map[profile.Exposure]float64{
	profile.ExposurePlacement: 100,
	profile.ExposureSummer:    85,
	profile.ExposureSpring:    60,
	profile.ExposureShadowing: 30,
	profile.ExposureNone:      0,
}

func scoreExposure(e profile.Exposure) float64 {
	return exposurePoints[e]
}

// earlyYearBonus rewards students who accumulated experience early: first
// years get 20% on top of raw experience, second years 10%.
func earlyYearBonus(academicYear int) float64 {
	switch {
	case academicYear <= 1:
		return 0.20
	case academicYear == 2:
		return 0.10
	default:
		return 0
	}
}
