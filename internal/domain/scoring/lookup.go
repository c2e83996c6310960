package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOOKUP STRATEGY
// ══════════════════════════════════════════════════════════════════════════════

// LookupTables carries the band-to-points mappings for the lookup strategy.
// The tables are data, not code: an operator can substitute a different set at
// process start without touching the formula.
type LookupTables struct {
	University map[profile.UniversityTier]float64
	// ALevelBands maps an aggregate best-three band (e.g. "A*AA") to points.
	ALevelBands map[string]float64
	// GCSEBands maps an inclusive lower bound of GCSE count to points; the
	// highest bound not exceeding the count wins.
	GCSEBands map[int]float64
	Grades    map[profile.DegreeGrade]float64
	// AwardPoints is granted per award up to AwardCap awards.
	AwardPoints float64
	AwardCap    int

	InternshipTiers map[profile.InternshipTier]float64
	// MonthBands maps an inclusive lower bound of cumulative months to points.
	MonthBands map[int]float64
	Societies  map[profile.SocietyRoleTitle]float64
	// CertPoints is granted per certification up to CertCap.
	CertPoints float64
	CertCap    int
	Exposure   map[profile.Exposure]float64
}

// DefaultLookupTables returns the standard band tables.
// Each component group sums to at most 100 points per side.
func DefaultLookupTables() LookupTables {
	return LookupTables{
		University: map[profile.UniversityTier]float64{
			profile.TierOxbridge:    35,
			profile.TierImperialLSE: 31,
			profile.TierUCL:         28,
			profile.TierKCLEdin:     24,
			profile.TierWarwickPlus: 21,
			profile.TierOther:       0,
		},
		ALevelBands: map[string]float64{
			"A*A*A*": 20,
			"A*A*A":  19,
			"A*AA":   18,
			"AAA":    16,
			"AAB":    14,
			"ABB":    12,
			"BBB":    10,
			"BBC":    8,
			"Other":  4,
		},
		GCSEBands: map[int]float64{
			10: 10,
			8:  8,
			6:  6,
			4:  4,
			1:  2,
			0:  0,
		},
		Grades: map[profile.DegreeGrade]float64{
			profile.GradeFirst:    25,
			profile.GradeUpperSec: 19,
			profile.GradeLowerSec: 12,
			profile.GradeThird:    6,
			profile.GradeUnknown:  0,
		},
		AwardPoints: 2,
		AwardCap:    5,
		InternshipTiers: map[profile.InternshipTier]float64{
			profile.InternBulgeBracket:  40,
			profile.InternEliteBoutique: 34,
			profile.InternMiddleMarket:  28,
			profile.InternRegional:      20,
		},
		MonthBands: map[int]float64{
			24: 20,
			12: 17,
			6:  13,
			3:  9,
			1:  4,
			0:  0,
		},
		Societies: map[profile.SocietyRoleTitle]float64{
			profile.RolePresident: 20,
			profile.RoleCommittee: 14,
			profile.RoleMember:    8,
		},
		CertPoints: 2.5,
		CertCap:    4,
		Exposure: map[profile.Exposure]float64{
			profile.ExposurePlacement: 10,
			profile.ExposureSummer:    8,
			profile.ExposureSpring:    6,
			profile.ExposureShadowing: 3,
			profile.ExposureNone:      0,
		},
	}
}

// LookupScorer scores a bundle by reducing each profile dimension to a band
// and summing the band points from its tables. Compared with the weighted
// strategy it trades resolution for auditable, operator-editable mappings.
type LookupScorer struct {
	cfg    Config
	tables LookupTables
	clock  func() time.Time
}

// NewLookupScorer builds a lookup scorer over the given tables.
func NewLookupScorer(cfg Config, tables LookupTables, clock func() time.Time) *LookupScorer {
	if clock == nil {
		clock = time.Now
	}
	return &LookupScorer{cfg: cfg, tables: tables, clock: clock}
}

// Score implements Scorer.
func (s *LookupScorer) Score(b profile.Bundle) (Result, error) {
	t := s.tables

	academic := AcademicComponents{
		UniversityPrestige: t.University[b.UniversityTier],
		Grades:             s.gradePoints(b),
		ALevels:            s.aLevelPoints(b.ALevels),
		GCSEs:              bandValue(t.GCSEBands, b.GCSECount),
		Awards:             t.AwardPoints * float64(minInt(maxInt(b.AwardsCount, 0), t.AwardCap)),
	}
	academicTotal := round3(clamp(academic.UniversityPrestige + academic.Grades +
		academic.ALevels + academic.GCSEs + academic.Awards))

	experience := ExperienceComponents{
		Internships:        s.internshipPoints(b.Internships),
		MonthsOfExperience: bandValue(t.MonthBands, b.TotalMonthsExperience),
		SocietyRoles:       s.societyPoints(b.SocietyRoles),
		Certifications:     t.CertPoints * float64(minInt(maxInt(b.CertificationsCount, 0), t.CertCap)),
		IndustryExposure:   t.Exposure[b.Exposure],
	}
	rawExperience := experience.Internships + experience.MonthsOfExperience +
		experience.SocietyRoles + experience.Certifications + experience.IndustryExposure
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
			AcademicComponents:   academic,
			ExperienceComponents: experience,
			EffectiveAcademicWeights: map[string]float64{
				"universityPrestige": 0.35, "grades": 0.25, "aLevels": 0.20,
				"gcses": 0.10, "awards": 0.10,
			},
			AcademicTotal:   academicTotal,
			ExperienceTotal: experienceTotal,
			Composite:       composite,
		},
	}, nil
}

// aLevelPoints bands the grades into table points. No A-levels on record earns
// nothing; the "Other" band is reserved for grades present but off the ladder.
func (s *LookupScorer) aLevelPoints(alevels []profile.ALevel) float64 {
	if len(alevels) == 0 {
		return 0
	}
	return s.tables.ALevelBands[ALevelBand(alevels)]
}

// gradePoints applies the same early-year rule as the weighted strategy: no
// degree-grade credit before year 2.
func (s *LookupScorer) gradePoints(b profile.Bundle) float64 {
	if b.AcademicYear < 2 {
		return 0
	}
	return s.tables.Grades[b.DegreeGrade]
}

// internshipPoints takes the single best internship tier and decays it 15%
// per full elapsed year, matching the band mappings' whole-point granularity.
func (s *LookupScorer) internshipPoints(internships []profile.Internship) float64 {
	if len(internships) == 0 {
		return 0
	}
	now := s.clock()
	var best float64
	for _, in := range internships {
		pts := s.tables.InternshipTiers[in.Tier]
		fullYears := math.Floor(yearsSince(in.EndYear, in.EndMonth, now))
		pts *= math.Pow(0.85, fullYears)
		if pts > best {
			best = pts
		}
	}
	return best
}

// societyPoints takes the single best-paying role.
func (s *LookupScorer) societyPoints(roles []profile.SocietyRole) float64 {
	var best float64
	for _, r := range roles {
		if pts := s.tables.Societies[r.Role]; pts > best {
			best = pts
		}
	}
	return best
}

// ALevelBand reduces a set of A-level grades to the aggregate best-three band
// used as a table key: grades are sorted best-first and the top three joined
// ("A*", "A", "A" → "A*AA"). Fewer than three grades or any combination not
// present in the canonical ladder falls back to "Other".
func ALevelBand(alevels []profile.ALevel) string {
	if len(alevels) < 3 {
		return "Other"
	}
	order := map[profile.ALevelGrade]int{
		profile.ALevelAStar: 0,
		profile.ALevelA:     1,
		profile.ALevelB:     2,
		profile.ALevelC:     3,
		profile.ALevelD:     4,
		profile.ALevelE:     5,
	}
	grades := make([]profile.ALevelGrade, len(alevels))
	for i, a := range alevels {
		grades[i] = a.Grade
	}
	sort.Slice(grades, func(i, j int) bool { return order[grades[i]] < order[grades[j]] })
	band := string(grades[0]) + string(grades[1]) + string(grades[2])
	switch band {
	case "A*A*A*", "A*A*A", "A*AA", "AAA", "AAB", "ABB", "BBB", "BBC":
		return band
	default:
		return "Other"
	}
}

// bandValue returns the points of the highest band lower bound not exceeding v.
func bandValue(bands map[int]float64, v int) float64 {
	bestBound := -1
	var pts float64
	for bound, p := range bands {
		if v >= bound && bound > bestBound {
			bestBound = bound
			pts = p
		}
	}
	return pts
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
