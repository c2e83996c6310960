// Package profile contains the student profile domain model for Student Ranking Hub.
// A profile bundle is the immutable snapshot of everything the scoring pipeline
// needs about one student: academics, internships, societies, certifications.
package profile

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS (closed sets)
// ══════════════════════════════════════════════════════════════════════════════

// UniversityTier is the closed set of university prestige tiers.
type UniversityTier string

const (
	TierOxbridge    UniversityTier = "Oxbridge"
	TierImperialLSE UniversityTier = "Imperial/LSE"
	TierUCL         UniversityTier = "UCL"
	TierKCLEdin     UniversityTier = "KCL/Edinburgh"
	TierWarwickPlus UniversityTier = "Warwick/Bath/Durham"
	TierOther       UniversityTier = "Other"
)

// IsValid reports whether the tier belongs to the closed set.
func (t UniversityTier) IsValid() bool {
	switch t {
	case TierOxbridge, TierImperialLSE, TierUCL, TierKCLEdin, TierWarwickPlus, TierOther:
		return true
	}
	return false
}

// DegreeGrade is the closed set of degree classification bands.
// An empty value means the grade is not yet known.
type DegreeGrade string

const (
	GradeFirst     DegreeGrade = "First"
	GradeUpperSec  DegreeGrade = "2:1"
	GradeLowerSec  DegreeGrade = "2:2"
	GradeThird     DegreeGrade = "Third"
	GradeUnknown   DegreeGrade = ""
)

// ALevelGrade is the closed set of A-level grades.
type ALevelGrade string

const (
	ALevelAStar ALevelGrade = "A*"
	ALevelA     ALevelGrade = "A"
	ALevelB     ALevelGrade = "B"
	ALevelC     ALevelGrade = "C"
	ALevelD     ALevelGrade = "D"
	ALevelE     ALevelGrade = "E"
)

// ALevelCategory groups subjects by how strongly they signal quantitative rigour.
type ALevelCategory string

const (
	CategoryFurtherMaths ALevelCategory = "Further Maths"
	CategorySTEM         ALevelCategory = "STEM"
	CategoryTraditional  ALevelCategory = "Traditional"
	CategoryCreative     ALevelCategory = "Creative"
)

// InternshipTier is the closed set of employer tiers.
type InternshipTier string

const (
	InternBulgeBracket  InternshipTier = "Bulge Bracket"
	InternEliteBoutique InternshipTier = "Elite Boutique"
	InternMiddleMarket  InternshipTier = "Middle Market"
	InternRegional      InternshipTier = "Regional"
)

// SocietyRoleTitle is the closed set of society positions.
type SocietyRoleTitle string

const (
	RolePresident SocietyRoleTitle = "President"
	RoleCommittee SocietyRoleTitle = "Committee"
	RoleMember    SocietyRoleTitle = "Member"
)

// SocietySize is the closed set of society sizes.
type SocietySize string

const (
	SizeLarge  SocietySize = "Large"
	SizeMedium SocietySize = "Medium"
	SizeSmall  SocietySize = "Small"
)

// Exposure is the closed set of industry-exposure categories.
type Exposure string

const (
	ExposurePlacement Exposure = "Placement"
	ExposureSummer    Exposure = "Summer Internship"
	ExposureSpring    Exposure = "Spring Week"
	ExposureShadowing Exposure = "Shadowing"
	ExposureNone      Exposure = "None"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUNDLE
// ══════════════════════════════════════════════════════════════════════════════

// ALevel is a single A-level grade/category pair.
type ALevel struct {
	Grade    ALevelGrade    `json:"grade"`
	Category ALevelCategory `json:"category"`
}

// Internship is one internship stint with its employer tier and end date.
type Internship struct {
	Tier     InternshipTier `json:"tier"`
	Months   int            `json:"months"`
	EndYear  int            `json:"end_year"`
	EndMonth int            `json:"end_month"`
}

// SocietyRole is one society position held for a number of years.
type SocietyRole struct {
	Role  SocietyRoleTitle `json:"role"`
	Size  SocietySize      `json:"size"`
	Years int              `json:"years"`
}

// Bundle is the immutable scoring input for one student.
// Field names in the JSON form are part of the checksum contract: the same
// bundle must serialize to the same canonical document regardless of how it
// was assembled.
type Bundle struct {
	UserID                string         `json:"user_id"`
	AcademicYear          int            `json:"academic_year"`
	UniversityTier        UniversityTier `json:"university_tier"`
	DegreeGrade           DegreeGrade    `json:"grade"`
	ALevels               []ALevel       `json:"alevels"`
	GCSECount             int            `json:"num_gcse"`
	AwardsCount           int            `json:"awards_count"`
	Internships           []Internship   `json:"internships"`
	TotalMonthsExperience int            `json:"total_months_experience"`
	SocietyRoles          []SocietyRole  `json:"society_roles"`
	CertificationsCount   int            `json:"certifications_count"`
	Exposure              Exposure       `json:"exposure"`
}

// Default returns the bundle used when a student has no profile rows yet.
func Default(userID string) Bundle {
	return Bundle{
		UserID:         userID,
		UniversityTier: TierOther,
		Exposure:       ExposureNone,
		ALevels:        []ALevel{},
		Internships:    []Internship{},
		SocietyRoles:   []SocietyRole{},
	}
}
