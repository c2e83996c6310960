package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

func TestClassifyUniversityTier(t *testing.T) {
	tests := []struct {
		in   string
		want profile.UniversityTier
	}{
		{"University of Oxford", profile.TierOxbridge},
		{"cambridge", profile.TierOxbridge},
		{"Imperial College London", profile.TierImperialLSE},
		{"LSE", profile.TierImperialLSE},
		{"ucl", profile.TierUCL},
		{"University College London", profile.TierUCL},
		{"University of Edinburgh", profile.TierKCLEdin},
		{"King's College London", profile.TierKCLEdin},
		{"Warwick", profile.TierWarwickPlus},
		{"University of Bath", profile.TierWarwickPlus},
		{"Durham University", profile.TierWarwickPlus},
		{"University of Nowhere", profile.TierOther},
		{"", profile.TierOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyUniversityTier(tt.in), "input=%q", tt.in)
	}
}

func TestNormalizeGrade(t *testing.T) {
	tests := []struct {
		in   string
		want profile.DegreeGrade
	}{
		{"First Class Honours", profile.GradeFirst},
		{"1st", profile.GradeFirst},
		{"2:1", profile.GradeUpperSec},
		{"Upper Second", profile.GradeUpperSec},
		{"predicted 2-1", profile.GradeUpperSec},
		{"2:2", profile.GradeLowerSec},
		{"Third", profile.GradeThird},
		{"pass", profile.GradeUnknown},
		{"", profile.GradeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeGrade(tt.in), "input=%q", tt.in)
	}
}

func TestNormalizeExposure(t *testing.T) {
	tests := []struct {
		in   string
		want profile.Exposure
	}{
		{"Year in industry placement", profile.ExposurePlacement},
		{"Summer internship at a bank", profile.ExposureSummer},
		{"Spring week", profile.ExposureSpring},
		{"Work shadowing", profile.ExposureShadowing},
		{"none", profile.ExposureNone},
		{"", profile.ExposureNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeExposure(tt.in), "input=%q", tt.in)
	}
}

func TestNormalizeInternshipTier(t *testing.T) {
	assert.Equal(t, profile.InternBulgeBracket, NormalizeInternshipTier("Bulge Bracket bank"))
	assert.Equal(t, profile.InternEliteBoutique, NormalizeInternshipTier("elite boutique"))
	assert.Equal(t, profile.InternMiddleMarket, NormalizeInternshipTier("Middle Market"))
	assert.Equal(t, profile.InternRegional, NormalizeInternshipTier("local firm"))
	assert.Equal(t, profile.InternRegional, NormalizeInternshipTier(""))
}

func TestNormalizeRoleTitle(t *testing.T) {
	assert.Equal(t, profile.RolePresident, NormalizeRoleTitle("Society President"))
	assert.Equal(t, profile.RolePresident, NormalizeRoleTitle("Chairperson"))
	assert.Equal(t, profile.RoleCommittee, NormalizeRoleTitle("Treasurer"))
	assert.Equal(t, profile.RoleCommittee, NormalizeRoleTitle("Vice President"))
	assert.Equal(t, profile.RoleMember, NormalizeRoleTitle("member"))
	assert.Equal(t, profile.RoleMember, NormalizeRoleTitle(""))
}

func TestNormalizeSocietySize(t *testing.T) {
	assert.Equal(t, profile.SizeLarge, NormalizeSocietySize(" Large "))
	assert.Equal(t, profile.SizeMedium, NormalizeSocietySize("medium"))
	assert.Equal(t, profile.SizeSmall, NormalizeSocietySize("tiny"))
}

func TestNormalizeALevelGrade(t *testing.T) {
	assert.Equal(t, profile.ALevelAStar, NormalizeALevelGrade("a*"))
	assert.Equal(t, profile.ALevelB, NormalizeALevelGrade(" b "))
	assert.Equal(t, profile.ALevelGrade(""), NormalizeALevelGrade("U"))
}

func TestNormalizeALevelCategory(t *testing.T) {
	assert.Equal(t, profile.CategoryFurtherMaths, NormalizeALevelCategory("Further Mathematics"))
	assert.Equal(t, profile.CategorySTEM, NormalizeALevelCategory("Computer Science"))
	assert.Equal(t, profile.CategoryCreative, NormalizeALevelCategory("Fine Art"))
	assert.Equal(t, profile.CategoryTraditional, NormalizeALevelCategory("History"))
}
