package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Store for PostgreSQL. Upstream profile
// rows arrive as free text, so every fetch normalizes them into the closed
// value sets the scorer understands.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// FetchBundle assembles the scoring input for a user across the profile
// tables. A user with no rows at all gets the default bundle; partial data is
// filled with defaults per field.
func (r *ProfileRepository) FetchBundle(ctx context.Context, userID string) (profile.Bundle, error) {
	bundle := profile.Default(userID)

	var (
		currentYear, monthsExp, awards, certs *int
		university, grades, exposure          *string
	)
	err := r.conn.QueryRow(ctx, `
		SELECT current_year, university, grades, industry_exposure,
		       months_of_experience, awards, certifications
		FROM student_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&currentYear, &university, &grades, &exposure,
		&monthsExp, &awards, &certs,
	)
	switch {
	case IsNoRows(err):
		// No profile yet; keep defaults and still count the detail tables,
		// which may be populated out of order by upstream sync.
	case err != nil:
		return profile.Bundle{}, fmt.Errorf("failed to fetch profile: %w", err)
	default:
		bundle.AcademicYear = intOrZero(currentYear)
		bundle.UniversityTier = ClassifyUniversityTier(strOrEmpty(university))
		bundle.DegreeGrade = NormalizeGrade(strOrEmpty(grades))
		bundle.Exposure = NormalizeExposure(strOrEmpty(exposure))
		bundle.TotalMonthsExperience = intOrZero(monthsExp)
		bundle.AwardsCount = intOrZero(awards)
		bundle.CertificationsCount = intOrZero(certs)
	}

	if err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM student_gcses WHERE user_id = $1
	`, userID).Scan(&bundle.GCSECount); err != nil {
		return profile.Bundle{}, fmt.Errorf("failed to count gcses: %w", err)
	}

	alevels, err := r.fetchALevels(ctx, userID)
	if err != nil {
		return profile.Bundle{}, err
	}
	bundle.ALevels = alevels

	internships, err := r.fetchInternships(ctx, userID)
	if err != nil {
		return profile.Bundle{}, err
	}
	bundle.Internships = internships

	roles, err := r.fetchSocietyRoles(ctx, userID)
	if err != nil {
		return profile.Bundle{}, err
	}
	bundle.SocietyRoles = roles

	return bundle, nil
}

func (r *ProfileRepository) fetchALevels(ctx context.Context, userID string) ([]profile.ALevel, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT grade, category FROM student_alevels WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alevels: %w", err)
	}
	defer rows.Close()

	alevels := []profile.ALevel{}
	for rows.Next() {
		var grade, category *string
		if err := rows.Scan(&grade, &category); err != nil {
			return nil, fmt.Errorf("failed to scan alevel: %w", err)
		}
		g := NormalizeALevelGrade(strOrEmpty(grade))
		if g == "" {
			continue // ungraded rows carry no signal
		}
		alevels = append(alevels, profile.ALevel{
			Grade:    g,
			Category: NormalizeALevelCategory(strOrEmpty(category)),
		})
	}
	return alevels, rows.Err()
}

func (r *ProfileRepository) fetchInternships(ctx context.Context, userID string) ([]profile.Internship, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT tier, months, year, end_month FROM student_internships WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch internships: %w", err)
	}
	defer rows.Close()

	internships := []profile.Internship{}
	for rows.Next() {
		var (
			tier                  *string
			months, year, endMonth *int
		)
		if err := rows.Scan(&tier, &months, &year, &endMonth); err != nil {
			return nil, fmt.Errorf("failed to scan internship: %w", err)
		}

		endYear := intOrZero(year)
		if endYear == 0 {
			endYear = time.Now().UTC().Year()
		}
		// Mid-year anchor when the source omits the month.
		em := intOrZero(endMonth)
		if em < 1 || em > 12 {
			em = 6
		}
		internships = append(internships, profile.Internship{
			Tier:     NormalizeInternshipTier(strOrEmpty(tier)),
			Months:   intOrZero(months),
			EndYear:  endYear,
			EndMonth: em,
		})
	}
	return internships, rows.Err()
}

func (r *ProfileRepository) fetchSocietyRoles(ctx context.Context, userID string) ([]profile.SocietyRole, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT role_title, society_size, years_active FROM student_society_roles WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch society roles: %w", err)
	}
	defer rows.Close()

	roles := []profile.SocietyRole{}
	for rows.Next() {
		var (
			title, size *string
			years       *int
		)
		if err := rows.Scan(&title, &size, &years); err != nil {
			return nil, fmt.Errorf("failed to scan society role: %w", err)
		}

		y := intOrZero(years)
		if y == 0 {
			y = 1
		}
		roles = append(roles, profile.SocietyRole{
			Role:  NormalizeRoleTitle(strOrEmpty(title)),
			Size:  NormalizeSocietySize(strOrEmpty(size)),
			Years: y,
		})
	}
	return roles, rows.Err()
}

// SetVerified stores the durable verification flag on the profile row.
func (r *ProfileRepository) SetVerified(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO student_profiles (user_id, is_verified) VALUES ($1, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET is_verified = TRUE, updated_at = NOW()
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to set verified: %w", err)
	}
	return nil
}

// IsVerified reads the durable verification flag.
func (r *ProfileRepository) IsVerified(ctx context.Context, userID string) (bool, error) {
	var verified bool
	err := r.conn.QueryRow(ctx, `
		SELECT is_verified FROM student_profiles WHERE user_id = $1
	`, userID).Scan(&verified)
	if IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read verified flag: %w", err)
	}
	return verified, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// NORMALIZATION
// ─────────────────────────────────────────────────────────────────────────────

// ClassifyUniversityTier maps a free-text university name onto a tier.
func ClassifyUniversityTier(university string) profile.UniversityTier {
	u := strings.ToLower(strings.TrimSpace(university))
	switch {
	case u == "":
		return profile.TierOther
	case strings.Contains(u, "oxford") || strings.Contains(u, "cambridge"):
		return profile.TierOxbridge
	case strings.Contains(u, "imperial") || u == "lse" || u == "london school of economics":
		return profile.TierImperialLSE
	case u == "ucl" || u == "university college london":
		return profile.TierUCL
	case strings.Contains(u, "edinburgh") || u == "kcl" ||
		u == "king's college london" || u == "kings college london":
		return profile.TierKCLEdin
	case strings.Contains(u, "warwick") || strings.Contains(u, "bath") || strings.Contains(u, "durham"):
		return profile.TierWarwickPlus
	default:
		return profile.TierOther
	}
}

// NormalizeGrade maps free-text degree grades onto the closed set.
// Unrecognised text means "no grade yet".
func NormalizeGrade(text string) profile.DegreeGrade {
	g := strings.ToLower(strings.TrimSpace(text))
	switch {
	case g == "":
		return profile.GradeUnknown
	case strings.HasPrefix(g, "first") || g == "1st":
		return profile.GradeFirst
	case strings.Contains(g, "2:1") || strings.Contains(g, "2-1") || g == "upper second":
		return profile.GradeUpperSec
	case strings.Contains(g, "2:2") || strings.Contains(g, "2-2") || g == "lower second":
		return profile.GradeLowerSec
	case strings.HasPrefix(g, "third") || g == "3rd":
		return profile.GradeThird
	default:
		return profile.GradeUnknown
	}
}

// NormalizeExposure maps free-text exposure descriptions onto the closed set.
func NormalizeExposure(text string) profile.Exposure {
	e := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(e, "placement"):
		return profile.ExposurePlacement
	case strings.Contains(e, "summer"):
		return profile.ExposureSummer
	case strings.Contains(e, "spring"):
		return profile.ExposureSpring
	case strings.Contains(e, "shadow"):
		return profile.ExposureShadowing
	default:
		return profile.ExposureNone
	}
}

// NormalizeInternshipTier maps free-text employer tiers onto the closed set,
// defaulting unrecognised text to Regional rather than dropping the stint.
func NormalizeInternshipTier(text string) profile.InternshipTier {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "bulge"):
		return profile.InternBulgeBracket
	case strings.Contains(t, "elite"):
		return profile.InternEliteBoutique
	case strings.Contains(t, "middle"):
		return profile.InternMiddleMarket
	default:
		return profile.InternRegional
	}
}

// NormalizeSocietySize maps a size label, defaulting to Small.
func NormalizeSocietySize(text string) profile.SocietySize {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "large":
		return profile.SizeLarge
	case "medium":
		return profile.SizeMedium
	default:
		return profile.SizeSmall
	}
}

// NormalizeRoleTitle maps a free-text role title onto the closed set.
func NormalizeRoleTitle(text string) profile.SocietyRoleTitle {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "president") || strings.Contains(t, "chair"):
		return profile.RolePresident
	case strings.Contains(t, "committee") || strings.Contains(t, "treasurer") ||
		strings.Contains(t, "secretary") || strings.Contains(t, "vp") ||
		strings.Contains(t, "vice"):
		return profile.RoleCommittee
	default:
		return profile.RoleMember
	}
}

// NormalizeALevelGrade keeps only grades from the closed ladder; anything
// else is treated as absent.
func NormalizeALevelGrade(text string) profile.ALevelGrade {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "A*":
		return profile.ALevelAStar
	case "A":
		return profile.ALevelA
	case "B":
		return profile.ALevelB
	case "C":
		return profile.ALevelC
	case "D":
		return profile.ALevelD
	case "E":
		return profile.ALevelE
	default:
		return ""
	}
}

// NormalizeALevelCategory maps a free-text subject category, defaulting to
// Traditional.
func NormalizeALevelCategory(text string) profile.ALevelCategory {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "further"):
		return profile.CategoryFurtherMaths
	case strings.Contains(t, "stem") || strings.Contains(t, "math") ||
		strings.Contains(t, "science") || strings.Contains(t, "physics") ||
		strings.Contains(t, "chem") || strings.Contains(t, "comput"):
		return profile.CategorySTEM
	case strings.Contains(t, "creative") || strings.Contains(t, "art") ||
		strings.Contains(t, "music") || strings.Contains(t, "drama"):
		return profile.CategoryCreative
	default:
		return profile.CategoryTraditional
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
