// Package profile contains the student profile domain model for Student Ranking Hub.
package profile

import "context"

// Store is the contract for fetching a student's profile bundle.
// The implementation lives in the infrastructure layer (PostgreSQL).
//
// A missing profile is not an error: implementations return Default(userID)
// so that newly created users can be scored immediately.
type Store interface {
	// FetchBundle assembles the scoring input for one student from the
	// profile tables (profile row, GCSEs, A-levels, internships, society roles).
	FetchBundle(ctx context.Context, userID string) (Bundle, error)
}
