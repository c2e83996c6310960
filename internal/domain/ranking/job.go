package ranking

import (
	"time"

	"github.com/google/uuid"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

// Job is one unit of recompute work on the FIFO queue. Delivery is
// at-least-once: consumers must tolerate duplicates for the same user.
// Profile optionally carries the bundle inline; when nil the worker fetches
// it from the profile store.
type Job struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Reason     UpdateReason    `json:"reason"`
	EventIDs   []string        `json:"event_ids,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempt    int             `json:"attempt"`
	Profile    *profile.Bundle `json:"profile,omitempty"`

	// ConfigVersion is the scoring configuration active when the job was
	// enqueued, stamped by the producer for traceability across processes.
	ConfigVersion string `json:"config_version"`
}

// NewJob builds a recompute job with a fresh id.
func NewJob(userID string, reason UpdateReason, eventIDs ...string) Job {
	return Job{
		ID:         uuid.NewString(),
		UserID:     userID,
		Reason:     reason,
		EventIDs:   eventIDs,
		EnqueuedAt: time.Now().UTC(),
		Attempt:    1,
	}
}

// Pending is a fully computed result parked until the student passes
// verification. It carries everything needed to persist later without
// rescoring.
type Pending struct {
	UserID     string         `json:"user_id"`
	Result     scoring.Result `json:"result"`
	Checksum   string         `json:"checksum"`
	Version    string         `json:"version"`
	Reason     UpdateReason   `json:"reason"`
	ComputedAt time.Time      `json:"computed_at"`
}
