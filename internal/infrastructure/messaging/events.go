// Package messaging implements the in-process event bus of the ranking
// pipeline. The HTTP layer hands webhook events to the Dispatcher, which
// routes them to the enqueue and verification handlers and publishes the
// outcome on the bus for observers (audit logging, debugging hooks).
package messaging

import "time"

// EventType classifies a pipeline event.
type EventType string

const (
	// EventUserCreated fires when a user-created webhook was accepted.
	EventUserCreated EventType = "profile.user_created"

	// EventStudentUpdated fires when a student-updated webhook was accepted.
	EventStudentUpdated EventType = "profile.student_updated"

	// EventUserVerified fires when a user-verified webhook was handled.
	EventUserVerified EventType = "profile.user_verified"

	// EventRecomputeRequested fires when an operator requested a manual
	// recompute.
	EventRecomputeRequested EventType = "profile.recompute_requested"
)

// Event is the base interface for all pipeline events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// UserID returns the user the event concerns.
	UserID() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type      EventType `json:"type"`
	User      string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType { return e.Type }

// UserID implements Event.
func (e BaseEvent) UserID() string { return e.User }

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType EventType, userID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		User:      userID,
		Timestamp: time.Now().UTC(),
	}
}

// ProfileEvent is published after a profile webhook passed through the
// debounce gate. Debounced reports whether the event was absorbed into an
// already-enqueued job instead of producing a new one.
type ProfileEvent struct {
	BaseEvent
	EventIDs  []string `json:"event_ids,omitempty"`
	Debounced bool     `json:"debounced"`
}

// NewProfileEvent creates a ProfileEvent of the given type.
func NewProfileEvent(eventType EventType, userID string, debounced bool, eventIDs ...string) ProfileEvent {
	return ProfileEvent{
		BaseEvent: NewBaseEvent(eventType, userID),
		EventIDs:  eventIDs,
		Debounced: debounced,
	}
}

// VerifiedEvent is published after a user-verified webhook was handled.
type VerifiedEvent struct {
	BaseEvent
}

// NewVerifiedEvent creates a VerifiedEvent.
func NewVerifiedEvent(userID string) VerifiedEvent {
	return VerifiedEvent{BaseEvent: NewBaseEvent(EventUserVerified, userID)}
}

// Handler is a function that handles an event. Handlers run on bus worker
// goroutines, so they must be safe for concurrent use.
type Handler func(event Event) error
