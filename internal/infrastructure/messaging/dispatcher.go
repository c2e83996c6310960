package messaging

import (
	"context"
	"log/slog"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Enqueuer is the debounce-gated write side of the pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, userID string, reason ranking.UpdateReason, eventIDs ...string) (bool, error)
}

// Verifier handles user-verified events.
type Verifier interface {
	HandleVerified(ctx context.Context, userID string) error
}

// Dispatcher fronts the ingest handlers: every webhook flows through it
// synchronously (the HTTP layer needs the debounced/enqueued outcome for its
// response), and the outcome is then published on the bus for observers.
type Dispatcher struct {
	bus      *Bus
	enqueuer Enqueuer
	verifier Verifier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given handlers and bus.
func NewDispatcher(bus *Bus, enqueuer Enqueuer, verifier Verifier, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		bus:      bus,
		enqueuer: enqueuer,
		verifier: verifier,
		logger:   logger,
	}
}

// Enqueue routes a profile event to the enqueue handler and publishes the
// outcome. The handler result is returned unchanged so the caller keeps the
// debounced/enqueued distinction.
func (d *Dispatcher) Enqueue(ctx context.Context, userID string, reason ranking.UpdateReason, eventIDs ...string) (bool, error) {
	enqueued, err := d.enqueuer.Enqueue(ctx, userID, reason, eventIDs...)
	if err != nil {
		return enqueued, err
	}

	d.publish(NewProfileEvent(eventTypeFor(reason), userID, !enqueued, eventIDs...))
	return enqueued, nil
}

// HandleVerified routes a user-verified event to the verification handler
// and publishes the outcome.
func (d *Dispatcher) HandleVerified(ctx context.Context, userID string) error {
	if err := d.verifier.HandleVerified(ctx, userID); err != nil {
		return err
	}

	d.publish(NewVerifiedEvent(userID))
	return nil
}

func (d *Dispatcher) publish(event Event) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(event); err != nil {
		// Publish only fails on a closed bus during shutdown; the handler
		// already did its work, so this is not an ingress failure.
		d.logger.Warn("event publish failed",
			"event_type", event.EventType(),
			"user_id", event.UserID(),
			"error", err,
		)
	}
}

func eventTypeFor(reason ranking.UpdateReason) EventType {
	switch reason {
	case ranking.ReasonUserCreated:
		return EventUserCreated
	case ranking.ReasonManual:
		return EventRecomputeRequested
	default:
		return EventStudentUpdated
	}
}
