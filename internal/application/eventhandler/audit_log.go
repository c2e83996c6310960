// Package eventhandler contains the observers subscribed to the pipeline
// event bus. Observers react to accepted webhook events with side effects
// that must not block ingress, such as audit logging.
package eventhandler

import (
	"log/slog"

	"github.com/rankhub/student-ranking-hub/internal/infrastructure/messaging"
)

// AuditLogHandler writes one structured log line per accepted webhook event,
// giving operators a greppable ingress trail next to the worker's per-job
// outcome logs.
type AuditLogHandler struct {
	logger *slog.Logger
}

// NewAuditLogHandler creates an audit log observer.
func NewAuditLogHandler(logger *slog.Logger) *AuditLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogHandler{logger: logger}
}

// Handle logs one event. Registered with Bus.SubscribeAll.
func (h *AuditLogHandler) Handle(event messaging.Event) error {
	attrs := []any{
		"event_type", event.EventType(),
		"user_id", event.UserID(),
		"occurred_at", event.OccurredAt(),
	}

	if pe, ok := event.(messaging.ProfileEvent); ok {
		attrs = append(attrs, "debounced", pe.Debounced)
		if len(pe.EventIDs) > 0 {
			attrs = append(attrs, "event_ids", pe.EventIDs)
		}
	}

	h.logger.Info("pipeline event", attrs...)
	return nil
}
