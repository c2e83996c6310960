package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/application/query"
	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/pkg/metrics"
)

// maxWebhookBody bounds how much of a webhook request body is read.
const maxWebhookBody = 1 << 20 // 1 MB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Student Ranking Hub API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":  "/health",
			"ranking": "/api/ranking/{user_id}",
			"stats":   "/api/stats",
			"config":  "/api/config",
		},
	})
}

// handleHealth handles the liveness-style health check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady probes every registered dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, checker := range s.deps.HealthCheckers {
		if checker == nil {
			continue
		}
		if err := checker.Health(r.Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// profileEvent is the payload of user-created and student-updated webhooks.
type profileEvent struct {
	UserID  string    `json:"user_id"`
	Table   string    `json:"table"`
	Op      string    `json:"op"`
	TS      time.Time `json:"ts"`
	EventID string    `json:"event_id"`
}

// verifiedEvent is the payload of the user-verified webhook.
type verifiedEvent struct {
	UserID     string     `json:"user_id"`
	EventID    string     `json:"event_id"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// readSignedBody verifies the HMAC headers and returns the raw body. A nil
// slice means the response has already been written.
func (s *Server) readSignedBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Unable to read request body")
		return nil
	}

	err = verifyWebhookSignature(
		s.config.WebhookSecret,
		s.config.WebhookMaxSkew,
		body,
		r.Header.Get("X-Timestamp"),
		r.Header.Get("X-Signature"),
		time.Now().UTC(),
	)
	switch {
	case err == nil:
		return body
	case errors.Is(err, ErrBadTimestamp), errors.Is(err, ErrBadSignatureFormat):
		metrics.RecordWebhookAuthFailure()
		writeJSONError(w, http.StatusBadRequest, "bad_signature_headers", err.Error())
	default:
		metrics.RecordWebhookAuthFailure()
		s.logger.Warn("webhook rejected",
			"path", r.URL.Path,
			"ip", getClientIP(r),
			"error", err,
		)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Signature verification failed")
	}
	return nil
}

// handleUserCreated handles POST /api/webhook/user-created.
func (s *Server) handleUserCreated(w http.ResponseWriter, r *http.Request) {
	s.handleProfileEvent(w, r, ranking.ReasonUserCreated)
}

// handleStudentUpdated handles POST /api/webhook/student-updated.
func (s *Server) handleStudentUpdated(w http.ResponseWriter, r *http.Request) {
	s.handleProfileEvent(w, r, ranking.ReasonStudentUpdated)
}

func (s *Server) handleProfileEvent(w http.ResponseWriter, r *http.Request, reason ranking.UpdateReason) {
	body := s.readSignedBody(w, r)
	if body == nil {
		return
	}

	var event profileEvent
	if err := json.Unmarshal(body, &event); err != nil || event.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Invalid webhook payload")
		return
	}

	metrics.RecordEventReceived(string(reason))

	enqueued, err := s.deps.Enqueuer.Enqueue(r.Context(), event.UserID, reason, event.EventID)
	if err != nil {
		s.logger.Error("webhook enqueue failed",
			"user_id", event.UserID,
			"reason", string(reason),
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "enqueue_failed", "Unable to enqueue recompute")
		return
	}

	status := "ok"
	if !enqueued {
		status = "debounced"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleUserVerified handles POST /api/webhook/user-verified.
func (s *Server) handleUserVerified(w http.ResponseWriter, r *http.Request) {
	body := s.readSignedBody(w, r)
	if body == nil {
		return
	}

	var event verifiedEvent
	if err := json.Unmarshal(body, &event); err != nil || event.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Invalid webhook payload")
		return
	}

	metrics.RecordEventReceived(string(ranking.ReasonUserVerified))

	if err := s.deps.Verifier.HandleVerified(r.Context(), event.UserID); err != nil {
		s.logger.Error("verification handling failed",
			"user_id", event.UserID,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "verification_failed", "Unable to process verification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ API HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRanking handles GET /api/ranking/{user_id}.
func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	includeBreakdown := s.deps.BreakdownEnabled == nil || s.deps.BreakdownEnabled(userID)
	dto, err := s.deps.GetRankingHandler.Handle(r.Context(), query.GetRankingQuery{
		UserID:           userID,
		IncludeBreakdown: includeBreakdown,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, dto)
	case errors.Is(err, ranking.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "User has no ranking yet")
	default:
		s.logger.Error("get ranking failed", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Unable to load ranking")
	}
}

// handleGetStats handles GET /api/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.GetGlobalStatsHandler.Handle(r.Context())
	if err != nil {
		s.logger.Error("get stats failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Unable to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// handleGetConfig handles GET /api/config.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"config_version": s.config.ConfigVersion})
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATOR HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRecalculate handles POST /api/ranking/recalculate/{user_id}. Manual
// recomputes bypass the debounce gate and need no signature: the endpoint is
// for operators, not the event source.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "user_id is required")
		return
	}

	metrics.RecordEventReceived(string(ranking.ReasonManual))

	if _, err := s.deps.Enqueuer.Enqueue(r.Context(), userID, ranking.ReasonManual); err != nil {
		s.logger.Error("manual recompute enqueue failed", "user_id", userID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "enqueue_failed", "Unable to enqueue recompute")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "enqueued"})
}
