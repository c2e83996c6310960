package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankhub/student-ranking-hub/internal/application/query"
	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

const testSecret = "test-secret"

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeEnqueuer struct {
	enqueued  bool
	err       error
	calls     int
	lastUser  string
	lastCause ranking.UpdateReason
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, userID string, reason ranking.UpdateReason, _ ...string) (bool, error) {
	e.calls++
	e.lastUser = userID
	e.lastCause = reason
	if e.err != nil {
		return false, e.err
	}
	return e.enqueued, nil
}

type fakeVerifier struct {
	calls    int
	lastUser string
	err      error
}

func (v *fakeVerifier) HandleVerified(_ context.Context, userID string) error {
	v.calls++
	v.lastUser = userID
	return v.err
}

type fakeStore struct {
	records    map[string]ranking.Record
	breakdowns map[string]scoring.Breakdown
	hist       []ranking.HistogramBucket
	stats      ranking.GlobalStats
	hasRun     bool
}

func (s *fakeStore) GetRecord(_ context.Context, userID string) (ranking.Record, error) {
	if rec, ok := s.records[userID]; ok {
		return rec, nil
	}
	return ranking.Record{}, ranking.ErrNotFound
}

func (s *fakeStore) GetBreakdown(_ context.Context, userID string) (scoring.Breakdown, error) {
	if b, ok := s.breakdowns[userID]; ok {
		return b, nil
	}
	return scoring.Breakdown{}, ranking.ErrNoBreakdown
}

func (s *fakeStore) ApplyUpsert(context.Context, ranking.Upsert) error { return nil }

func (s *fakeStore) ListRecords(context.Context) ([]ranking.Record, error) { return nil, nil }

func (s *fakeStore) SaveRankings(context.Context, []ranking.Record, []ranking.HistogramBucket, ranking.GlobalStats) error {
	return nil
}

func (s *fakeStore) ListHistogram(context.Context) ([]ranking.HistogramBucket, error) {
	return s.hist, nil
}

func (s *fakeStore) GetGlobalStats(context.Context) (ranking.GlobalStats, error) {
	if !s.hasRun {
		return ranking.GlobalStats{}, ranking.ErrNotFound
	}
	return s.stats, nil
}

func (s *fakeStore) MarkVerified(context.Context, string) error { return nil }

// ──────────────────────────────────────────────────────────────────────────────
// Harness
// ──────────────────────────────────────────────────────────────────────────────

type httpHarness struct {
	server   *Server
	enqueuer *fakeEnqueuer
	verifier *fakeVerifier
	store    *fakeStore
}

func newHTTPHarness() *httpHarness {
	h := &httpHarness{
		enqueuer: &fakeEnqueuer{enqueued: true},
		verifier: &fakeVerifier{},
		store:    &fakeStore{records: map[string]ranking.Record{}},
	}

	cfg := DefaultConfig()
	cfg.WebhookSecret = testSecret
	cfg.ConfigVersion = "v1"
	cfg.RateLimitPerMinute = 0

	h.server = NewServer(cfg, Dependencies{
		Enqueuer:              h.enqueuer,
		Verifier:              h.verifier,
		GetRankingHandler:     query.NewGetRankingHandler(h.store),
		GetGlobalStatsHandler: query.NewGetGlobalStatsHandler(h.store),
	})
	return h
}

func (h *httpHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func sign(t *testing.T, body []byte, ts string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(t *testing.T, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	ts := time.Now().UTC().Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sign(t, body, ts))
	return req
}

// ──────────────────────────────────────────────────────────────────────────────
// Webhook tests
// ──────────────────────────────────────────────────────────────────────────────

func TestWebhook_StudentUpdated(t *testing.T) {
	h := newHTTPHarness()

	req := signedRequest(t, "/api/webhook/student-updated", map[string]any{
		"user_id":  "u-1",
		"table":    "student_profiles",
		"op":       "UPDATE",
		"ts":       time.Now().UTC(),
		"event_id": "evt-1",
	})
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.enqueuer.calls)
	assert.Equal(t, "u-1", h.enqueuer.lastUser)
	assert.Equal(t, ranking.ReasonStudentUpdated, h.enqueuer.lastCause)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhook_UserCreated(t *testing.T) {
	h := newHTTPHarness()

	req := signedRequest(t, "/api/webhook/user-created", map[string]any{
		"user_id":  "u-2",
		"event_id": "evt-2",
	})
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ranking.ReasonUserCreated, h.enqueuer.lastCause)
}

func TestWebhook_DebouncedResponse(t *testing.T) {
	h := newHTTPHarness()
	h.enqueuer.enqueued = false

	req := signedRequest(t, "/api/webhook/student-updated", map[string]any{
		"user_id": "u-1", "event_id": "evt-1",
	})
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"debounced"}`, rec.Body.String())
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	h := newHTTPHarness()

	body := []byte(`{"user_id":"u-1","event_id":"evt-1"}`)
	ts := time.Now().UTC().Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/student-updated", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", "sha256=deadbeef")
	rec := h.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, h.enqueuer.calls)
}

func TestWebhook_RejectsStaleTimestamp(t *testing.T) {
	h := newHTTPHarness()

	body := []byte(`{"user_id":"u-1","event_id":"evt-1"}`)
	ts := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/student-updated", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Signature", sign(t, body, ts))
	rec := h.do(req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, h.enqueuer.calls)
}

func TestWebhook_RejectsMalformedHeaders(t *testing.T) {
	h := newHTTPHarness()

	body := []byte(`{"user_id":"u-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/student-updated", bytes.NewReader(body))
	req.Header.Set("X-Timestamp", "not-a-time")
	req.Header.Set("X-Signature", "sha256=00")
	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_RejectsPayloadWithoutUserID(t *testing.T) {
	h := newHTTPHarness()

	req := signedRequest(t, "/api/webhook/student-updated", map[string]any{
		"event_id": "evt-1",
	})
	rec := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.enqueuer.calls)
}

func TestWebhook_UserVerified(t *testing.T) {
	h := newHTTPHarness()

	req := signedRequest(t, "/api/webhook/user-verified", map[string]any{
		"user_id":  "u-9",
		"event_id": "evt-9",
	})
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.verifier.calls)
	assert.Equal(t, "u-9", h.verifier.lastUser)
}

// ──────────────────────────────────────────────────────────────────────────────
// Read API tests
// ──────────────────────────────────────────────────────────────────────────────

func TestGetRanking(t *testing.T) {
	h := newHTTPHarness()
	h.store.records["u-1"] = ranking.Record{
		UserID:          "u-1",
		CompositeScore:  512.5,
		AcademicScore:   60,
		ExperienceScore: 48,
		RankPosition:    7,
		ConfigVersion:   "v1",
		IsVerified:      true,
		UpdatedAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	h.store.hist = []ranking.HistogramBucket{
		{Bucket: 50, Count: 5},
		{Bucket: 102, Count: 5},
	}
	h.store.hasRun = true
	h.store.stats = ranking.GlobalStats{TotalStudents: 10}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/ranking/u-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto query.RankingDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, "u-1", dto.UserID)
	assert.InDelta(t, 512.5, dto.Composite, 1e-9)
	require.NotNil(t, dto.Rank)
	assert.Equal(t, 7, *dto.Rank)
	assert.Equal(t, 10, dto.OutOf)
	assert.True(t, dto.IsVerified)
	assert.Greater(t, dto.Percentile, 0.0)
}

func TestGetRanking_BreakdownGate(t *testing.T) {
	h := newHTTPHarness()
	h.store.records["u-1"] = ranking.Record{UserID: "u-1", CompositeScore: 512.5}
	h.store.breakdowns = map[string]scoring.Breakdown{
		"u-1": {Composite: 512.5, AcademicTotal: 60, ExperienceTotal: 48},
	}

	get := func() query.RankingDTO {
		rec := h.do(httptest.NewRequest(http.MethodGet, "/api/ranking/u-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var dto query.RankingDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
		return dto
	}

	// No gate configured: breakdown is included.
	require.NotNil(t, get().Breakdown)

	h.server.deps.BreakdownEnabled = func(string) bool { return false }
	assert.Nil(t, get().Breakdown)

	h.server.deps.BreakdownEnabled = func(string) bool { return true }
	dto := get()
	require.NotNil(t, dto.Breakdown)
	assert.InDelta(t, 512.5, dto.Breakdown.Composite, 1e-9)
}

func TestGetRanking_NotFound(t *testing.T) {
	h := newHTTPHarness()

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/ranking/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStats(t *testing.T) {
	h := newHTTPHarness()
	h.store.hasRun = true
	h.store.stats = ranking.GlobalStats{
		TotalStudents: 3,
		MeanComposite: 420.12,
		P50:           400,
		P90:           700,
		P99:           810,
		ConfigVersion: "v1",
	}
	h.store.hist = []ranking.HistogramBucket{{Bucket: 80, Count: 3}}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dto query.GlobalStatsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	assert.Equal(t, 3, dto.TotalStudents)
	require.Len(t, dto.Histogram, 1)
	assert.InDelta(t, 400.0, dto.Histogram[0].From, 1e-9)
	assert.InDelta(t, 405.0, dto.Histogram[0].To, 1e-9)
}

func TestGetConfig(t *testing.T) {
	h := newHTTPHarness()

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"config_version":"v1"}`, rec.Body.String())
}

func TestRecalculate_ManualReason(t *testing.T) {
	h := newHTTPHarness()

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/ranking/recalculate/u-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"enqueued"}`, rec.Body.String())
	assert.Equal(t, ranking.ReasonManual, h.enqueuer.lastCause)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHTTPHarness()

	for _, path := range []string{"/health", "/healthz", "/live", "/ready"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Signature primitive tests
// ──────────────────────────────────────────────────────────────────────────────

func TestVerifyWebhookSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := now.Format(time.RFC3339)
	body := []byte(`{"user_id":"u-1"}`)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	good := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name      string
		timestamp string
		signature string
		wantErr   error
	}{
		{"valid", ts, good, nil},
		{"bad timestamp", "garbage", good, ErrBadTimestamp},
		{"skewed", now.Add(-10 * time.Minute).Format(time.RFC3339), good, ErrTimestampSkew},
		{"missing prefix", ts, "deadbeef", ErrBadSignatureFormat},
		{"wrong digest", ts, "sha256=deadbeef", ErrSignatureMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyWebhookSignature("secret", 5*time.Minute, body, tt.timestamp, tt.signature, now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
