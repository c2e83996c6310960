package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankhub/student-ranking-hub/internal/domain/profile"
	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
	"github.com/rankhub/student-ranking-hub/internal/domain/scoring"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeQueue struct {
	jobs []ranking.Job
}

func (q *fakeQueue) Dequeue(_ context.Context, _ time.Duration) (ranking.Job, bool, error) {
	if len(q.jobs) == 0 {
		return ranking.Job{}, false, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true, nil
}

func (q *fakeQueue) Len(context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

type fakeProfiles struct {
	bundles map[string]profile.Bundle
	fetches int
	err     error
}

func (p *fakeProfiles) FetchBundle(_ context.Context, userID string) (profile.Bundle, error) {
	p.fetches++
	if p.err != nil {
		return profile.Bundle{}, p.err
	}
	if b, ok := p.bundles[userID]; ok {
		return b, nil
	}
	return profile.Default(userID), nil
}

type fakeStore struct {
	records   map[string]ranking.Record
	upserts   []ranking.Upsert
	getErr    error
	upsertErr error
}

func (s *fakeStore) GetRecord(_ context.Context, userID string) (ranking.Record, error) {
	if s.getErr != nil {
		return ranking.Record{}, s.getErr
	}
	if rec, ok := s.records[userID]; ok {
		return rec, nil
	}
	return ranking.Record{}, ranking.ErrNotFound
}

func (s *fakeStore) ApplyUpsert(_ context.Context, up ranking.Upsert) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, up)
	return nil
}

type fakeVerifier struct {
	verified map[string]bool
	err      error
}

func (v *fakeVerifier) IsVerified(_ context.Context, userID string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return v.verified[userID], nil
}

type fakePending struct {
	parked []ranking.Pending
	err    error
}

func (p *fakePending) Put(_ context.Context, pending ranking.Pending) error {
	if p.err != nil {
		return p.err
	}
	p.parked = append(p.parked, pending)
	return nil
}

type fakeScorer struct {
	result scoring.Result
	err    error
	calls  int
}

func (s *fakeScorer) Score(profile.Bundle) (scoring.Result, error) {
	s.calls++
	if s.err != nil {
		return scoring.Result{}, s.err
	}
	return s.result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Harness
// ──────────────────────────────────────────────────────────────────────────────

type harness struct {
	queue    *fakeQueue
	profiles *fakeProfiles
	scorer   *fakeScorer
	store    *fakeStore
	verifier *fakeVerifier
	pending  *fakePending
	loop     *Loop
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		queue:    &fakeQueue{},
		profiles: &fakeProfiles{bundles: map[string]profile.Bundle{}},
		scorer:   &fakeScorer{result: scoring.Result{Composite: 512.345, Academic: 60, Experience: 48}},
		store:    &fakeStore{records: map[string]ranking.Record{}},
		verifier: &fakeVerifier{verified: map[string]bool{}},
		pending:  &fakePending{},
	}
	h.loop = NewLoop(
		h.queue, h.profiles, h.scorer, h.store, h.verifier, h.pending,
		DefaultConfig("v1"),
		slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError})),
	)
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestProcess_PersistsVerifiedUser(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-1"] = true

	res := h.loop.Process(context.Background(), ranking.NewJob("u-1", ranking.ReasonStudentUpdated, "evt-1"))

	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.NoError(t, res.Err)
	assert.InDelta(t, 512.345, res.Composite, 1e-9)

	require.Len(t, h.store.upserts, 1)
	up := h.store.upserts[0]
	assert.Equal(t, "u-1", up.UserID)
	assert.True(t, up.IsVerified)
	assert.Equal(t, "v1", up.Version)
	assert.Equal(t, ranking.ReasonStudentUpdated, up.Reason)
	assert.NotEmpty(t, up.ComputeRunID)
	assert.NotEmpty(t, up.Checksum)
	assert.Empty(t, h.pending.parked)
}

func TestProcess_SkipsWhenChecksumMatches(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-1"] = true

	sum, err := scoring.Checksum(profile.Default("u-1"))
	require.NoError(t, err)
	h.store.records["u-1"] = ranking.Record{
		UserID:         "u-1",
		CompositeScore: 300,
		ScoreChecksum:  sum,
	}

	res := h.loop.Process(context.Background(), ranking.NewJob("u-1", ranking.ReasonStudentUpdated))

	assert.Equal(t, OutcomeSkippedChecksum, res.Outcome)
	assert.InDelta(t, 300, res.Composite, 1e-9)
	assert.Zero(t, h.scorer.calls)
	assert.Empty(t, h.store.upserts)
}

func TestProcess_RescoresWhenChecksumDiffers(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-1"] = true
	h.store.records["u-1"] = ranking.Record{
		UserID:        "u-1",
		ScoreChecksum: "stale-checksum",
	}

	res := h.loop.Process(context.Background(), ranking.NewJob("u-1", ranking.ReasonStudentUpdated))

	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, 1, h.scorer.calls)
	require.Len(t, h.store.upserts, 1)
	assert.NotEqual(t, "stale-checksum", h.store.upserts[0].Checksum)
}

func TestProcess_ChecksumGuardCanBeDisabled(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-1"] = true
	h.loop.cfg.SkipChecksumGuard = true

	sum, err := scoring.Checksum(profile.Default("u-1"))
	require.NoError(t, err)
	h.store.records["u-1"] = ranking.Record{
		UserID:         "u-1",
		CompositeScore: 300,
		ScoreChecksum:  sum,
	}

	res := h.loop.Process(context.Background(), ranking.NewJob("u-1", ranking.ReasonStudentUpdated))

	// An unchanged profile is rescored anyway.
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, 1, h.scorer.calls)
	assert.Len(t, h.store.upserts, 1)
}

func TestProcess_VerificationGateCanBeDisabled(t *testing.T) {
	h := newHarness(t)
	h.loop.cfg.DisableVerificationGate = true

	res := h.loop.Process(context.Background(), ranking.NewJob("u-2", ranking.ReasonUserCreated))

	// The unverified user's result is written durably, never parked.
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Len(t, h.store.upserts, 1)
	assert.Empty(t, h.pending.parked)
}

func TestProcess_ParksUnverifiedUser(t *testing.T) {
	h := newHarness(t)

	res := h.loop.Process(context.Background(), ranking.NewJob("u-2", ranking.ReasonUserCreated))

	assert.Equal(t, OutcomeCachedPending, res.Outcome)
	assert.Empty(t, h.store.upserts)

	require.Len(t, h.pending.parked, 1)
	parked := h.pending.parked[0]
	assert.Equal(t, "u-2", parked.UserID)
	assert.Equal(t, "v1", parked.Version)
	assert.Equal(t, ranking.ReasonUserCreated, parked.Reason)
	assert.NotEmpty(t, parked.Checksum)
	assert.InDelta(t, 512.345, parked.Result.Composite, 1e-9)
}

func TestProcess_VerificationCheckFailsOpen(t *testing.T) {
	h := newHarness(t)
	h.verifier.err = errors.New("redis down")

	res := h.loop.Process(context.Background(), ranking.NewJob("u-3", ranking.ReasonStudentUpdated))

	assert.Equal(t, OutcomeProcessed, res.Outcome)
	require.Len(t, h.store.upserts, 1)
	assert.True(t, h.store.upserts[0].IsVerified)
	assert.Empty(t, h.pending.parked)
}

func TestProcess_DropsJobWithoutUserID(t *testing.T) {
	h := newHarness(t)

	res := h.loop.Process(context.Background(), ranking.Job{ID: "job-1"})

	assert.Equal(t, OutcomeDroppedInvalid, res.Outcome)
	assert.Error(t, res.Err)
	assert.Zero(t, h.scorer.calls)
	assert.Empty(t, h.store.upserts)
	assert.Empty(t, h.pending.parked)
}

func TestProcess_UsesInlineProfileBundle(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-4"] = true

	bundle := profile.Default("")
	bundle.AcademicYear = 2
	job := ranking.NewJob("u-4", ranking.ReasonStudentUpdated)
	job.Profile = &bundle

	res := h.loop.Process(context.Background(), job)

	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Zero(t, h.profiles.fetches)
}

func TestProcess_FailsOnTransientStoreError(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-5"] = true
	h.store.getErr = errors.New("connection refused")

	res := h.loop.Process(context.Background(), ranking.NewJob("u-5", ranking.ReasonStudentUpdated))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
	assert.Empty(t, h.store.upserts)
}

func TestProcess_FailsWhenScorerUnavailable(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-6"] = true
	h.scorer.err = scoring.ErrConfigUnavailable

	res := h.loop.Process(context.Background(), ranking.NewJob("u-6", ranking.ReasonManual))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, scoring.ErrConfigUnavailable)
	assert.Empty(t, h.store.upserts)
	assert.Empty(t, h.pending.parked)
}

func TestProcess_FailsWhenPendingCacheUnavailable(t *testing.T) {
	h := newHarness(t)
	h.pending.err = errors.New("redis down")

	res := h.loop.Process(context.Background(), ranking.NewJob("u-7", ranking.ReasonStudentUpdated))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Empty(t, h.store.upserts)
}

func TestRun_DrainsQueueUntilCancelled(t *testing.T) {
	h := newHarness(t)
	h.verifier.verified["u-1"] = true
	h.verifier.verified["u-2"] = true
	h.queue.jobs = []ranking.Job{
		ranking.NewJob("u-1", ranking.ReasonStudentUpdated),
		ranking.NewJob("u-2", ranking.ReasonStudentUpdated),
	}
	h.loop.cfg.DequeueTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	h.loop.Run(ctx)

	assert.Len(t, h.store.upserts, 2)
}
