package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
)

type fakeLocker struct {
	held     bool
	acqErr   error
	acquires int
	releases int
}

func (l *fakeLocker) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	l.acquires++
	if l.acqErr != nil {
		return false, l.acqErr
	}
	return !l.held, nil
}

func (l *fakeLocker) ReleaseLock(context.Context, string) error {
	l.releases++
	return nil
}

type fakeStore struct {
	records []ranking.Record
	listErr error
	saveErr error

	savedRecords   []ranking.Record
	savedHistogram []ranking.HistogramBucket
	savedStats     ranking.GlobalStats
	saves          int
}

func (s *fakeStore) ListRecords(context.Context) ([]ranking.Record, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]ranking.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *fakeStore) SaveRankings(_ context.Context, records []ranking.Record, histogram []ranking.HistogramBucket, stats ranking.GlobalStats) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.savedRecords = records
	s.savedHistogram = histogram
	s.savedStats = stats
	return nil
}

func record(userID string, composite float64) ranking.Record {
	return ranking.Record{
		UserID:          userID,
		CompositeScore:  composite,
		ExperienceScore: composite / 10,
		UpdatedAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRun_RebuildsRanksAndStats(t *testing.T) {
	lock := &fakeLocker{}
	store := &fakeStore{records: []ranking.Record{
		record("u-low", 200),
		record("u-high", 800),
		record("u-mid", 500),
	}}
	agg := New(lock, store, DefaultConfig("v1"), nil)

	outcome, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 1, lock.releases)

	require.Len(t, store.savedRecords, 3)
	assert.Equal(t, "u-high", store.savedRecords[0].UserID)
	assert.Equal(t, 1, store.savedRecords[0].RankPosition)
	assert.Equal(t, "u-mid", store.savedRecords[1].UserID)
	assert.Equal(t, 2, store.savedRecords[1].RankPosition)
	assert.Equal(t, "u-low", store.savedRecords[2].UserID)
	assert.Equal(t, 3, store.savedRecords[2].RankPosition)

	assert.Equal(t, 3, store.savedStats.TotalStudents)
	assert.Equal(t, "v1", store.savedStats.ConfigVersion)
	assert.False(t, store.savedStats.UpdatedAt.IsZero())
	assert.InDelta(t, 500.0, store.savedStats.MeanComposite, 1e-9)

	// Every ranked record lands in exactly one bucket.
	require.NotEmpty(t, store.savedHistogram)
	var total int
	for _, b := range store.savedHistogram {
		total += b.Count
	}
	assert.Equal(t, len(store.savedRecords), total)
}

func TestRun_SkipsWhenLockHeld(t *testing.T) {
	lock := &fakeLocker{held: true}
	store := &fakeStore{records: []ranking.Record{record("u-1", 100)}}
	agg := New(lock, store, DefaultConfig("v1"), nil)

	outcome, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, store.saves)
	assert.Zero(t, lock.releases)
}

func TestRun_ProceedsWhenLockStoreUnavailable(t *testing.T) {
	lock := &fakeLocker{acqErr: errors.New("redis down")}
	store := &fakeStore{records: []ranking.Record{record("u-1", 100)}}
	agg := New(lock, store, DefaultConfig("v1"), nil)

	outcome, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, 1, store.saves)
	// Never acquired, so never released.
	assert.Zero(t, lock.releases)
}

func TestRun_FailsWhenListUnavailable(t *testing.T) {
	lock := &fakeLocker{}
	store := &fakeStore{listErr: errors.New("connection refused")}
	agg := New(lock, store, DefaultConfig("v1"), nil)

	outcome, err := agg.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, lock.releases)
}

func TestRun_FailsWhenSaveUnavailable(t *testing.T) {
	lock := &fakeLocker{}
	store := &fakeStore{
		records: []ranking.Record{record("u-1", 100)},
		saveErr: errors.New("tx aborted"),
	}
	agg := New(lock, store, DefaultConfig("v1"), nil)

	outcome, err := agg.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
}

func TestRun_EmptyPopulation(t *testing.T) {
	lock := &fakeLocker{}
	store := &fakeStore{}
	agg := New(lock, store, DefaultConfig("v1"), nil)

	outcome, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Empty(t, store.savedRecords)
	assert.Empty(t, store.savedHistogram)
	assert.Equal(t, 0, store.savedStats.TotalStudents)
}
