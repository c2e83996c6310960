package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(5*time.Minute), s.Next(now))
	assert.Equal(t, "@every 5m0s", s.String())
}

func TestIntervalSchedule_FloorsSubSecondIntervals(t *testing.T) {
	s := NewIntervalSchedule(50 * time.Millisecond)
	assert.Equal(t, time.Second, s.Interval)
}

func TestIntervalSchedule_JitterStaysWithinBounds(t *testing.T) {
	s := NewIntervalSchedule(time.Minute).WithJitter(10 * time.Second)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		next := s.Next(now)
		assert.False(t, next.Before(now.Add(time.Minute)))
		assert.True(t, next.Before(now.Add(time.Minute+10*time.Second)))
	}
	assert.Contains(t, s.String(), "jitter")
}

func TestIntervalSchedule_NegativeJitterIsIgnored(t *testing.T) {
	s := NewIntervalSchedule(time.Minute).WithJitter(-time.Second)
	now := time.Now()

	assert.Equal(t, now.Add(time.Minute), s.Next(now))
	assert.Equal(t, "@every 1m0s", s.String())
}
