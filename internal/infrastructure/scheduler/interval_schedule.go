package scheduler

import (
	"fmt"
	"math/rand"
	"time"
)

// IntervalSchedule fires a job at a fixed interval, optionally staggered by a
// random jitter. Worker replicas all run the aggregation pass on the same
// interval; the jitter keeps them from contending for the aggregation lock at
// the same instant.
type IntervalSchedule struct {
	Interval time.Duration
	Jitter   time.Duration
}

// NewIntervalSchedule creates a fixed-interval schedule. Intervals below one
// second are raised to one second, the scheduler's tick resolution.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

// WithJitter returns a copy of the schedule that delays every run by a random
// amount in [0, jitter).
func (s *IntervalSchedule) WithJitter(jitter time.Duration) *IntervalSchedule {
	if jitter < 0 {
		jitter = 0
	}
	return &IntervalSchedule{Interval: s.Interval, Jitter: jitter}
}

// Next returns the next run time after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	next := t.Add(s.Interval)
	if s.Jitter > 0 {
		next = next.Add(time.Duration(rand.Int63n(int64(s.Jitter))))
	}
	return next
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	if s.Jitter > 0 {
		return fmt.Sprintf("@every %s (jitter up to %s)", s.Interval, s.Jitter)
	}
	return fmt.Sprintf("@every %s", s.Interval)
}
