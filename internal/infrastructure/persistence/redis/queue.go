package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rankhub/student-ranking-hub/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// JobQueue is the FIFO recompute queue over a Redis list. Producers RPUSH,
// workers BLPOP; delivery is at-least-once, so a job popped by a worker that
// dies mid-flight is lost until the next profile update re-enqueues the user.
// Consumers must therefore treat every job as a full recompute, never a delta.
type JobQueue struct {
	cache *Cache
	key   string
}

// NewJobQueue creates a queue over the standard ranking_jobs list.
func NewJobQueue(cache *Cache) *JobQueue {
	return &JobQueue{cache: cache, key: QueueRankingJobs}
}

// Enqueue appends a job to the tail of the queue.
func (q *JobQueue) Enqueue(ctx context.Context, job ranking.Job) error {
	if err := q.cache.RPush(ctx, q.key, job); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", job.UserID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. The second return value is
// false when the wait expired with an empty queue.
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (ranking.Job, bool, error) {
	raw, err := q.cache.BLPop(ctx, timeout, q.key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return ranking.Job{}, false, nil
		}
		return ranking.Job{}, false, fmt.Errorf("queue: dequeue: %w", err)
	}

	var job ranking.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return ranking.Job{}, false, fmt.Errorf("queue: %w: %v", ErrCacheSerialization, err)
	}
	return job, true, nil
}

// Len returns the number of jobs currently waiting.
func (q *JobQueue) Len(ctx context.Context) (int64, error) {
	return q.cache.LLen(ctx, q.key)
}
