package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rankhub/student-ranking-hub/pkg/metrics"
)

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent loops.
	Workers int

	// DepthInterval is how often the queue depth gauge is refreshed.
	DepthInterval time.Duration
}

// DefaultPoolConfig returns standard pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:       4,
		DepthInterval: 10 * time.Second,
	}
}

// Pool runs a fixed set of identical worker loops plus a queue depth
// reporter. Loops share nothing; per-user correctness relies on the checksum
// guard, not coordination.
type Pool struct {
	loop   *Loop
	cfg    PoolConfig
	logger *slog.Logger
}

// NewPool creates a pool around one loop definition.
func NewPool(loop *Loop, cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{loop: loop, cfg: cfg, logger: logger}
}

// Run starts the loops and blocks until the context is cancelled and every
// loop has drained its in-flight job.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool starting", "workers", p.cfg.Workers)
	metrics.UpdateWorkerCount(p.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop.Run(ctx)
			p.logger.Debug("worker loop stopped", "worker", id)
		}(i)
	}

	if p.cfg.DepthInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.reportDepth(ctx)
		}()
	}

	wg.Wait()
	metrics.UpdateWorkerCount(0)
	p.logger.Info("worker pool stopped")
}

func (p *Pool) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.DepthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := p.loop.queue.Len(ctx)
			if err != nil {
				p.logger.Debug("queue depth probe failed", "error", err)
				continue
			}
			metrics.UpdateQueueDepth(depth)
		}
	}
}
