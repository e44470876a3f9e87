// Package worker provides a bounded pool for fire-and-forget background jobs.
package worker

import (
	"context"
	"sync"

	"github.com/shelfgrab/shelfgrab/internal/logger"
)

// Job is one unit of background work.
type Job func(ctx context.Context) error

// Pool runs submitted jobs on a fixed number of goroutines. Submission never
// returns a result; job outcomes are logged.
type Pool struct {
	jobs   chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	logger *logger.Logger
}

// NewPool starts a pool with the given number of workers and queue capacity.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Get().WithComponent("worker_pool"),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}
	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		if err := job(p.ctx); err != nil {
			p.logger.Warn().Err(err).Int("worker", id).Msg("Background job failed")
		}
	}
}

// Submit enqueues a job, blocking while the queue is full. It reports false
// once the pool has been shut down.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- job
	return true
}

// Shutdown stops accepting jobs, lets queued ones finish and waits for the
// workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	p.cancel()
}
