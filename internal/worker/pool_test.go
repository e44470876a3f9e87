package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllJobs(t *testing.T) {
	pool := NewPool(4, 16)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		ok := pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			count.Add(1)
			return nil
		})
		assert.True(t, ok)
	}
	wg.Wait()
	pool.Shutdown()

	assert.Equal(t, int64(50), count.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2, 32)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	block := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		pool.Submit(func(ctx context.Context) error {
			defer wg.Done()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-block
			current.Add(-1)
			return nil
		})
	}

	close(block)
	wg.Wait()
	pool.Shutdown()

	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestPoolLogsFailedJobsAndContinues(t *testing.T) {
	pool := NewPool(1, 4)

	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(2)
	pool.Submit(func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("boom")
	})
	pool.Submit(func(ctx context.Context) error {
		defer wg.Done()
		ran.Add(1)
		return nil
	})
	wg.Wait()
	pool.Shutdown()

	assert.Equal(t, int64(1), ran.Load())
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Shutdown()

	ok := pool.Submit(func(ctx context.Context) error { return nil })
	assert.False(t, ok)

	// repeated shutdown is harmless
	pool.Shutdown()
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	pool := NewPool(1, 8)

	var count atomic.Int64
	for i := 0; i < 5; i++ {
		pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}
	pool.Shutdown()

	assert.Equal(t, int64(5), count.Load())
}
