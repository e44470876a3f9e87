// Package util holds small shared helpers.
package util

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RateLimiter is a token bucket used to pace outbound requests against
// bot-sensitive services. A small random jitter is added to each wait so
// request timing does not look mechanical.
type RateLimiter struct {
	mu        sync.Mutex
	last      time.Time
	interval  time.Duration
	tokens    int
	maxTokens int
}

// NewRateLimiter creates a limiter allowing one request per interval with the
// given burst size.
func NewRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		last:      time.Now(),
		interval:  interval,
		tokens:    burst,
		maxTokens: burst,
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()

	now := time.Now()
	refill := int(now.Sub(r.last) / r.interval)
	if refill > 0 {
		r.tokens += refill
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.last = now
	}

	if r.tokens > 0 {
		r.tokens--
		r.mu.Unlock()
		return nil
	}

	// jitter up to 20% of the interval
	wait := r.interval + time.Duration(rand.Float64()*0.2*float64(r.interval))
	next := r.last.Add(wait)
	r.mu.Unlock()

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		r.mu.Lock()
		r.last = next
		r.tokens = 0
		r.mu.Unlock()
		return nil
	}
}
