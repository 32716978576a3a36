package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GlobalLimiter enforces a process-wide minimum interval between outbound
// search calls, shared across every caller regardless of which backend
// handles the request.
type GlobalLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	last    time.Time
	minGap  time.Duration
}

// NewGlobalLimiter builds a limiter that allows at most one call per minGap,
// with a single-request burst.
func NewGlobalLimiter(minGap time.Duration) *GlobalLimiter {
	if minGap <= 0 {
		minGap = time.Millisecond
	}
	return &GlobalLimiter{
		limiter: rate.NewLimiter(rate.Every(minGap), 1),
		minGap:  minGap,
	}
}

// Wait blocks until the rate limiter admits the next call or ctx is done.
func (g *GlobalLimiter) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	g.last = time.Now()
	g.mu.Unlock()
	return nil
}

// LastCall reports when the most recent call was admitted.
func (g *GlobalLimiter) LastCall() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
