package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SequentialExecutor runs calls one at a time and spaces their starts at
// least interval apart. The first call runs immediately.
type SequentialExecutor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

// NewSequentialExecutor creates an executor; interval <= 0 disables pacing.
func NewSequentialExecutor(interval time.Duration) *SequentialExecutor {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &SequentialExecutor{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Execute waits for the previous call and the pacing interval, then runs fn.
func (se *SequentialExecutor) Execute(ctx context.Context, fn func() error) error {
	se.mu.Lock()
	defer se.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := se.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	return fn()
}

// Interval returns the configured spacing between calls.
func (se *SequentialExecutor) Interval() time.Duration {
	return se.interval
}
