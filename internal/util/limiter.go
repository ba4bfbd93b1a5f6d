package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter to provide a simpler interface. Watch mode uses
// it to bound how many builds filesystem churn may trigger per minute.
type Limiter struct {
	inner *rate.Limiter
}

// NewPerMinute creates a token bucket refilling n tokens per minute with a
// burst of one, so bursts of events still build immediately once.
func NewPerMinute(n int) *Limiter {
	return &Limiter{
		inner: rate.NewLimiter(rate.Limit(float64(n)/60.0), 1),
	}
}

// Allow reports whether one more run may start now.
func (l *Limiter) Allow() bool {
	return l.inner.AllowN(time.Now(), 1)
}

// Wait blocks until a run may start.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.WaitN(ctx, 1)
}
