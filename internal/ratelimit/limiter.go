package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces consecutive LLM calls by a minimum interval derived from a
// requests-per-minute budget. Callers block in Acquire until eligible.
type Limiter struct {
	lim *rate.Limiter
}

// NewPerMinute builds a limiter; rpm <= 0 disables limiting.
func NewPerMinute(rpm int) *Limiter {
	if rpm <= 0 {
		return &Limiter{}
	}
	return &Limiter{lim: rate.NewLimiter(rate.Every(Interval(rpm)), 1)}
}

// Interval returns the minimum spacing between calls for the given budget.
func Interval(rpm int) time.Duration {
	if rpm <= 0 {
		return 0
	}
	return time.Minute / time.Duration(rpm)
}

// Acquire waits until the next call is allowed or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return ctx.Err()
	}
	return l.lim.Wait(ctx)
}
