// Package resilience bounds the request rate against external providers.
package resilience

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/finsightai/finsight/pkg/fn"
)

// Limiter is a token-bucket rate limiter. The zero value is unusable;
// construct with NewLimiter.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter allows ratePerSec events with the given burst capacity.
// A non-positive rate disables limiting.
func NewLimiter(ratePerSec float64, burst int) *Limiter {
	if ratePerSec <= 0 {
		return &Limiter{l: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}

// LimitStage wraps a stage so each invocation waits for a token first.
func LimitStage[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}
