package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles upstream page fetches so background refreshes triggered
// by a burst of cache hits cannot hammer the forecast site. A nil or
// unlimited Limiter never blocks. It is safe for concurrent use.
type Limiter struct {
	lim *rate.Limiter
}

// NewLimiter allows rps requests per second with the given burst. rps <= 0
// disables limiting. A burst below 1 is raised to 1.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.lim == nil {
		return nil
	}
	return l.lim.Wait(ctx)
}

// Unlimited reports whether Wait never blocks.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.lim == nil
}
