package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Completer with a token bucket.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

var _ Completer = (*RateLimited)(nil)

// NewLimiter returns a limiter allowing rps requests per second, or nil when rps <= 0.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewRateLimited gates next behind limiter. A nil limiter returns next unchanged.
// Several completers may share one limiter.
func NewRateLimited(next Completer, limiter *rate.Limiter) Completer {
	if limiter == nil {
		return next
	}
	return &RateLimited{next: next, limiter: limiter}
}

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Complete(ctx, messages)
}
