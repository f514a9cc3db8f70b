package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited throttles outbound calls to a provider with a token bucket.
// Callers block until a token is available or ctx ends.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p. rps <= 0 returns p unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Send(ctx context.Context, req ChatRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &NetworkError{Provider: r.Name(), Err: fmt.Errorf("rate limit wait: %w", err)}
	}
	return r.Provider.Send(ctx, req)
}
