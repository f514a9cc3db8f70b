package providers

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig controls exponential backoff for transient gateway failures.
type RetryConfig struct {
	MaxRetries int           // 0 = no retry
	BaseDelay  time.Duration // initial backoff delay (default 500ms)
	MaxDelay   time.Duration // maximum backoff delay (default 10s)
}

// DefaultRetryConfig disables retries; the loop treats a failed call as terminal.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 0,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

// Retrying re-sends a request when IsRetryable reports a transient failure.
type Retrying struct {
	Provider
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps p. MaxRetries <= 0 returns p unchanged.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxRetries <= 0 {
		return p
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return &Retrying{Provider: p, cfg: cfg, sleep: sleepCtx}
}

func (r *Retrying) Send(ctx context.Context, req ChatRequest) (string, error) {
	var (
		out string
		err error
	)
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		out, err = r.Provider.Send(ctx, req)
		if err == nil || !IsRetryable(err) || attempt == r.cfg.MaxRetries {
			return out, err
		}
		delay := backoffWithJitter(r.cfg.BaseDelay, r.cfg.MaxDelay, attempt)
		slog.Warn("provider call failed, retrying", "provider", r.Name(), "attempt", attempt+1, "delay", delay, "error", err)
		if serr := r.sleep(ctx, delay); serr != nil {
			return "", err
		}
	}
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffWithJitter computes delay = min(base * 2^attempt, max) + jitter(±25%).
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		delay = max
	}

	quarter := delay / 4
	if quarter > 0 {
		jitter := time.Duration(rand.Int64N(int64(quarter*2))) - quarter
		delay += jitter
	}
	return delay
}
