package ai

import (
	"context"
	"math/rand"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetry(attempts int) RetryConfig {
	if attempts <= 0 {
		attempts = 3
	}
	return RetryConfig{
		Attempts:  attempts,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  15 * time.Second,
	}
}

// WithRetry runs fn up to cfg.Attempts times, retrying transient provider
// errors with exponential backoff and jitter. Auth failures and anything
// outside the provider taxonomy return immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg, attempt)
			logutil.GetLogger(ctx).Warn("retrying provider call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return classifyTransport(op, ctx.Err())
			case <-time.After(delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	base := cfg.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	delay := base << uint(attempt-1)
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	// up to 20% jitter
	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	return delay + jitter
}
