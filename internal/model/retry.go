package model

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the total primary-provider attempts per call.
	DefaultMaxAttempts = 3
	// DefaultInitialDelay seeds the doubling backoff component.
	DefaultInitialDelay = 2 * time.Second
	// DefaultRateLimitStep scales the linear wait added per attempt when the
	// provider throttles.
	DefaultRateLimitStep = 2 * time.Second
)

// RetryPolicy drives the attempt ladder for one completion call.
//
// After a failed attempt n (0-based), the wait before attempt n+1 is the
// current delay, plus n*RateLimitStep when the failure was a throttle. The
// delay component doubles after every failure either way. Once MaxAttempts
// attempts have failed the caller moves to its fallback.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	RateLimitStep time.Duration
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p RetryPolicy) initialDelay() time.Duration {
	if p.InitialDelay <= 0 {
		return DefaultInitialDelay
	}
	return p.InitialDelay
}

func (p RetryPolicy) rateLimitStep() time.Duration {
	if p.RateLimitStep <= 0 {
		return DefaultRateLimitStep
	}
	return p.RateLimitStep
}

// backoff returns the wait after failed attempt n and the doubled delay for
// the next round.
func (p RetryPolicy) backoff(attempt int, delay time.Duration, rateLimited bool) (wait, next time.Duration) {
	wait = delay
	if rateLimited {
		wait += time.Duration(attempt) * p.rateLimitStep()
	}
	return wait, delay * 2
}

// completeWithRetry runs one prompt through the completer under the retry
// ladder. It returns the first successful text, the last provider error once
// the attempt budget is exhausted, or the context error if the caller went
// away mid-ladder.
func completeWithRetry(ctx context.Context, c Completer, policy RetryPolicy, prompt string) (string, error) {
	attempts := policy.maxAttempts()
	delay := policy.initialDelay()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		text, err := c.Complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		wait, next := policy.backoff(attempt, delay, errors.Is(err, ErrRateLimited))
		delay = next
		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
