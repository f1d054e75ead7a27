package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// scriptedCompleter fails with the scripted errors in order, then succeeds.
type scriptedCompleter struct {
	errs  []error
	calls int
	waits []time.Time
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(_ context.Context, _ string) (string, error) {
	s.waits = append(s.waits, time.Now())
	i := s.calls
	s.calls++
	if i < len(s.errs) {
		return "", s.errs[i]
	}
	return "ok", nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, RateLimitStep: time.Millisecond}
}

func TestCompleteWithRetry_SucceedsFirstAttempt(t *testing.T) {
	c := &scriptedCompleter{}
	got, err := completeWithRetry(context.Background(), c, fastPolicy(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || c.calls != 1 {
		t.Fatalf("got %q after %d calls, want ok after 1", got, c.calls)
	}
}

func TestCompleteWithRetry_RecoversWithinBudget(t *testing.T) {
	c := &scriptedCompleter{errs: []error{
		fmt.Errorf("upstream: %w", ErrRateLimited),
		errors.New("transient"),
	}}
	got, err := completeWithRetry(context.Background(), c, fastPolicy(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || c.calls != 3 {
		t.Fatalf("got %q after %d calls, want ok after 3", got, c.calls)
	}
}

func TestCompleteWithRetry_ExhaustsBudget(t *testing.T) {
	boom := errors.New("boom")
	c := &scriptedCompleter{errs: []error{boom, boom, boom, boom}}
	_, err := completeWithRetry(context.Background(), c, fastPolicy(), "p")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want last provider error", err)
	}
	if c.calls != 3 {
		t.Fatalf("made %d calls, want exactly MaxAttempts (3)", c.calls)
	}
}

func TestCompleteWithRetry_NoSleepAfterFinalAttempt(t *testing.T) {
	boom := errors.New("boom")
	c := &scriptedCompleter{errs: []error{boom, boom, boom}}
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: 30 * time.Millisecond, RateLimitStep: time.Millisecond}

	start := time.Now()
	_, err := completeWithRetry(context.Background(), c, policy, "p")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error")
	}
	// Two sleeps (30ms + 60ms) between three attempts; a third sleep would
	// push well past 150ms.
	if elapsed > 150*time.Millisecond {
		t.Errorf("ladder took %v, suggesting a sleep after the final attempt", elapsed)
	}
}

func TestCompleteWithRetry_ContextCanceledDuringBackoff(t *testing.T) {
	boom := errors.New("boom")
	c := &scriptedCompleter{errs: []error{boom, boom, boom}}
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := completeWithRetry(ctx, c, policy, "p")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v to observe", elapsed)
	}
	if c.calls != 1 {
		t.Errorf("made %d calls, want 1 before canceled backoff", c.calls)
	}
}

func TestRetryPolicy_BackoffSchedule(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, InitialDelay: 2 * time.Second, RateLimitStep: 2 * time.Second}

	t.Run("rate limited adds linear component and doubles", func(t *testing.T) {
		delay := policy.initialDelay()
		wantWaits := []time.Duration{
			2 * time.Second,  // attempt 0: 2s + 0*2s
			6 * time.Second,  // attempt 1: 4s + 1*2s
			12 * time.Second, // attempt 2: 8s + 2*2s
		}
		for attempt, want := range wantWaits {
			wait, next := policy.backoff(attempt, delay, true)
			if wait != want {
				t.Errorf("attempt %d: wait = %v, want %v", attempt, wait, want)
			}
			delay = next
		}
	})

	t.Run("other errors double without linear component", func(t *testing.T) {
		delay := policy.initialDelay()
		wantWaits := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
		for attempt, want := range wantWaits {
			wait, next := policy.backoff(attempt, delay, false)
			if wait != want {
				t.Errorf("attempt %d: wait = %v, want %v", attempt, wait, want)
			}
			delay = next
		}
	})
}

func TestRetryPolicy_Defaults(t *testing.T) {
	var p RetryPolicy
	if got := p.maxAttempts(); got != DefaultMaxAttempts {
		t.Errorf("maxAttempts() = %d, want %d", got, DefaultMaxAttempts)
	}
	if got := p.initialDelay(); got != DefaultInitialDelay {
		t.Errorf("initialDelay() = %v, want %v", got, DefaultInitialDelay)
	}
	if got := p.rateLimitStep(); got != DefaultRateLimitStep {
		t.Errorf("rateLimitStep() = %v, want %v", got, DefaultRateLimitStep)
	}
}
