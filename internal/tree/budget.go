package tree

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RequestBudget paces contents-API calls against the host's rate-limit
// accounting. Callers take one unit per API call; UpdateFromResponse feeds
// the headers of every response back in so the local picture tracks the
// server's.
//
// When the budget is exhausted before the advertised reset, callers block
// until the reset passes, then exactly one probe call goes out to observe
// the refreshed window. Retry-After responses put the whole budget into a
// cooldown that all callers respect.
type RequestBudget struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	now       func() time.Time
	probed    bool
	cooldown  time.Time
	notifyCh  chan struct{}
}

// defaultRemaining is the authenticated core-API allowance; the first
// response corrects it.
const defaultRemaining = 5000

func NewRequestBudget() *RequestBudget {
	return &RequestBudget{
		remaining: defaultRemaining,
		reset:     time.Now().Add(1 * time.Hour),
		now:       time.Now,
		notifyCh:  make(chan struct{}),
	}
}

// Remaining reports the locally tracked allowance.
func (b *RequestBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Acquire takes one unit of budget, blocking through cooldowns and
// exhaustion until a unit is available or ctx is done.
func (b *RequestBudget) Acquire(ctx context.Context) error {
	if b == nil || b.now == nil || b.notifyCh == nil {
		return errors.New("request budget: not initialized (use NewRequestBudget)")
	}

	for {
		b.mu.Lock()
		now := b.now()

		if now.Before(b.cooldown) {
			until := b.cooldown
			ch := b.notifyCh
			b.mu.Unlock()
			if err := waitBudget(ctx, now, until, ch); err != nil {
				return err
			}
			continue
		}

		if b.remaining > 0 {
			b.remaining--
			b.mu.Unlock()
			return nil
		}

		// Past the reset with no refreshed headers observed yet: let exactly
		// one probe through, then block until UpdateFromResponse reports in.
		if !now.Before(b.reset) {
			if !b.probed {
				b.probed = true
				b.mu.Unlock()
				return nil
			}
			ch := b.notifyCh
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ch:
				continue
			}
		}

		reset := b.reset
		ch := b.notifyCh
		b.mu.Unlock()
		if err := waitBudget(ctx, now, reset, ch); err != nil {
			return err
		}
	}
}

// waitBudget sleeps until the deadline passes, the budget signals a change,
// or ctx is done.
func waitBudget(ctx context.Context, now, until time.Time, ch <-chan struct{}) error {
	wait := until.Sub(now)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	case <-timer.C:
		return nil
	}
}

func (b *RequestBudget) signalLocked() {
	if b.notifyCh == nil {
		b.notifyCh = make(chan struct{})
		return
	}
	close(b.notifyCh)
	b.notifyCh = make(chan struct{})
}

// UpdateFromResponse folds rate-limit headers into the budget. Retry-After
// starts a cooldown; X-RateLimit-Remaining and X-RateLimit-Reset replace the
// local estimates. Any change wakes blocked acquirers.
func (b *RequestBudget) UpdateFromResponse(resp *http.Response) {
	if resp == nil || b == nil || b.now == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			until := b.now().Add(time.Duration(seconds) * time.Second)
			if until.After(b.cooldown) {
				b.cooldown = until
				changed = true
			}
		}
	}

	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil && val >= 0 && b.remaining != val {
			b.remaining = val
			changed = true
		}
	}

	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil && val > 0 {
			newReset := time.Unix(val, 0)
			if !b.reset.Equal(newReset) {
				b.reset = newReset
				changed = true
			}
		}
	}

	if changed {
		b.probed = false
		b.signalLocked()
	}
}
