// Package gate bounds concurrent model-provider calls for a run.
package gate

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultPermits is the model-call concurrency cap when none is configured.
const DefaultPermits = 15

// Gate is the shared permit pool for outbound model calls. One Gate is
// shared by every chunk-level and batch-level completion in a run, so the
// cap holds across pipeline phases. Tree fetching never acquires from it.
type Gate struct {
	sem     *semaphore.Weighted
	permits int
}

// New builds a gate with the given number of permits.
func New(permits int) (*Gate, error) {
	if permits <= 0 {
		return nil, fmt.Errorf("gate: permits must be at least 1, got %d", permits)
	}
	return &Gate{sem: semaphore.NewWeighted(int64(permits)), permits: permits}, nil
}

// Acquire blocks until a permit is free or ctx is done. Every successful
// Acquire must be paired with exactly one Release on all exit paths.
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release returns a permit to the pool.
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Permits reports the configured cap.
func (g *Gate) Permits() int {
	return g.permits
}
