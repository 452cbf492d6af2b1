// Package gate bounds the number of concurrent round trips against the store.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore that also tracks calls in flight.
type Gate struct {
	sem      *semaphore.Weighted
	size     int64
	inflight atomic.Int64
}

// New returns a gate admitting at most n concurrent calls (n <= 0 => 1).
func New(n int) *Gate {
	if n <= 0 {
		n = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(n)), size: int64(n)}
}

// Do runs fn once a slot is free. It returns ctx.Err() if ctx ends first.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inflight.Add(1)
	defer func() {
		g.inflight.Add(-1)
		g.sem.Release(1)
	}()
	return fn()
}

// Size is the number of concurrent calls admitted.
func (g *Gate) Size() int64 { return g.size }

// InFlight is the number of calls currently inside Do.
func (g *Gate) InFlight() int64 { return g.inflight.Load() }
