// Package asynchook moves remotecache hook calls off the executor goroutine
// onto a bounded queue. Events are dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{PayloadMissingEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	rc, _ := remotecache.New(ctx, remotecache.Options{
//	    Config:    cfg,
//	    Allocator: memobj.NewAllocator(1 << 30),
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/remotecache"
)

type Hooks struct {
	inner   remotecache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ remotecache.Hooks = (*Hooks)(nil)

func New(inner remotecache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops intake and waits for queued events to run.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) PayloadMissing(k string)          { h.try(func() { h.inner.PayloadMissing(k) }) }
func (h *Hooks) DecodeFailed(k string, err error) { h.try(func() { h.inner.DecodeFailed(k, err) }) }
func (h *Hooks) AllocationFailed(k string, n int) { h.try(func() { h.inner.AllocationFailed(k, n) }) }
func (h *Hooks) MetadataRepaired(k string)        { h.try(func() { h.inner.MetadataRepaired(k) }) }
func (h *Hooks) OperationFailed(op string, n int, err error) {
	h.try(func() { h.inner.OperationFailed(op, n, err) })
}
