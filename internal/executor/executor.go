// Package executor runs jobs one at a time on a single consumer goroutine,
// dequeuing by priority (lower value first) and by submission order within
// a priority.
package executor

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
)

// Priority ranks a job; lower values run first.
type Priority int

// ErrClosed is the result of a job submitted after Shutdown.
var ErrClosed = errors.New("executor: closed")

type job struct {
	prio Priority
	seq  uint64
	run  func()
}

type queue []*job

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].prio != q[j].prio {
		return q[i].prio < q[j].prio
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(*job)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return j
}

// Executor owns one consumer goroutine. Jobs never run concurrently with
// each other, so anything a job touches needs no further locking.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      queue
	seq    uint64
	closed bool
	done   chan struct{}
}

func New() *Executor {
	e := &Executor{done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.q) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.q) == 0 {
			// closed and drained
			e.mu.Unlock()
			return
		}
		j := heap.Pop(&e.q).(*job)
		e.mu.Unlock()

		j.run()
	}
}

func (e *Executor) push(j *job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	j.seq = e.seq
	e.seq++
	heap.Push(&e.q, j)
	e.cond.Signal()
	return true
}

// Pending returns the number of queued jobs that have not started.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.q)
}

// Shutdown stops accepting jobs. Everything already queued still runs.
// With wait=true it blocks until the queue is drained and the running job
// returned, or until ctx is done.
func (e *Executor) Shutdown(ctx context.Context, wait bool) error {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	if !wait {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the consumer has drained the queue after Shutdown.
func (e *Executor) Done() <-chan struct{} { return e.done }

// Future is the one-shot result of a submitted job.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Done is closed when the job has finished (or was rejected).
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx is done. Giving up on the wait
// does not cancel the job.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Discard hands the job's value to fn once the job finishes without error.
// Callers that gave up on Wait use it to release what the job produced.
func (f *Future[T]) Discard(fn func(T)) {
	go func() {
		<-f.done
		if f.err == nil {
			fn(f.val)
		}
	}()
}

// Submit queues fn at priority p. fn receives ctx stripped of its
// cancellation: a job always runs to completion once dequeued.
func Submit[T any](ctx context.Context, e *Executor, p Priority, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	jctx := context.WithoutCancel(ctx)
	j := &job{prio: p, run: func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("executor: job panicked: %v", r)
			}
		}()
		f.val, f.err = fn(jctx)
	}}
	if !e.push(j) {
		f.err = ErrClosed
		close(f.done)
	}
	return f
}
