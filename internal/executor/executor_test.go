package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// block occupies the consumer until the returned func is called.
func block(t *testing.T, e *Executor) (release func()) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	Submit(context.Background(), e, 0, func(context.Context) (struct{}, error) {
		close(started)
		<-gate
		return struct{}{}, nil
	})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("blocker never started")
	}
	return func() { close(gate) }
}

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) job(name string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return name, nil
	}
}

func TestHigherPriorityRunsFirst(t *testing.T) {
	ctx := context.Background()
	e := New()
	t.Cleanup(func() { _ = e.Shutdown(ctx, true) })

	release := block(t, e)
	rec := &recorder{}
	put := Submit(ctx, e, 3, rec.job("put"))
	exists := Submit(ctx, e, 0, rec.job("exists"))
	if got := e.Pending(); got != 2 {
		t.Fatalf("Pending=%d want 2", got)
	}
	release()

	if _, err := put.Wait(ctx); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := exists.Wait(ctx); err != nil {
		t.Fatalf("exists: %v", err)
	}
	if len(rec.order) != 2 || rec.order[0] != "exists" || rec.order[1] != "put" {
		t.Fatalf("order=%v want [exists put]", rec.order)
	}
}

func TestEqualPriorityIsFIFO(t *testing.T) {
	ctx := context.Background()
	e := New()
	t.Cleanup(func() { _ = e.Shutdown(ctx, true) })

	release := block(t, e)
	rec := &recorder{}
	names := []string{"a", "b", "c", "d", "e"}
	futs := make([]*Future[string], 0, len(names))
	for _, n := range names {
		futs = append(futs, Submit(ctx, e, 2, rec.job(n)))
	}
	// a lower priority job submitted in between must not jump ahead
	low := Submit(ctx, e, 5, rec.job("low"))
	release()

	for _, f := range futs {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := low.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	want := append(append([]string(nil), names...), "low")
	for i := range want {
		if rec.order[i] != want[i] {
			t.Fatalf("order=%v want %v", rec.order, want)
		}
	}
}

func TestJobErrorAndPanicDoNotStopLoop(t *testing.T) {
	ctx := context.Background()
	e := New()
	t.Cleanup(func() { _ = e.Shutdown(ctx, true) })

	boom := errors.New("boom")
	f1 := Submit(ctx, e, 1, func(context.Context) (int, error) { return 0, boom })
	f2 := Submit(ctx, e, 1, func(context.Context) (int, error) { panic("bad job") })
	f3 := Submit(ctx, e, 1, func(context.Context) (int, error) { return 7, nil })

	if _, err := f1.Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("f1 err=%v want boom", err)
	}
	if _, err := f2.Wait(ctx); err == nil {
		t.Fatalf("f2 expected panic converted to error")
	}
	if v, err := f3.Wait(ctx); err != nil || v != 7 {
		t.Fatalf("f3 v=%d err=%v", v, err)
	}
}

func TestShutdownDrainsQueued(t *testing.T) {
	ctx := context.Background()
	e := New()

	release := block(t, e)
	rec := &recorder{}
	futs := []*Future[string]{
		Submit(ctx, e, 1, rec.job("x")),
		Submit(ctx, e, 1, rec.job("y")),
	}

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- e.Shutdown(ctx, true) }()

	// wait for Shutdown to mark the executor closed; checks accepted before
	// that point are queued ahead of x and y and drain with them
	deadline := time.Now().Add(2 * time.Second)
	for rejected := false; !rejected; {
		f := Submit(ctx, e, 0, rec.job("check"))
		select {
		case <-f.Done():
			_, err := f.Wait(ctx)
			rejected = errors.Is(err, ErrClosed)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("executor never rejected submissions")
		}
		time.Sleep(time.Millisecond)
	}
	release()

	if err := <-shutdownErr; err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	for _, f := range futs {
		select {
		case <-f.Done():
		default:
			t.Fatalf("queued job not drained before Shutdown returned")
		}
	}
	if rec.order[len(rec.order)-2] != "x" || rec.order[len(rec.order)-1] != "y" {
		t.Fatalf("order=%v want x,y last", rec.order)
	}
}

func TestShutdownWithoutWaitAndIdempotent(t *testing.T) {
	ctx := context.Background()
	e := New()
	if err := e.Shutdown(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(ctx, true); err != nil {
		t.Fatal(err)
	}
	select {
	case <-e.Done():
	default:
		t.Fatalf("consumer still running after drained shutdown")
	}
}

func TestWaitHonoursCallerContextButJobCompletes(t *testing.T) {
	e := New()
	t.Cleanup(func() { _ = e.Shutdown(context.Background(), true) })

	release := block(t, e)
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan error, 1)
	f := Submit(ctx, e, 1, func(jctx context.Context) (bool, error) {
		ran <- jctx.Err()
		return true, nil
	})
	cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait err=%v want context.Canceled", err)
	}
	release()

	select {
	case err := <-ran:
		if err != nil {
			t.Fatalf("job context carried cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job was dropped after caller gave up")
	}
	if v, err := f.Wait(context.Background()); err != nil || !v {
		t.Fatalf("v=%v err=%v", v, err)
	}
}

func TestDiscardReceivesValueOfAbandonedJob(t *testing.T) {
	e := New()
	t.Cleanup(func() { _ = e.Shutdown(context.Background(), true) })

	release := block(t, e)
	ctx, cancel := context.WithCancel(context.Background())
	ok := Submit(ctx, e, 1, func(context.Context) (int, error) { return 42, nil })
	failed := Submit(ctx, e, 1, func(context.Context) (int, error) { return 13, errors.New("boom") })
	cancel()
	if _, err := ok.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait err=%v want context.Canceled", err)
	}

	got := make(chan int, 2)
	ok.Discard(func(v int) { got <- v })
	failed.Discard(func(v int) { got <- v })
	release()

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("discarded value %d want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("discard never ran")
	}
	<-failed.Done()
	select {
	case v := <-got:
		t.Fatalf("discard ran for a failed job with %d", v)
	case <-time.After(20 * time.Millisecond):
	}
}
