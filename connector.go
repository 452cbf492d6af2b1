package remotecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/unkn0wn-root/remotecache/envelope"
	"github.com/unkn0wn-root/remotecache/internal/executor"
	"github.com/unkn0wn-root/remotecache/internal/gate"
)

// State is the connector lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Priority orders queued operations; lower runs first.
type Priority int

const (
	PriorityPeek     Priority = iota // Exists, BatchedContains
	PriorityPrefetch                 // BatchedGet
	PriorityGet                      // Get
	PriorityPut                      // Put, BatchedPut
)

type connector struct {
	cfg   Config
	topo  topology
	exec  *executor.Executor
	gate  *gate.Gate
	alloc Allocator
	codec envelope.Codec
	log   Logger
	hooks Hooks

	state    atomic.Int32
	closed   chan struct{}
	closeErr error
}

func newConnector(ctx context.Context, opts Options) (*connector, error) {
	if opts.Allocator == nil {
		return nil, fmt.Errorf("remotecache: allocator is required")
	}
	cfg, err := opts.Config.withDefaults()
	if err != nil {
		return nil, err
	}

	c := &connector{
		cfg:    cfg,
		alloc:  opts.Allocator,
		gate:   gate.New(cfg.MaxConnections),
		closed: make(chan struct{}),
	}
	c.codec = coalesce[envelope.Codec](opts.Codec, envelope.Binary{})
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	c.topo = newTopology(cfg, opts.ClusterSlots)
	if err := c.connect(ctx); err != nil {
		c.log.Error("remote cache connection failed", Fields{"mode": cfg.Mode, "endpoints": cfg.Endpoints, "err": err})
		return nil, err
	}

	c.exec = executor.New()
	c.state.Store(int32(StateReady))
	c.log.Info("remote cache connected", Fields{
		"mode":            cfg.Mode,
		"endpoints":       cfg.Endpoints,
		"chunk_size":      cfg.ChunkSize,
		"max_connections": c.gate.Size(),
	})
	return c, nil
}

// connect runs the topology handshake off the caller's goroutine so the
// timeout holds even if the client ignores ctx.
func (c *connector) connect(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	res := make(chan error, 1)
	go func() { res <- c.topo.connect(ctx) }()

	var err error
	select {
	case err = <-res:
		// a client read deadline derived from ctx surfaces as an i/o timeout
		cause := ctx.Err()
		if cause == nil && errors.Is(err, os.ErrDeadlineExceeded) {
			cause = context.DeadlineExceeded
		}
		if err != nil && cause != nil && !errors.Is(err, cause) {
			err = fmt.Errorf("%w: %v", cause, err)
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err == nil {
		return nil
	}
	_ = c.topo.close()
	c.state.Store(int32(StateClosed))
	close(c.closed)
	return &ConnectionSetupError{Mode: c.cfg.Mode, Endpoints: c.cfg.Endpoints, Err: err}
}

func (c *connector) State() State { return State(c.state.Load()) }

func (c *connector) ready() error {
	switch c.State() {
	case StateReady:
		return nil
	case StateClosing, StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// Close stops intake, lets every queued job finish, then closes the
// clients. If ctx ends first Close returns ctx.Err() and the release
// completes in the background.
func (c *connector) Close(ctx context.Context) error {
	first := c.state.CompareAndSwap(int32(StateReady), int32(StateClosing))
	if first {
		_ = c.exec.Shutdown(ctx, false)
		go c.release()
	}
	select {
	case <-c.closed:
		if first {
			return c.closeErr
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *connector) release() {
	<-c.exec.Done()
	if err := c.topo.close(); err != nil {
		c.closeErr = err
		c.log.Error("remote cache close failed", Fields{"mode": c.cfg.Mode, "err": err})
	}
	c.state.Store(int32(StateClosed))
	close(c.closed)
	c.log.Info("remote cache closed", Fields{"mode": c.cfg.Mode})
}

// submit hands fn to the executor and waits for its result. If ctx ends
// first the job still runs; drop, when set, receives its value then.
func submit[T any](ctx context.Context, c *connector, p Priority, fn func(context.Context) (T, error), drop func(T)) (T, error) {
	var zero T
	if err := c.ready(); err != nil {
		return zero, err
	}
	fut := executor.Submit(ctx, c.exec, executor.Priority(p), fn)
	v, err := fut.Wait(ctx)
	if errors.Is(err, executor.ErrClosed) {
		return zero, ErrClosed
	}
	if err != nil && ctx.Err() != nil && drop != nil {
		fut.Discard(drop)
	}
	return v, err
}

func (c *connector) Exists(ctx context.Context, key CacheKey) (bool, error) {
	return submit(ctx, c, PriorityPeek, func(ctx context.Context) (bool, error) {
		return c.exists(ctx, key.String()), nil
	}, nil)
}

type getResult struct {
	obj MemoryObject
	ok  bool
}

func (c *connector) Get(ctx context.Context, key CacheKey) (MemoryObject, bool, error) {
	r, err := submit(ctx, c, PriorityGet, func(ctx context.Context) (getResult, error) {
		obj, ok := c.get(ctx, key.String())
		return getResult{obj, ok}, nil
	}, func(r getResult) {
		if r.ok {
			r.obj.Release()
		}
	})
	return r.obj, r.ok, err
}

func (c *connector) Put(ctx context.Context, key CacheKey, obj MemoryObject) error {
	_, err := submit(ctx, c, PriorityPut, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.put(ctx, key.String(), obj)
	}, nil)
	return err
}

func (c *connector) BatchedPut(ctx context.Context, keys []CacheKey, objs []MemoryObject) error {
	if len(keys) != len(objs) {
		return fmt.Errorf("%w: %d keys, %d objects", ErrLengthMismatch, len(keys), len(objs))
	}
	_, err := submit(ctx, c, PriorityPut, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.batchedPut(ctx, names(keys), objs)
	}, nil)
	return err
}

func (c *connector) BatchedContains(ctx context.Context, lookupID string, keys []CacheKey, _ bool) (int, error) {
	return submit(ctx, c, PriorityPeek, func(ctx context.Context) (int, error) {
		return c.batchedContains(ctx, lookupID, names(keys)), nil
	}, nil)
}

func (c *connector) BatchedGet(ctx context.Context, lookupID string, keys []CacheKey) ([]MemoryObject, error) {
	return submit(ctx, c, PriorityPrefetch, func(ctx context.Context) ([]MemoryObject, error) {
		return c.batchedGet(ctx, lookupID, names(keys)), nil
	}, releaseAll)
}

func releaseAll(objs []MemoryObject) {
	for _, o := range objs {
		o.Release()
	}
}

func names(keys []CacheKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
