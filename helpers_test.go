package remotecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/remotecache/envelope"
	"github.com/unkn0wn-root/remotecache/internal/slot"
)

type testObject struct {
	data     []byte
	shape    []int64
	dtype    envelope.DType
	format   envelope.Format
	released atomic.Int32
}

func newBlob(b []byte) *testObject {
	return &testObject{data: b, shape: []int64{int64(len(b))}, dtype: envelope.Uint8, format: envelope.FormatKVBlob}
}

func (o *testObject) Bytes() []byte           { return o.data }
func (o *testObject) Shape() []int64          { return o.shape }
func (o *testObject) DType() envelope.DType   { return o.dtype }
func (o *testObject) Format() envelope.Format { return o.format }
func (o *testObject) Release()                { o.released.Add(1) }

// testAlloc records every object it hands out and flags concurrent calls.
type testAlloc struct {
	mu         sync.Mutex
	objs       []*testObject
	fail       bool
	inside     atomic.Int32
	concurrent atomic.Bool
}

func (a *testAlloc) Allocate(shape []int64, dtype envelope.DType, format envelope.Format) MemoryObject {
	if a.inside.Add(1) > 1 {
		a.concurrent.Store(true)
	}
	defer a.inside.Add(-1)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return nil
	}
	n := int64(dtype.Size())
	for _, d := range shape {
		n *= d
	}
	o := &testObject{data: make([]byte, n), shape: shape, dtype: dtype, format: format}
	a.objs = append(a.objs, o)
	return o
}

func (a *testAlloc) setFail(v bool) {
	a.mu.Lock()
	a.fail = v
	a.mu.Unlock()
}

func (a *testAlloc) count() (allocated, released int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.objs {
		if o.released.Load() > 0 {
			released++
		}
	}
	return len(a.objs), released
}

type logEntry struct {
	level string
	msg   string
	f     Fields
}

type recLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level, msg, f})
	l.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f Fields) { l.add("debug", msg, f) }
func (l *recLogger) Info(msg string, f Fields)  { l.add("info", msg, f) }
func (l *recLogger) Warn(msg string, f Fields)  { l.add("warn", msg, f) }
func (l *recLogger) Error(msg string, f Fields) { l.add("error", msg, f) }

func (l *recLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

type hookCalls struct {
	missing  []string
	decode   []string
	alloc    []string
	failed   []string
	repaired []string
}

type recHooks struct {
	mu    sync.Mutex
	calls hookCalls
}

func (h *recHooks) record(fn func(*hookCalls)) {
	h.mu.Lock()
	fn(&h.calls)
	h.mu.Unlock()
}

func (h *recHooks) PayloadMissing(key string) {
	h.record(func(c *hookCalls) { c.missing = append(c.missing, key) })
}

func (h *recHooks) DecodeFailed(key string, _ error) {
	h.record(func(c *hookCalls) { c.decode = append(c.decode, key) })
}

func (h *recHooks) AllocationFailed(key string, _ int) {
	h.record(func(c *hookCalls) { c.alloc = append(c.alloc, key) })
}

func (h *recHooks) OperationFailed(op string, _ int, _ error) {
	h.record(func(c *hookCalls) { c.failed = append(c.failed, op) })
}

func (h *recHooks) MetadataRepaired(key string) {
	h.record(func(c *hookCalls) { c.repaired = append(c.repaired, key) })
}

func (h *recHooks) snapshot() hookCalls {
	h.mu.Lock()
	defer h.mu.Unlock()
	return hookCalls{
		missing:  append([]string(nil), h.calls.missing...),
		decode:   append([]string(nil), h.calls.decode...),
		alloc:    append([]string(nil), h.calls.alloc...),
		failed:   append([]string(nil), h.calls.failed...),
		repaired: append([]string(nil), h.calls.repaired...),
	}
}

type harness struct {
	c     *connector
	alloc *testAlloc
	hooks *recHooks
	logs  *recLogger
}

func newHarness(t *testing.T, cfg Config, mut func(*Options)) *harness {
	t.Helper()
	h := &harness{alloc: &testAlloc{}, hooks: &recHooks{}, logs: &recLogger{}}
	opts := Options{Config: cfg, Allocator: h.alloc, Hooks: h.hooks, Logger: h.logs}
	if mut != nil {
		mut(&opts)
	}
	c, err := newConnector(context.Background(), opts)
	if err != nil {
		t.Fatalf("newConnector: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	h.c = c
	return h
}

func standaloneHarness(t *testing.T, mut func(*Options)) (*harness, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return newHarness(t, Config{Endpoints: []string{mr.Addr()}}, mut), mr
}

// twoShards splits the slot space over two in-process servers.
func twoShards(a, b *miniredis.Miniredis) ClusterSlotsFunc {
	return func(context.Context) ([]redis.ClusterSlot, error) {
		return []redis.ClusterSlot{
			{Start: 0, End: 8191, Nodes: []redis.ClusterNode{{Addr: a.Addr()}}},
			{Start: 8192, End: slot.Count - 1, Nodes: []redis.ClusterNode{{Addr: b.Addr()}}},
		}, nil
	}
}

func shardedHarness(t *testing.T) (*harness, *miniredis.Miniredis, *miniredis.Miniredis) {
	t.Helper()
	a, b := miniredis.RunT(t), miniredis.RunT(t)
	h := newHarness(t, Config{Mode: ModeSharded, Endpoints: []string{a.Addr(), b.Addr()}}, func(o *Options) {
		o.ClusterSlots = twoShards(a, b)
	})
	return h, a, b
}

// home returns the server that owns key's pair in a twoShards layout.
func home(key string, a, b *miniredis.Miniredis) (own, other *miniredis.Miniredis) {
	if slot.Of(PairFor(key, true).Metadata) < 8192 {
		return a, b
	}
	return b, a
}

// replicate copies every key from src to dst, standing in for replication.
func replicate(t *testing.T, src, dst *miniredis.Miniredis) {
	t.Helper()
	for _, k := range src.Keys() {
		v, err := src.Get(k)
		if err != nil {
			t.Fatalf("replicate %q: %v", k, err)
		}
		if err := dst.Set(k, v); err != nil {
			t.Fatalf("replicate %q: %v", k, err)
		}
	}
}

func keysN(prefix string, n int) []CacheKey {
	out := make([]CacheKey, n)
	for i := range out {
		out[i] = StringKey(fmt.Sprintf("%s-%03d", prefix, i))
	}
	return out
}
