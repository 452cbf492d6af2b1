// Package memobj is a reference Allocator: heap buffers sized from shape
// and dtype, reference counted and charged against an optional byte budget.
package memobj

import (
	"sync/atomic"

	"github.com/unkn0wn-root/remotecache"
	"github.com/unkn0wn-root/remotecache/envelope"
)

var _ remotecache.Allocator = (*Allocator)(nil)

// Allocator hands out Objects while the budget allows.
type Allocator struct {
	budget int64 // 0 => unlimited
	used   atomic.Int64
	live   atomic.Int64
}

// NewAllocator returns an allocator capped at budget bytes (<= 0 => no cap).
func NewAllocator(budget int64) *Allocator {
	if budget < 0 {
		budget = 0
	}
	return &Allocator{budget: budget}
}

// Allocate returns nil when the size cannot be derived (unknown dtype,
// negative dims, overflow) or the budget would be exceeded.
func (a *Allocator) Allocate(shape []int64, dtype envelope.DType, format envelope.Format) remotecache.MemoryObject {
	n, ok := SizeOf(shape, dtype)
	if !ok || n < 0 {
		return nil
	}
	for {
		used := a.used.Load()
		if a.budget > 0 && used+n > a.budget {
			return nil
		}
		if a.used.CompareAndSwap(used, used+n) {
			break
		}
	}
	a.live.Add(1)
	o := newObject(make([]byte, n), shape, dtype, format)
	o.onFree = func() {
		a.used.Add(-n)
		a.live.Add(-1)
	}
	return o
}

func (a *Allocator) Used() int64   { return a.used.Load() }
func (a *Allocator) Live() int64   { return a.live.Load() }
func (a *Allocator) Budget() int64 { return a.budget }

// SizeOf is dtype.Size() * prod(shape), false if that cannot be computed.
func SizeOf(shape []int64, dtype envelope.DType) (int64, bool) {
	return envelope.Metadata{Shape: shape, DType: dtype}.ByteSize()
}

// Object is a reference-counted buffer. It starts with one reference.
type Object struct {
	data   []byte
	shape  []int64
	dtype  envelope.DType
	format envelope.Format
	refs   atomic.Int32
	onFree func()
}

var _ remotecache.MemoryObject = (*Object)(nil)

// New wraps data without charging any allocator, e.g. to Put caller-built
// tensors. data is not copied.
func New(data []byte, shape []int64, dtype envelope.DType, format envelope.Format) *Object {
	return newObject(data, shape, dtype, format)
}

func newObject(data []byte, shape []int64, dtype envelope.DType, format envelope.Format) *Object {
	o := &Object{
		data:   data,
		shape:  append([]int64(nil), shape...),
		dtype:  dtype,
		format: format,
	}
	o.refs.Store(1)
	return o
}

// Bytes is nil once the last reference is gone.
func (o *Object) Bytes() []byte {
	if o.refs.Load() <= 0 {
		return nil
	}
	return o.data
}

func (o *Object) Shape() []int64          { return o.shape }
func (o *Object) DType() envelope.DType   { return o.dtype }
func (o *Object) Format() envelope.Format { return o.format }
func (o *Object) RefCount() int32         { return o.refs.Load() }

func (o *Object) Retain() { o.refs.Add(1) }

// Release drops one reference. Extra releases are ignored.
func (o *Object) Release() {
	for {
		n := o.refs.Load()
		if n <= 0 {
			return
		}
		if o.refs.CompareAndSwap(n, n-1) {
			if n == 1 && o.onFree != nil {
				o.onFree()
			}
			return
		}
	}
}
