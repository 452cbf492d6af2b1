package remotecache

import "github.com/unkn0wn-root/remotecache/envelope"

// MemoryObject is a caller-owned, reference-counted buffer.
//
// Bytes returns the mutable backing storage; it must be at least as long
// as the payload written into it. Release drops one reference.
type MemoryObject interface {
	Bytes() []byte
	Shape() []int64
	DType() envelope.DType
	Format() envelope.Format
	Release()
}

// Allocator hands out buffers for fetched payloads. It returns nil when
// local memory is exhausted. The connector only calls it from its executor
// goroutine.
type Allocator interface {
	Allocate(shape []int64, dtype envelope.DType, format envelope.Format) MemoryObject
}

// AllocatorFunc adapts a function to Allocator.
type AllocatorFunc func(shape []int64, dtype envelope.DType, format envelope.Format) MemoryObject

func (f AllocatorFunc) Allocate(shape []int64, dtype envelope.DType, format envelope.Format) MemoryObject {
	return f(shape, dtype, format)
}
