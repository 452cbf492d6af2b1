// Package envelope describes and encodes the small metadata record stored
// next to every payload: its byte length, tensor shape, element type and
// memory layout.
//
// The connector treats encoded envelopes as opaque bytes. Binary is the
// default codec; CBOR, Msgpack, JSON and Protobuf exist for deployments that
// share the store with other readers.
package envelope

import (
	"errors"
	"fmt"
	"math"
)

// DType is the element type of the payload.
type DType uint8

const (
	DTypeUnknown DType = iota
	Float16
	BFloat16
	Float32
	Float64
	Uint8
	Int8
	Int32
	Int64
	Float8E4M3
	Float8E5M2
)

var dtypeInfo = [...]struct {
	name string
	size int
}{
	DTypeUnknown: {"unknown", 0},
	Float16:      {"float16", 2},
	BFloat16:     {"bfloat16", 2},
	Float32:      {"float32", 4},
	Float64:      {"float64", 8},
	Uint8:        {"uint8", 1},
	Int8:         {"int8", 1},
	Int32:        {"int32", 4},
	Int64:        {"int64", 8},
	Float8E4M3:   {"float8_e4m3", 1},
	Float8E5M2:   {"float8_e5m2", 1},
}

// Size is the element width in bytes; 0 for unknown types.
func (d DType) Size() int {
	if int(d) < len(dtypeInfo) {
		return dtypeInfo[d].size
	}
	return 0
}

func (d DType) String() string {
	if int(d) < len(dtypeInfo) {
		return dtypeInfo[d].name
	}
	return fmt.Sprintf("dtype(%d)", uint8(d))
}

// Format is the memory layout of the payload. Values are opaque to this
// package beyond the named constants.
type Format uint8

const (
	FormatUndefined Format = iota
	FormatKV2LTD
	FormatKVT2D
	FormatKVBlob
	FormatKVMLA
)

var ErrInvalid = errors.New("envelope: invalid metadata")

// Metadata is the envelope describing one stored payload.
type Metadata struct {
	Length int     `json:"length"`
	Shape  []int64 `json:"shape"`
	DType  DType   `json:"dtype"`
	Format Format  `json:"format"`
}

// Elements is the product of Shape (1 for a scalar). The result is
// meaningless for envelopes that fail Validate.
func (m Metadata) Elements() int64 {
	n, _ := product(m.Shape, 1)
	return n
}

// ByteSize is Elements() * DType.Size(). ok is false for an unknown dtype,
// a negative dimension or a product that overflows int64.
func (m Metadata) ByteSize() (int64, bool) {
	sz := int64(m.DType.Size())
	if sz == 0 {
		return 0, false
	}
	return product(m.Shape, sz)
}

func product(shape []int64, n int64) (int64, bool) {
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		if d != 0 && n > math.MaxInt64/d {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// Validate rejects envelopes no writer could have produced. When the dtype
// is known, Length must equal the byte size the shape implies.
func (m Metadata) Validate() error {
	if m.Length < 0 {
		return fmt.Errorf("%w: negative length %d", ErrInvalid, m.Length)
	}
	for i, d := range m.Shape {
		if d < 0 {
			return fmt.Errorf("%w: negative dimension %d at %d", ErrInvalid, d, i)
		}
	}
	if _, ok := product(m.Shape, 1); !ok {
		return fmt.Errorf("%w: shape %v overflows", ErrInvalid, m.Shape)
	}
	if m.DType.Size() == 0 {
		return nil
	}
	n, ok := m.ByteSize()
	if !ok {
		return fmt.Errorf("%w: shape %v of %s overflows", ErrInvalid, m.Shape, m.DType)
	}
	if n != int64(m.Length) {
		return fmt.Errorf("%w: shape %v of %s is %d bytes, length is %d", ErrInvalid, m.Shape, m.DType, n, m.Length)
	}
	return nil
}
