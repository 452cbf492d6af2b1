package envelope

import (
	"fmt"
	"math"

	"github.com/unkn0wn-root/remotecache/internal/wire"
)

// Binary is the default codec: a fixed big-endian layout with magic and
// version bytes. The zero value is ready to use.
type Binary struct{}

var _ Codec = Binary{}

func (Binary) Encode(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return wire.EncodeMeta(wire.Meta{
		Length: uint64(m.Length),
		DType:  byte(m.DType),
		Format: byte(m.Format),
		Shape:  m.Shape,
	})
}

func (Binary) Decode(b []byte) (Metadata, error) {
	w, err := wire.DecodeMeta(b)
	if err != nil {
		return Metadata{}, err
	}
	if w.Length > math.MaxInt {
		return Metadata{}, fmt.Errorf("%w: length %d overflows int", ErrInvalid, w.Length)
	}
	m := Metadata{
		Length: int(w.Length),
		Shape:  w.Shape,
		DType:  DType(w.DType),
		Format: Format(w.Format),
	}
	return m, m.Validate()
}
