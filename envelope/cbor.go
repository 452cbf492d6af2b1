package envelope

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes envelopes as a 4-element CBOR array using RFC 8949 core
// deterministic encoding, so equal envelopes always produce equal bytes.
// The zero value is NOT ready to use. Construct with NewCBOR or MustCBOR.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec = CBOR{}

type cborMeta struct {
	_      struct{} `cbor:",toarray"`
	Length uint64
	Shape  []int64
	DType  uint8
	Format uint8
}

func NewCBOR() (CBOR, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return CBOR{}, err
	}
	dm, err := (cbor.DecOptions{MaxArrayElements: 1024}).DecMode()
	if err != nil {
		return CBOR{}, err
	}
	return CBOR{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error.
func MustCBOR() CBOR {
	c, err := NewCBOR()
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR) Encode(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return c.enc.Marshal(cborMeta{
		Length: uint64(m.Length),
		Shape:  m.Shape,
		DType:  uint8(m.DType),
		Format: uint8(m.Format),
	})
}

func (c CBOR) Decode(b []byte) (Metadata, error) {
	var w cborMeta
	if err := c.dec.Unmarshal(b, &w); err != nil {
		return Metadata{}, err
	}
	m := Metadata{
		Length: int(w.Length),
		Shape:  w.Shape,
		DType:  DType(w.DType),
		Format: Format(w.Format),
	}
	return m, m.Validate()
}
