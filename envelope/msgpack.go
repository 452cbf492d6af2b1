package envelope

import "github.com/vmihailenco/msgpack/v5"

// Msgpack encodes envelopes as a msgpack array. The zero value is ready to use.
type Msgpack struct{}

var _ Codec = Msgpack{}

type msgpackMeta struct {
	_msgpack struct{} `msgpack:",as_array"`
	Length   int64
	Shape    []int64
	DType    uint8
	Format   uint8
}

func (Msgpack) Encode(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return msgpack.Marshal(&msgpackMeta{
		Length: int64(m.Length),
		Shape:  m.Shape,
		DType:  uint8(m.DType),
		Format: uint8(m.Format),
	})
}

func (Msgpack) Decode(b []byte) (Metadata, error) {
	var w msgpackMeta
	if err := msgpack.Unmarshal(b, &w); err != nil {
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
