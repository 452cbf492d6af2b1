package envelope

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Protobuf encodes envelopes in protobuf wire format, compatible with
//
//	message Metadata {
//	  uint64 length = 1;
//	  repeated int64 shape = 2; // packed
//	  uint32 dtype = 3;
//	  uint32 format = 4;
//	}
//
// without generated code. Unknown fields are skipped on decode.
type Protobuf struct{}

var _ Codec = Protobuf{}

const (
	pbLength protowire.Number = 1
	pbShape  protowire.Number = 2
	pbDType  protowire.Number = 3
	pbFormat protowire.Number = 4
)

func (Protobuf) Encode(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var b []byte
	if m.Length != 0 {
		b = protowire.AppendTag(b, pbLength, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Length))
	}
	if len(m.Shape) > 0 {
		var packed []byte
		for _, d := range m.Shape {
			packed = protowire.AppendVarint(packed, uint64(d))
		}
		b = protowire.AppendTag(b, pbShape, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if m.DType != 0 {
		b = protowire.AppendTag(b, pbDType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.DType))
	}
	if m.Format != 0 {
		b = protowire.AppendTag(b, pbFormat, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Format))
	}
	return b, nil
}

func (Protobuf) Decode(b []byte) (Metadata, error) {
	var m Metadata
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Metadata{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == pbShape && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Metadata{}, protowire.ParseError(n)
			}
			b = b[n:]
			for len(packed) > 0 {
				v, k := protowire.ConsumeVarint(packed)
				if k < 0 {
					return Metadata{}, protowire.ParseError(k)
				}
				packed = packed[k:]
				m.Shape = append(m.Shape, int64(v))
			}
		case typ == protowire.VarintType && num >= pbLength && num <= pbFormat:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Metadata{}, protowire.ParseError(n)
			}
			b = b[n:]
			if err := setVarintField(&m, num, v); err != nil {
				return Metadata{}, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Metadata{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, m.Validate()
}

func setVarintField(m *Metadata, num protowire.Number, v uint64) error {
	switch num {
	case pbLength:
		m.Length = int(v)
	case pbShape: // unpacked repeated form
		m.Shape = append(m.Shape, int64(v))
	case pbDType:
		if v > 0xFF {
			return fmt.Errorf("%w: dtype %d", ErrInvalid, v)
		}
		m.DType = DType(v)
	case pbFormat:
		if v > 0xFF {
			return fmt.Errorf("%w: format %d", ErrInvalid, v)
		}
		m.Format = Format(v)
	}
	return nil
}
