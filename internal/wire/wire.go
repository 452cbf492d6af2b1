package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindMeta   byte = 1
	kindFrame  byte = 2
	maxDims         = 255
	metaHeader      = 4 + 1 + 1 + 8 + 1 + 1 + 1
)

var (
	ErrCorrupt = errors.New("remotecache: corrupt entry")
	magic4     = [...]byte{'R', 'C', 'M', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Meta is the primitive form of a metadata envelope.
type Meta struct {
	Length uint64
	DType  byte
	Format byte
	Shape  []int64
}

// Meta: magic(4) | ver(1) | kind(1=meta) | length(u64 be) | dtype(1) | format(1) | ndim(1) | dim(i64 be) * ndim
func EncodeMeta(m Meta) ([]byte, error) {
	if len(m.Shape) > maxDims {
		return nil, ErrCorrupt
	}
	var buf bytes.Buffer
	buf.Grow(metaHeader + 8*len(m.Shape))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindMeta)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], m.Length)
	buf.Write(u8[:])

	buf.WriteByte(m.DType)
	buf.WriteByte(m.Format)
	buf.WriteByte(byte(len(m.Shape)))
	for _, d := range m.Shape {
		binary.BigEndian.PutUint64(u8[:], uint64(d))
		buf.Write(u8[:])
	}
	return buf.Bytes(), nil
}

func DecodeMeta(b []byte) (Meta, error) {
	if len(b) < metaHeader || !hasMagic(b) || b[4] != version || b[5] != kindMeta {
		return Meta{}, ErrCorrupt
	}
	off := 6
	m := Meta{Length: binary.BigEndian.Uint64(b[off : off+8])}
	off += 8
	m.DType = b[off]
	m.Format = b[off+1]
	ndim := int(b[off+2])
	off += 3

	if len(b)-off != 8*ndim { // exact size, no trailing bytes
		return Meta{}, ErrCorrupt
	}
	if ndim > 0 {
		m.Shape = make([]int64, ndim)
		for i := range m.Shape {
			m.Shape[i] = int64(binary.BigEndian.Uint64(b[off : off+8]))
			off += 8
		}
	}
	return m, nil
}

// Frame bundles an encoded envelope and its payload for single-key stores.
//
//	magic(4) | ver(1) | kind(2=frame) | mlen(u32 be) | meta(mlen) | plen(u32 be) | payload(plen)
func EncodeFrame(meta, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 4 + len(meta) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindFrame)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(meta)))
	buf.Write(u4[:])
	buf.Write(meta)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)
	return buf.Bytes()
}

// DecodeFrame returns sub-slices of b; callers copy if they keep them.
func DecodeFrame(b []byte) (meta, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindFrame {
		return nil, nil, ErrCorrupt
	}
	off := 6

	mlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if mlen < 0 || mlen > len(b)-off {
		return nil, nil, ErrCorrupt
	}
	meta = b[off : off+mlen]
	off += mlen

	if off+4 > len(b) {
		return nil, nil, ErrCorrupt
	}
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off {
		return nil, nil, ErrCorrupt
	}
	return meta, b[off : off+plen], nil
}
