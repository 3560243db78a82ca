package wire

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = errors.New("wire: malformed message")

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	return appendUvarint(b, num, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUvarint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// field is one decoded scalar or length-delimited field.
type field struct {
	num   protowire.Number
	value uint64
	bytes []byte
}

func (f field) sint() int64 { return protowire.DecodeZigZag(f.value) }
func (f field) boolean() bool { return protowire.DecodeBool(f.value) }
func (f field) str() string { return string(f.bytes) }
func (f field) u32() uint32 { return uint32(f.value) }

// u8 reports false when the varint does not fit in a byte.
func (f field) u8() (uint8, bool) { return uint8(f.value), f.value <= 0xFF }

// decode walks b and calls fn for every varint or bytes field. Other wire
// types are skipped, as are unknown field numbers by fn itself.
func decode(b []byte, fn func(field)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Mark(protowire.ParseError(n), ErrMalformed)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return errors.Mark(protowire.ParseError(m), ErrMalformed)
			}
			fn(field{num: num, value: v})
			b = b[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return errors.Mark(protowire.ParseError(m), ErrMalformed)
			}
			fn(field{num: num, bytes: v})
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return errors.Mark(protowire.ParseError(m), ErrMalformed)
			}
			b = b[m:]
		}
	}
	return nil
}
