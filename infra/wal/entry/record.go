package entry

import "time"

type RecordType uint8

const (
	// RecordOrder carries a wire.OrderEvent payload.
	RecordOrder RecordType = iota + 1
)

const headerSize = 1 + 8 + 8 + 4

// MaxPayload bounds one record's data. A longer length field can only come
// from a damaged frame.
const MaxPayload = 1 << 20

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
