package wire

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every type in this package.
type Message interface {
	Marshal() []byte
	Unmarshal([]byte) error
}

// OrderEvent is one New/Amend/Cancel as journaled and as accepted by the
// gateway and the ingestion topic. Action and Side use the engine's enum
// values.
type OrderEvent struct {
	Symbol  string
	Seq     uint64
	Action  uint8
	Side    uint8
	Price   int64
	Qty     uint64
	OrderID uint64
}

func (m *OrderEvent) Marshal() []byte {
	b := make([]byte, 0, 48+len(m.Symbol))
	b = appendString(b, 1, m.Symbol)
	b = appendUvarint(b, 2, m.Seq)
	b = appendUvarint(b, 3, uint64(m.Action))
	b = appendUvarint(b, 4, uint64(m.Side))
	b = appendSint(b, 5, m.Price)
	b = appendUvarint(b, 6, m.Qty)
	b = appendUvarint(b, 7, m.OrderID)
	return b
}

func (m *OrderEvent) Unmarshal(b []byte) error {
	*m = OrderEvent{}
	var bad protowire.Number
	err := decode(b, func(f field) {
		var ok bool
		switch f.num {
		case 1:
			m.Symbol = f.str()
		case 2:
			m.Seq = f.value
		case 3:
			if m.Action, ok = f.u8(); !ok {
				bad = f.num
			}
		case 4:
			if m.Side, ok = f.u8(); !ok {
				bad = f.num
			}
		case 5:
			m.Price = f.sint()
		case 6:
			m.Qty = f.value
		case 7:
			m.OrderID = f.value
		}
	})
	if err != nil {
		return err
	}
	if bad != 0 {
		return errors.Wrapf(ErrMalformed, "order event field %d out of range", bad)
	}
	return nil
}

// TradeEvent is a trade as published downstream. Seq numbers trades per
// instrument; OrderSeq is the sequence of the event that produced it.
type TradeEvent struct {
	Symbol      string
	Seq         uint64
	OrderSeq    uint64
	BuyOrderID  uint64
	BuyPrice    int64
	SellOrderID uint64
	SellPrice   int64
	Qty         uint64
	Time        int64
}

func (m *TradeEvent) Marshal() []byte {
	b := make([]byte, 0, 72+len(m.Symbol))
	b = appendString(b, 1, m.Symbol)
	b = appendUvarint(b, 2, m.Seq)
	b = appendUvarint(b, 3, m.OrderSeq)
	b = appendUvarint(b, 4, m.BuyOrderID)
	b = appendSint(b, 5, m.BuyPrice)
	b = appendUvarint(b, 6, m.SellOrderID)
	b = appendSint(b, 7, m.SellPrice)
	b = appendUvarint(b, 8, m.Qty)
	b = appendSint(b, 9, m.Time)
	return b
}

func (m *TradeEvent) Unmarshal(b []byte) error {
	*m = TradeEvent{}
	return decode(b, func(f field) {
		switch f.num {
		case 1:
			m.Symbol = f.str()
		case 2:
			m.Seq = f.value
		case 3:
			m.OrderSeq = f.value
		case 4:
			m.BuyOrderID = f.value
		case 5:
			m.BuyPrice = f.sint()
		case 6:
			m.SellOrderID = f.value
		case 7:
			m.SellPrice = f.sint()
		case 8:
			m.Qty = f.value
		case 9:
			m.Time = f.sint()
		}
	})
}

// Quote is a top-of-book snapshot: best level price and aggregate on each
// side. HasBid/HasAsk are false when that side is empty.
type Quote struct {
	Symbol   string
	Seq      uint64
	HasBid   bool
	BidPrice int64
	BidQty   uint64
	HasAsk   bool
	AskPrice int64
	AskQty   uint64
}

func (m *Quote) Marshal() []byte {
	b := make([]byte, 0, 64+len(m.Symbol))
	b = appendString(b, 1, m.Symbol)
	b = appendUvarint(b, 2, m.Seq)
	b = appendBool(b, 3, m.HasBid)
	b = appendSint(b, 4, m.BidPrice)
	b = appendUvarint(b, 5, m.BidQty)
	b = appendBool(b, 6, m.HasAsk)
	b = appendSint(b, 7, m.AskPrice)
	b = appendUvarint(b, 8, m.AskQty)
	return b
}

func (m *Quote) Unmarshal(b []byte) error {
	*m = Quote{}
	return decode(b, func(f field) {
		switch f.num {
		case 1:
			m.Symbol = f.str()
		case 2:
			m.Seq = f.value
		case 3:
			m.HasBid = f.boolean()
		case 4:
			m.BidPrice = f.sint()
		case 5:
			m.BidQty = f.value
		case 6:
			m.HasAsk = f.boolean()
		case 7:
			m.AskPrice = f.sint()
		case 8:
			m.AskQty = f.value
		}
	})
}

// SubmitReply answers a gateway Submit.
type SubmitReply struct {
	Seq    uint64
	Result string
	Trades uint32
}

func (m *SubmitReply) Marshal() []byte {
	b := make([]byte, 0, 32)
	b = appendUvarint(b, 1, m.Seq)
	b = appendString(b, 2, m.Result)
	b = appendUvarint(b, 3, uint64(m.Trades))
	return b
}

func (m *SubmitReply) Unmarshal(b []byte) error {
	*m = SubmitReply{}
	return decode(b, func(f field) {
		switch f.num {
		case 1:
			m.Seq = f.value
		case 2:
			m.Result = f.str()
		case 3:
			m.Trades = f.u32()
		}
	})
}

// TopOfBookRequest asks the gateway for the current quote of Symbol.
type TopOfBookRequest struct {
	Symbol string
}

func (m *TopOfBookRequest) Marshal() []byte {
	return appendString(nil, 1, m.Symbol)
}

func (m *TopOfBookRequest) Unmarshal(b []byte) error {
	*m = TopOfBookRequest{}
	return decode(b, func(f field) {
		if f.num == 1 {
			m.Symbol = f.str()
		}
	})
}
