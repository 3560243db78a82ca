package orderbook

import "clob/infra/memory"

type Side uint8
type Action uint8

const (
	Buy Side = iota
	Sell
)

const (
	New Action = iota
	Amend
	Cancel
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) valid() bool { return s == Buy || s == Sell }

func (a Action) String() string {
	switch a {
	case New:
		return "NEW"
	case Amend:
		return "AMEND"
	case Cancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// Order is a resting or in-flight order. It lives in an arena slot; the
// next/prev links place it in its price level's FIFO.
type Order struct {
	ID     uint64
	Side   Side
	Price  int64
	Qty    uint64
	Action Action

	handle memory.Handle
	next   *Order
	prev   *Order
}

// Next returns the order behind this one in its level (read-only traversal).
func (o *Order) Next() *Order {
	return o.next
}

// view copies the public fields so callers never hold arena memory.
func (o *Order) view() Order {
	return Order{ID: o.ID, Side: o.Side, Price: o.Price, Qty: o.Qty, Action: o.Action}
}
