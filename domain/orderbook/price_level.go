package orderbook

import "fmt"

// PriceLevel is a FIFO queue at a single price.
// TotalQty always equals the sum of Qty over the queued orders.
type PriceLevel struct {
	Price int64

	head *Order
	tail *Order

	TotalQty   uint64
	OrderCount int
}

// Enqueue appends o at the tail (lowest time priority).
func (p *PriceLevel) Enqueue(o *Order) {
	o.next, o.prev = nil, nil
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.TotalQty += o.Qty
	p.OrderCount++
}

// Remove unlinks o from anywhere in the queue in O(1).
func (p *PriceLevel) Remove(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next, o.prev = nil, nil

	p.TotalQty -= o.Qty
	p.OrderCount--
}

// SetQty changes o's quantity in place without touching its position.
func (p *PriceLevel) SetQty(o *Order, qty uint64) {
	p.TotalQty = p.TotalQty - o.Qty + qty
	o.Qty = qty
}

// Fill reduces o by qty in place. qty must not exceed o.Qty.
func (p *PriceLevel) Fill(o *Order, qty uint64) {
	o.Qty -= qty
	p.TotalQty -= qty
}

func (p *PriceLevel) IsEmpty() bool {
	return p.head == nil
}

// Head returns the order with the highest time priority.
func (p *PriceLevel) Head() *Order {
	return p.head
}

func (p *PriceLevel) String() string {
	return fmt.Sprintf("PriceLevel{Price=%d, Orders=%d, TotalQty=%d}", p.Price, p.OrderCount, p.TotalQty)
}
