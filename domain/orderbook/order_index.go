package orderbook

import "clob/infra/memory"

type indexEntry struct {
	handle memory.Handle
	level  *PriceLevel
}

// OrderIndex maps a resting order id to its arena slot and level.
// Only resting orders are indexed.
type OrderIndex struct {
	entries map[uint64]indexEntry
}

func NewOrderIndex(capacity int) *OrderIndex {
	return &OrderIndex{entries: make(map[uint64]indexEntry, capacity)}
}

func (x *OrderIndex) Get(id uint64) (indexEntry, bool) {
	e, ok := x.entries[id]
	return e, ok
}

func (x *OrderIndex) Put(id uint64, h memory.Handle, lvl *PriceLevel) {
	x.entries[id] = indexEntry{handle: h, level: lvl}
}

func (x *OrderIndex) Delete(id uint64) {
	delete(x.entries, id)
}

func (x *OrderIndex) Len() int {
	return len(x.entries)
}
