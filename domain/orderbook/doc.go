// Package orderbook implements a single-instrument central limit order
// book with strict price-then-time priority.
//
// Two indexes are kept consistent on every event: per-side price levels
// (a B-tree ordered best-first, each level an intrusive FIFO) and an
// order-id index pointing at arena slots. The Engine is single-writer and
// never blocks; run one Engine per instrument.
package orderbook
