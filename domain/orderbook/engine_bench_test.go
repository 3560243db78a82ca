package orderbook

import "testing"

func BenchmarkRestingInsert(b *testing.B) {
	e := NewEngine(Config{Capacity: b.N + 1, TradeLogSize: 1})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.ProcessOrder(New, Buy, int64(100+i%64), 1, uint64(i+1))
	}
}

func BenchmarkInsertCancel(b *testing.B) {
	e := NewEngine(Config{Capacity: 1024, TradeLogSize: 1})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i + 1)
		_, _ = e.ProcessOrder(New, Sell, int64(100+i%64), 1, id)
		_, _ = e.ProcessOrder(Cancel, Sell, 0, 0, id)
	}
}

func BenchmarkCrossingPair(b *testing.B) {
	e := NewEngine(Config{Capacity: 1024, TradeLogSize: 1024})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(2*i + 1)
		_, _ = e.ProcessOrder(New, Sell, 100, 10, id)
		_, _ = e.ProcessOrder(New, Buy, 100, 10, id+1)
		e.Trades().Reset()
	}
}
