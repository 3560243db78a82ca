package orderbook

// Trade is one match between a buy and a sell order. Never mutated.
type Trade struct {
	BuyOrderID  uint64
	BuyPrice    int64
	SellOrderID uint64
	SellPrice   int64
	Quantity    uint64
}

// TradeLog is an append-only, pre-sized sink of trades in match order.
type TradeLog struct {
	trades []Trade
}

func NewTradeLog(capacity int) *TradeLog {
	return &TradeLog{trades: make([]Trade, 0, capacity)}
}

func (l *TradeLog) append(t Trade) {
	l.trades = append(l.trades, t)
}

func (l *TradeLog) Len() int { return len(l.trades) }

func (l *TradeLog) At(i int) Trade { return l.trades[i] }

// Since returns the trades appended after the first n. The slice aliases
// the log and is only valid until the next engine call.
func (l *TradeLog) Since(n int) []Trade {
	if n >= len(l.trades) {
		return nil
	}
	return l.trades[n:]
}

// Reset empties the log, keeping its capacity. The owner calls it after
// handing the trades off.
func (l *TradeLog) Reset() {
	l.trades = l.trades[:0]
}
