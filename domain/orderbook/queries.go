package orderbook

// LevelView is a read-only copy of a price level's aggregates.
type LevelView struct {
	Price      int64
	TotalQty   uint64
	OrderCount int
}

// BestBuy returns the time-priority order of the best bid level.
func (e *Engine) BestBuy() (Order, bool) {
	return bestOf(e.bids)
}

// BestSell returns the time-priority order of the best ask level.
func (e *Engine) BestSell() (Order, bool) {
	return bestOf(e.asks)
}

func bestOf(s *BookSide) (Order, bool) {
	lvl := s.Best()
	if lvl == nil {
		return Order{}, false
	}
	return lvl.Head().view(), true
}

// BestLevel returns the aggregates of side's best level from the cached
// best, without a tree lookup.
func (e *Engine) BestLevel(side Side) (LevelView, bool) {
	lvl := e.side(side).Best()
	if lvl == nil {
		return LevelView{}, false
	}
	return viewOf(lvl), true
}

// OrderCount is the number of resting orders.
func (e *Engine) OrderCount() int { return e.index.Len() }

func (e *Engine) BidLevelCount() int { return e.bids.Len() }

func (e *Engine) AskLevelCount() int { return e.asks.Len() }

// Lookup returns a copy of the resting order with the given id.
func (e *Engine) Lookup(id uint64) (Order, bool) {
	ent, ok := e.index.Get(id)
	if !ok {
		return Order{}, false
	}
	o := e.arena.Get(ent.handle)
	if o == nil {
		return Order{}, false
	}
	return o.view(), true
}

// Level returns the aggregates at price on side.
func (e *Engine) Level(side Side, price int64) (LevelView, bool) {
	lvl := e.side(side).Find(price)
	if lvl == nil {
		return LevelView{}, false
	}
	return viewOf(lvl), true
}

// Depth returns up to n levels of side, best first. n <= 0 means all.
func (e *Engine) Depth(side Side, n int) []LevelView {
	s := e.side(side)
	size := s.Len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]LevelView, 0, size)
	s.Walk(func(lvl *PriceLevel) bool {
		out = append(out, viewOf(lvl))
		return len(out) < size
	})
	return out
}

// WalkOrders visits resting orders of side in priority order until fn
// returns false.
func (e *Engine) WalkOrders(side Side, fn func(Order) bool) {
	e.side(side).Walk(func(lvl *PriceLevel) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			if !fn(o.view()) {
				return false
			}
		}
		return true
	})
}

// Trades exposes the trade log to the owning goroutine.
func (e *Engine) Trades() *TradeLog { return e.trades }

// ArenaInUse is the number of occupied order slots.
func (e *Engine) ArenaInUse() int { return e.arena.InUse() }

func viewOf(lvl *PriceLevel) LevelView {
	return LevelView{Price: lvl.Price, TotalQty: lvl.TotalQty, OrderCount: lvl.OrderCount}
}
