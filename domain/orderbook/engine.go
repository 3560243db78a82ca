package orderbook

import (
	"github.com/cockroachdb/errors"

	"clob/infra/memory"
)

type Config struct {
	// Capacity bounds the arena. Size it for the worst-case number of
	// resting orders plus one in-flight taker.
	Capacity int
	// TradeLogSize pre-sizes the trade log.
	TradeLogSize int
}

// Engine matches one instrument. It is single-writer and deterministic:
// exactly one goroutine may call into it, and it never blocks or locks.
type Engine struct {
	bids   *BookSide
	asks   *BookSide
	index  *OrderIndex
	arena  *memory.Arena[Order]
	trades *TradeLog
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		bids:   NewBookSide(BestHighest),
		asks:   NewBookSide(BestLowest),
		index:  NewOrderIndex(cfg.Capacity),
		arena:  memory.NewArena[Order](cfg.Capacity),
		trades: NewTradeLog(cfg.TradeLogSize),
	}
}

// ProcessOrder applies one order event synchronously, including every
// cascading match. Only ErrPoolExhausted and ErrInvalidEvent are errors;
// unknown ids and side mismatches come back as a Result and change nothing.
func (e *Engine) ProcessOrder(action Action, side Side, price int64, qty uint64, id uint64) (Result, error) {
	if !side.valid() {
		return Rejected, errors.Wrapf(ErrInvalidEvent, "side %d", side)
	}
	switch action {
	case New:
		return e.placeNew(side, price, qty, id, New)
	case Cancel:
		return e.cancel(side, id), nil
	case Amend:
		return e.amend(side, price, qty, id)
	default:
		return Rejected, errors.Wrapf(ErrInvalidEvent, "action %d", action)
	}
}

// Admit reports, without changing anything, whether the event would fail
// with ErrPoolExhausted. Owners call it before journaling so an event the
// engine cannot take is never recorded.
func (e *Engine) Admit(action Action, qty uint64, id uint64) error {
	if action != New || qty == 0 || e.arena.InUse() < e.arena.Cap() {
		return nil
	}
	if _, live := e.index.Get(id); live {
		// rejected as a duplicate before any slot is taken
		return nil
	}
	return errors.Wrapf(ErrPoolExhausted, "order %d", id)
}

// ---- commands ----

func (e *Engine) placeNew(side Side, price int64, qty uint64, id uint64, action Action) (Result, error) {
	if qty == 0 {
		return Rejected, nil
	}
	if _, ok := e.index.Get(id); ok {
		return Rejected, nil
	}

	// The slot is taken before matching so exhaustion leaves the book untouched.
	h, err := e.arena.Acquire()
	if err != nil {
		return Rejected, errors.Wrapf(err, "order %d", id)
	}
	o := e.arena.Get(h)
	*o = Order{ID: id, Side: side, Price: price, Qty: qty, Action: action, handle: h}

	e.match(o)

	if o.Qty == 0 {
		e.arena.Release(h)
		return Applied, nil
	}
	lvl := e.side(side).GetOrCreate(price)
	lvl.Enqueue(o)
	e.index.Put(id, h, lvl)
	return Applied, nil
}

func (e *Engine) cancel(side Side, id uint64) Result {
	o, lvl, ok := e.resting(id)
	if !ok {
		return NotFound
	}
	if o.Side != side {
		return SideMismatch
	}
	e.remove(lvl, o)
	return Applied
}

func (e *Engine) amend(side Side, price int64, qty uint64, id uint64) (Result, error) {
	o, lvl, ok := e.resting(id)
	if !ok {
		return NotFound, nil
	}
	if o.Side != side {
		return SideMismatch, nil
	}
	if qty == 0 {
		e.remove(lvl, o)
		return Applied, nil
	}
	if price == o.Price {
		lvl.SetQty(o, qty)
		o.Action = Amend
		return Applied, nil
	}

	// Repricing is cancel + new under the same id; priority is lost.
	e.remove(lvl, o)
	return e.placeNew(side, price, qty, id, Amend)
}

// ---- matching ----

func (e *Engine) match(o *Order) {
	contra := e.side(o.Side.Opposite())
	for o.Qty > 0 {
		best := contra.Best()
		if best == nil || !crosses(o, best.Price) {
			return
		}
		for o.Qty > 0 && !best.IsEmpty() {
			head := best.Head()
			fill := min(o.Qty, head.Qty)
			best.Fill(head, fill)
			o.Qty -= fill
			e.trades.append(tradeOf(o, head, fill))

			if head.Qty > 0 {
				break
			}
			e.retire(best, head)
		}
		contra.EraseIfEmpty(best.Price)
	}
}

func crosses(o *Order, contraPrice int64) bool {
	if o.Side == Buy {
		return contraPrice <= o.Price
	}
	return contraPrice >= o.Price
}

func tradeOf(taker, maker *Order, qty uint64) Trade {
	buy, sell := taker, maker
	if taker.Side == Sell {
		buy, sell = maker, taker
	}
	return Trade{
		BuyOrderID:  buy.ID,
		BuyPrice:    buy.Price,
		SellOrderID: sell.ID,
		SellPrice:   sell.Price,
		Quantity:    qty,
	}
}

// ---- bookkeeping ----

func (e *Engine) side(s Side) *BookSide {
	if s == Buy {
		return e.bids
	}
	return e.asks
}

func (e *Engine) resting(id uint64) (*Order, *PriceLevel, bool) {
	ent, ok := e.index.Get(id)
	if !ok {
		return nil, nil, false
	}
	o := e.arena.Get(ent.handle)
	if o == nil {
		e.index.Delete(id)
		return nil, nil, false
	}
	return o, ent.level, true
}

// retire unlinks o from lvl, drops its index entry and frees its slot.
// The level itself is left for the caller to erase.
func (e *Engine) retire(lvl *PriceLevel, o *Order) {
	lvl.Remove(o)
	e.index.Delete(o.ID)
	e.arena.Release(o.handle)
}

func (e *Engine) remove(lvl *PriceLevel, o *Order) {
	side, price := o.Side, lvl.Price
	e.retire(lvl, o)
	e.side(side).EraseIfEmpty(price)
}
