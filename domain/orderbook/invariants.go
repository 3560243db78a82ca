package orderbook

import "github.com/cockroachdb/errors"

// CheckInvariants walks the whole book and verifies that the two indexes
// agree. It is O(orders) and meant for tests and admin diagnostics.
func (e *Engine) CheckInvariants() error {
	seen := 0
	for _, s := range []struct {
		side Side
		book *BookSide
	}{{Buy, e.bids}, {Sell, e.asks}} {
		n, err := e.checkSide(s.side, s.book)
		if err != nil {
			return err
		}
		seen += n
	}
	if seen != e.index.Len() {
		return errors.AssertionFailedf("book holds %d orders, index holds %d", seen, e.index.Len())
	}
	if seen != e.arena.InUse() {
		return errors.AssertionFailedf("book holds %d orders, arena holds %d", seen, e.arena.InUse())
	}
	return nil
}

func (e *Engine) checkSide(side Side, s *BookSide) (int, error) {
	var (
		seen  int
		prev  *PriceLevel
		first = true
		err   error
	)
	s.Walk(func(lvl *PriceLevel) bool {
		if first && lvl != s.Best() {
			err = errors.AssertionFailedf("%s best level %d is not cached", side, lvl.Price)
			return false
		}
		first = false
		if prev != nil && !s.Ordering().Better(prev.Price, lvl.Price) {
			err = errors.AssertionFailedf("%s levels out of order: %d before %d", side, prev.Price, lvl.Price)
			return false
		}
		prev = lvl

		if lvl.IsEmpty() {
			err = errors.AssertionFailedf("%s level %d is empty", side, lvl.Price)
			return false
		}
		var sum uint64
		count := 0
		for o := lvl.Head(); o != nil; o = o.Next() {
			if o.Qty == 0 {
				err = errors.AssertionFailedf("order %d rests with zero quantity", o.ID)
				return false
			}
			if o.Side != side || o.Price != lvl.Price {
				err = errors.AssertionFailedf("order %d (%s@%d) sits in %s level %d", o.ID, o.Side, o.Price, side, lvl.Price)
				return false
			}
			ent, ok := e.index.Get(o.ID)
			if !ok || ent.level != lvl || e.arena.Get(ent.handle) != o {
				err = errors.AssertionFailedf("order %d is not indexed at level %d", o.ID, lvl.Price)
				return false
			}
			sum += o.Qty
			count++
		}
		if sum != lvl.TotalQty || count != lvl.OrderCount {
			err = errors.AssertionFailedf("%s level %d aggregates %d/%d, orders sum %d/%d",
				side, lvl.Price, lvl.TotalQty, lvl.OrderCount, sum, count)
			return false
		}
		seen += count
		return true
	})
	if err == nil && first && s.Best() != nil {
		err = errors.AssertionFailedf("%s side is empty but caches a best level", side)
	}
	return seen, err
}
