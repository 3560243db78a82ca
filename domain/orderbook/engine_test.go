package orderbook

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Config{Capacity: 1024, TradeLogSize: 128})
}

func mustApply(t *testing.T, e *Engine, action Action, side Side, price int64, qty uint64, id uint64) {
	t.Helper()
	res, err := e.ProcessOrder(action, side, price, qty, id)
	require.NoError(t, err)
	require.Equal(t, Applied, res)
	require.NoError(t, e.CheckInvariants())
}

func TestBestPriceWins(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 10, 1)
	mustApply(t, e, New, Buy, 101, 5, 2)

	best, ok := e.BestBuy()
	require.True(t, ok)
	require.Equal(t, uint64(2), best.ID)
	require.Equal(t, int64(101), best.Price)
	require.Equal(t, uint64(5), best.Qty)

	_, ok = e.BestSell()
	require.False(t, ok)
}

func TestPartialFillOfRestingBuy(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 10, 1)
	mustApply(t, e, New, Sell, 100, 4, 2)

	require.Equal(t, 1, e.Trades().Len())
	require.Equal(t, Trade{BuyOrderID: 1, BuyPrice: 100, SellOrderID: 2, SellPrice: 100, Quantity: 4}, e.Trades().At(0))

	lvl, ok := e.Level(Buy, 100)
	require.True(t, ok)
	require.Equal(t, uint64(6), lvl.TotalQty)
	require.Equal(t, 1, lvl.OrderCount)

	_, ok = e.Lookup(2)
	require.False(t, ok, "fully matched taker is never indexed")
	require.Equal(t, 0, e.AskLevelCount())
}

func TestFIFOAtSamePrice(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 100, 10, 1) // A
	mustApply(t, e, New, Sell, 100, 10, 2) // B
	mustApply(t, e, New, Buy, 100, 15, 3)

	trades := e.Trades().Since(0)
	require.Len(t, trades, 2)
	require.Equal(t, uint64(1), trades[0].SellOrderID)
	require.Equal(t, uint64(10), trades[0].Quantity)
	require.Equal(t, uint64(2), trades[1].SellOrderID)
	require.Equal(t, uint64(5), trades[1].Quantity)
	for _, tr := range trades {
		require.Equal(t, uint64(3), tr.BuyOrderID)
	}

	b, ok := e.Lookup(2)
	require.True(t, ok)
	require.Equal(t, uint64(5), b.Qty)
	_, ok = e.Lookup(3)
	require.False(t, ok)
	require.Equal(t, 1, e.OrderCount())
	require.Equal(t, 0, e.BidLevelCount())
}

func TestCancelUnknownIsNoop(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 10, 1)

	res, err := e.ProcessOrder(Cancel, Buy, 0, 0, 999)
	require.NoError(t, err)
	require.Equal(t, NotFound, res)
	require.Equal(t, 1, e.OrderCount())
	require.Equal(t, 0, e.Trades().Len())
	require.NoError(t, e.CheckInvariants())
}

func TestAmendRepriceCrossesBook(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 10, 1)
	mustApply(t, e, New, Sell, 105, 10, 2)

	mustApply(t, e, Amend, Buy, 105, 10, 1)

	_, ok := e.Level(Buy, 100)
	require.False(t, ok, "old level must be erased")
	require.Equal(t, 1, e.Trades().Len())
	require.Equal(t, Trade{BuyOrderID: 1, BuyPrice: 105, SellOrderID: 2, SellPrice: 105, Quantity: 10}, e.Trades().At(0))
	require.Zero(t, e.OrderCount())
	require.Zero(t, e.ArenaInUse())
}

func TestCancelTwiceIsSafe(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 100, 10, 1)
	mustApply(t, e, Cancel, Sell, 100, 10, 1)

	res, err := e.ProcessOrder(Cancel, Sell, 100, 10, 1)
	require.NoError(t, err)
	require.Equal(t, NotFound, res)
	require.Zero(t, e.AskLevelCount())
	require.Zero(t, e.ArenaInUse())
}

func TestCancelSideMismatch(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 100, 10, 1)

	res, err := e.ProcessOrder(Cancel, Buy, 100, 10, 1)
	require.NoError(t, err)
	require.Equal(t, SideMismatch, res)
	require.Equal(t, 1, e.OrderCount())
}

func TestCancelKeepsOtherOrdersAtLevel(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 1, 1)
	mustApply(t, e, New, Buy, 100, 2, 2)
	mustApply(t, e, New, Buy, 100, 3, 3)

	mustApply(t, e, Cancel, Buy, 100, 0, 2)
	lvl, _ := e.Level(Buy, 100)
	require.Equal(t, uint64(4), lvl.TotalQty)
	require.Equal(t, 2, lvl.OrderCount)

	var ids []uint64
	e.WalkOrders(Buy, func(o Order) bool {
		ids = append(ids, o.ID)
		return true
	})
	require.Equal(t, []uint64{1, 3}, ids)
}

func TestAmendQuantityInPlaceKeepsPriority(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 100, 5, 1)
	mustApply(t, e, New, Sell, 100, 5, 2)

	mustApply(t, e, Amend, Sell, 100, 50, 1)
	lvl, _ := e.Level(Sell, 100)
	require.Equal(t, uint64(55), lvl.TotalQty)

	best, _ := e.BestSell()
	require.Equal(t, uint64(1), best.ID)
	require.Equal(t, Amend, best.Action)

	mustApply(t, e, Amend, Sell, 100, 1, 1)
	lvl, _ = e.Level(Sell, 100)
	require.Equal(t, uint64(6), lvl.TotalQty)
}

func TestAmendRepriceLosesPriority(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 5, 1)
	mustApply(t, e, New, Buy, 99, 5, 2)

	mustApply(t, e, Amend, Buy, 99, 5, 1)
	best, _ := e.BestBuy()
	require.Equal(t, uint64(2), best.ID, "repriced order queues behind")
	require.Equal(t, 1, e.BidLevelCount())
}

func TestAmendToZeroCancels(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 100, 5, 1)
	mustApply(t, e, Amend, Buy, 100, 0, 1)
	require.Zero(t, e.OrderCount())
	require.Zero(t, e.BidLevelCount())
}

func TestAmendUnknownAndSideMismatch(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.ProcessOrder(Amend, Buy, 100, 5, 9)
	require.NoError(t, err)
	require.Equal(t, NotFound, res)

	mustApply(t, e, New, Buy, 100, 5, 1)
	res, err = e.ProcessOrder(Amend, Sell, 101, 5, 1)
	require.NoError(t, err)
	require.Equal(t, SideMismatch, res)

	o, _ := e.Lookup(1)
	require.Equal(t, int64(100), o.Price)
}

func TestNewRejections(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.ProcessOrder(New, Buy, 100, 0, 1)
	require.NoError(t, err)
	require.Equal(t, Rejected, res)

	mustApply(t, e, New, Buy, 100, 1, 1)
	res, err = e.ProcessOrder(New, Buy, 101, 1, 1)
	require.NoError(t, err)
	require.Equal(t, Rejected, res, "duplicate live id")
	require.Equal(t, 1, e.OrderCount())
}

func TestInvalidEvents(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ProcessOrder(Action(9), Buy, 100, 1, 1)
	require.True(t, errors.Is(err, ErrInvalidEvent))
	_, err = e.ProcessOrder(New, Side(7), 100, 1, 1)
	require.True(t, errors.Is(err, ErrInvalidEvent))
}

func TestSweepMultipleLevels(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 101, 3, 1)
	mustApply(t, e, New, Sell, 102, 3, 2)
	mustApply(t, e, New, Sell, 104, 3, 3)

	mustApply(t, e, New, Buy, 103, 10, 4)

	trades := e.Trades().Since(0)
	require.Len(t, trades, 2)
	require.Equal(t, int64(101), trades[0].SellPrice)
	require.Equal(t, int64(102), trades[1].SellPrice)

	// residual rests because 104 no longer crosses
	o, ok := e.Lookup(4)
	require.True(t, ok)
	require.Equal(t, uint64(4), o.Qty)
	best, _ := e.BestSell()
	require.Equal(t, int64(104), best.Price)
}

func TestSellTakerAttribution(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Buy, 105, 2, 1)
	mustApply(t, e, New, Sell, 100, 2, 2)

	require.Equal(t, Trade{BuyOrderID: 1, BuyPrice: 105, SellOrderID: 2, SellPrice: 100, Quantity: 2}, e.Trades().At(0))
}

func TestPoolExhaustionLeavesBookUntouched(t *testing.T) {
	e := NewEngine(Config{Capacity: 2, TradeLogSize: 4})
	mustApply(t, e, New, Buy, 100, 1, 1)
	mustApply(t, e, New, Buy, 99, 1, 2)

	res, err := e.ProcessOrder(New, Sell, 100, 1, 3)
	require.True(t, errors.Is(err, ErrPoolExhausted))
	require.Equal(t, Rejected, res)
	require.Equal(t, 2, e.OrderCount())
	require.Zero(t, e.Trades().Len())
	require.NoError(t, e.CheckInvariants())

	mustApply(t, e, Cancel, Buy, 0, 0, 2)
	mustApply(t, e, New, Sell, 100, 1, 3)
	require.Equal(t, 1, e.Trades().Len())
}

func TestAdmitPredictsExhaustion(t *testing.T) {
	e := NewEngine(Config{Capacity: 1, TradeLogSize: 4})
	require.NoError(t, e.Admit(New, 1, 1))
	mustApply(t, e, New, Buy, 100, 1, 1)

	err := e.Admit(New, 1, 2)
	require.True(t, errors.Is(err, ErrPoolExhausted))
	_, perr := e.ProcessOrder(New, Buy, 99, 1, 2)
	require.True(t, errors.Is(perr, ErrPoolExhausted))

	// events that never take a slot stay admissible
	require.NoError(t, e.Admit(New, 0, 2))
	require.NoError(t, e.Admit(New, 1, 1))
	require.NoError(t, e.Admit(Amend, 5, 1))
	require.NoError(t, e.Admit(Cancel, 0, 1))
	require.Equal(t, 1, e.ArenaInUse())
}

func TestBestLevelMatchesLevelLookup(t *testing.T) {
	e := newTestEngine(t)
	_, ok := e.BestLevel(Buy)
	require.False(t, ok)

	mustApply(t, e, New, Buy, 100, 3, 1)
	mustApply(t, e, New, Buy, 100, 2, 2)
	mustApply(t, e, New, Buy, 99, 9, 3)
	mustApply(t, e, New, Sell, 105, 4, 4)

	bid, ok := e.BestLevel(Buy)
	require.True(t, ok)
	require.Equal(t, LevelView{Price: 100, TotalQty: 5, OrderCount: 2}, bid)
	ask, ok := e.BestLevel(Sell)
	require.True(t, ok)
	want, _ := e.Level(Sell, 105)
	require.Equal(t, want, ask)
}

func TestSlotReuseDoesNotResurrectIds(t *testing.T) {
	e := NewEngine(Config{Capacity: 1, TradeLogSize: 4})
	mustApply(t, e, New, Buy, 100, 1, 1)
	mustApply(t, e, Cancel, Buy, 0, 0, 1)
	mustApply(t, e, New, Sell, 200, 1, 2)

	_, ok := e.Lookup(1)
	require.False(t, ok)
	res, _ := e.ProcessOrder(Cancel, Buy, 0, 0, 1)
	require.Equal(t, NotFound, res)
	require.Equal(t, 1, e.OrderCount())
}

func TestDepth(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 103, 1, 1)
	mustApply(t, e, New, Sell, 101, 2, 2)
	mustApply(t, e, New, Sell, 101, 3, 3)
	mustApply(t, e, New, Sell, 102, 4, 4)

	require.Equal(t, []LevelView{
		{Price: 101, TotalQty: 5, OrderCount: 2},
		{Price: 102, TotalQty: 4, OrderCount: 1},
	}, e.Depth(Sell, 2))
	require.Len(t, e.Depth(Sell, 0), 3)
	require.Empty(t, e.Depth(Buy, 5))
}

func TestTradeLogSinceAndReset(t *testing.T) {
	e := newTestEngine(t)
	mustApply(t, e, New, Sell, 100, 2, 1)
	mustApply(t, e, New, Buy, 100, 1, 2)
	n := e.Trades().Len()
	mustApply(t, e, New, Buy, 100, 1, 3)

	require.Len(t, e.Trades().Since(n), 1)
	require.Nil(t, e.Trades().Since(10))

	e.Trades().Reset()
	require.Zero(t, e.Trades().Len())
}

// TestRandomFlowKeepsInvariants drives a long random event stream and
// checks the book after every call.
func TestRandomFlowKeepsInvariants(t *testing.T) {
	e := NewEngine(Config{Capacity: 4096, TradeLogSize: 1024})
	rng := rand.New(rand.NewSource(42))

	var live []uint64
	nextID := uint64(1)
	for i := 0; i < 20000; i++ {
		side := Side(rng.Intn(2))
		price := int64(95 + rng.Intn(11))
		qty := uint64(1 + rng.Intn(20))

		switch r := rng.Intn(10); {
		case r < 6 || len(live) == 0:
			_, err := e.ProcessOrder(New, side, price, qty, nextID)
			require.NoError(t, err)
			live = append(live, nextID)
			nextID++
		case r < 8:
			id := live[rng.Intn(len(live))]
			if o, ok := e.Lookup(id); ok {
				side = o.Side
			}
			_, err := e.ProcessOrder(Cancel, side, 0, 0, id)
			require.NoError(t, err)
		default:
			id := live[rng.Intn(len(live))]
			if o, ok := e.Lookup(id); ok {
				side = o.Side
			}
			_, err := e.ProcessOrder(Amend, side, price, qty, id)
			require.NoError(t, err)
		}

		require.NoError(t, e.CheckInvariants())
		bid, okB := e.BestBuy()
		ask, okA := e.BestSell()
		if okB && okA {
			require.Less(t, bid.Price, ask.Price, "book must never rest crossed")
		}
		for _, tr := range e.Trades().Since(0) {
			require.Positive(t, tr.Quantity)
			require.GreaterOrEqual(t, tr.BuyPrice, tr.SellPrice)
		}
		e.Trades().Reset()
	}
}
