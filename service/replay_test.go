package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"clob/domain/orderbook"
	exitwal "clob/infra/wal/exit"
)

func TestReplayRebuildsBookAndSequence(t *testing.T) {
	dir := t.TempDir()

	first := newHarness(t, dir, 16)
	first.svc.Start()
	submit(t, first.svc, Command{Action: orderbook.New, Side: orderbook.Buy, Price: 100, Qty: 10, OrderID: 1})
	submit(t, first.svc, Command{Action: orderbook.New, Side: orderbook.Buy, Price: 101, Qty: 5, OrderID: 2})
	submit(t, first.svc, Command{Action: orderbook.New, Side: orderbook.Sell, Price: 101, Qty: 3, OrderID: 3})
	submit(t, first.svc, Command{Action: orderbook.Amend, Side: orderbook.Buy, Price: 100, Qty: 4, OrderID: 1})
	submit(t, first.svc, Command{Action: orderbook.Cancel, Side: orderbook.Sell, OrderID: 2})
	want, err := first.svc.Stats(context.Background())
	require.NoError(t, err)
	wantTop, err := first.svc.TopOfBook(context.Background())
	require.NoError(t, err)
	first.svc.Close()
	require.NoError(t, first.journal.Close())
	require.NoError(t, first.outbox.Close())

	second := newHarness(t, dir, 16)
	last, err := Replay(second.svc, dir)
	require.NoError(t, err)
	require.Equal(t, uint64(5), last)
	require.Zero(t, second.quotes.Len(), "replay publishes no quotes")
	second.start(t)

	got, err := second.svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
	top, err := second.svc.TopOfBook(context.Background())
	require.NoError(t, err)
	require.Equal(t, wantTop, top)

	// the trade from seq 3 is back in the (fresh) outbox under trade seq 1
	_, err = second.outbox.Get(exitwal.Key{Symbol: "BTC-USD", Seq: 1})
	require.NoError(t, err)

	// sequencing resumes after the journal
	o := submit(t, second.svc, Command{Action: orderbook.New, Side: orderbook.Sell, Price: 100, Qty: 4, OrderID: 9})
	require.Equal(t, uint64(6), o.Seq)
	require.Len(t, o.Trades, 1)
	require.NoError(t, second.svc.CheckInvariants(context.Background()))
}

func TestReplayEmptyDir(t *testing.T) {
	h := newHarness(t, t.TempDir(), 16)
	last, err := Replay(h.svc, h.dir)
	require.NoError(t, err)
	require.Zero(t, last)
	h.start(t)
}

func TestReplayDoesNotResendDeliveredTrades(t *testing.T) {
	dir := t.TempDir()
	out := openOutbox(t)

	first := newHarnessWithOutbox(t, dir, 16, out)
	first.svc.Start()
	submit(t, first.svc, Command{Action: orderbook.New, Side: orderbook.Buy, Price: 100, Qty: 5, OrderID: 1})
	o := submit(t, first.svc, Command{Action: orderbook.New, Side: orderbook.Sell, Price: 100, Qty: 2, OrderID: 2})
	require.Len(t, o.Trades, 1)
	first.svc.Close()
	require.NoError(t, first.journal.Close())

	// the broadcaster delivered and purged trade 1
	require.NoError(t, out.UpdateState(exitwal.Key{Symbol: "BTC-USD", Seq: 1}, exitwal.StateAcked, 0))
	n, err := out.PurgeAcked()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	second := newHarnessWithOutbox(t, dir, 16, out)
	_, err = Replay(second.svc, dir)
	require.NoError(t, err)
	second.start(t)

	pending := 0
	require.NoError(t, out.ScanPending(func(exitwal.Key, exitwal.ExitRecord) error {
		pending++
		return nil
	}))
	require.Zero(t, pending, "delivered trades must not come back as NEW")

	// numbering continues: the next trade is 2, and it is pending
	o = submit(t, second.svc, Command{Action: orderbook.New, Side: orderbook.Sell, Price: 100, Qty: 1, OrderID: 3})
	require.Len(t, o.Trades, 1)
	rec, err := out.Get(exitwal.Key{Symbol: "BTC-USD", Seq: 2})
	require.NoError(t, err)
	require.Equal(t, exitwal.StateNew, rec.State)
}
