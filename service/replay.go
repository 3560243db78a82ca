package service

import (
	"log"

	"github.com/cockroachdb/errors"

	"clob/domain/orderbook"
	entrywal "clob/infra/wal/entry"
	"clob/infra/wire"
)

/*
Replay rebuilds the instrument's book from its entry WAL.

IMPORTANT:
- This MUST run before Start
- Trades are re-offered to the outbox; PutNew keeps existing keys and
  skips trades below the delivered watermark, so nothing the broadcaster
  already handled is reset or resent
- No quotes are published for replayed events
*/
func Replay(s *OrderService, walDir string) (uint64, error) {
	quotes := s.quotes
	s.quotes = nil
	defer func() { s.quotes = quotes }()

	var applied int
	lastSeq, err := entrywal.Replay(walDir, func(rec *entrywal.Record) error {
		if rec.Type != entrywal.RecordOrder {
			return nil
		}

		var ev wire.OrderEvent
		if err := ev.Unmarshal(rec.Data); err != nil {
			return errors.Wrapf(err, "replay seq %d", rec.Seq)
		}
		if ev.Symbol != s.symbol {
			return errors.Newf("replay seq %d: symbol %q in %s journal", rec.Seq, ev.Symbol, s.symbol)
		}

		if _, err := s.apply(rec.Seq, commandOf(&ev)); err != nil {
			return errors.Wrapf(err, "replay seq %d", rec.Seq)
		}
		applied++
		return nil
	})
	if err != nil {
		return lastSeq, err
	}

	// Resume sequencing AFTER replay
	if err := s.seq.Orders.ResumeAfter(lastSeq); err != nil {
		return lastSeq, err
	}

	log.Printf("[replay] %s: %d events, last seq = %d, resting = %d",
		s.symbol, applied, lastSeq, s.engine.OrderCount())
	return lastSeq, nil
}

func commandOf(ev *wire.OrderEvent) Command {
	return Command{
		Action:  orderbook.Action(ev.Action),
		Side:    orderbook.Side(ev.Side),
		Price:   ev.Price,
		Qty:     ev.Qty,
		OrderID: ev.OrderID,
	}
}

// CommandFromEvent converts a decoded wire event into a Command.
func CommandFromEvent(ev *wire.OrderEvent) (Command, error) {
	cmd := commandOf(ev)
	if err := cmd.validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
