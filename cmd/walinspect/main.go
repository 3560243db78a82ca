// Command walinspect prints an instrument's entry journal and the state of
// the trade outbox.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"clob/domain/orderbook"
	entrywal "clob/infra/wal/entry"
	exitwal "clob/infra/wal/exit"
	"clob/infra/wire"
)

func main() {
	journal := flag.String("journal", "", "entry WAL directory of one instrument")
	outbox := flag.String("outbox", "", "exit WAL directory")
	flag.Parse()

	if *journal == "" && *outbox == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *journal != "" {
		if err := dumpJournal(os.Stdout, *journal); err != nil {
			log.Fatalf("journal: %v", err)
		}
	}
	if *outbox != "" {
		if err := dumpOutbox(os.Stdout, *outbox); err != nil {
			log.Fatalf("outbox: %v", err)
		}
	}
}

func dumpJournal(w io.Writer, dir string) error {
	n := 0
	last, err := entrywal.Replay(dir, func(rec *entrywal.Record) error {
		n++
		var ev wire.OrderEvent
		if err := ev.Unmarshal(rec.Data); err != nil {
			fmt.Fprintf(w, "%10d  %s  <undecodable: %v>\n", rec.Seq, stamp(rec.Time), err)
			return nil
		}
		fmt.Fprintf(w, "%10d  %s  %-8s %-6s %-4s id=%d price=%d qty=%d\n",
			rec.Seq, stamp(rec.Time), ev.Symbol,
			orderbook.Action(ev.Action), orderbook.Side(ev.Side),
			ev.OrderID, ev.Price, ev.Qty)
		return nil
	})
	fmt.Fprintf(w, "-- %d records, last seq %d\n", n, last)
	return err
}

func dumpOutbox(w io.Writer, dir string) error {
	db, err := exitwal.Open(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	counts := make(map[exitwal.ExitState]int)
	err = db.ScanPending(func(k exitwal.Key, rec exitwal.ExitRecord) error {
		counts[rec.State]++
		var te wire.TradeEvent
		if err := te.Unmarshal(rec.Payload); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s/%d  %-6s retries=%d  buy=%d@%d sell=%d@%d qty=%d order_seq=%d\n",
			k.Symbol, k.Seq, rec.State, rec.Retries,
			te.BuyOrderID, te.BuyPrice, te.SellOrderID, te.SellPrice, te.Qty, te.OrderSeq)
		return nil
	})
	fmt.Fprintf(w, "-- pending: NEW=%d SENT=%d FAILED=%d\n",
		counts[exitwal.StateNew], counts[exitwal.StateSent], counts[exitwal.StateFailed])
	return err
}

func stamp(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339Nano)
}
