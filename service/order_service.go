package service

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"

	"clob/domain/orderbook"
	"clob/infra/memory"
	"clob/infra/metrics"
	"clob/infra/sequence"
	entrywal "clob/infra/wal/entry"
	exitwal "clob/infra/wal/exit"
	"clob/infra/wire"
)

var (
	ErrClosed = errors.New("service: instrument closed")
	// ErrHalted is returned once the instrument has hit a fatal error.
	ErrHalted = errors.New("service: instrument halted")
)

// Journal is where accepted events are written before they are applied.
type Journal interface {
	Append(*entrywal.Record) error
}

// Outbox receives the trades each event produced.
type Outbox interface {
	PutNew(symbol string, trades []exitwal.Pending) error
}

// Command is one order event for this instrument.
type Command struct {
	Action  orderbook.Action
	Side    orderbook.Side
	Price   int64
	Qty     uint64
	OrderID uint64
}

// validate rejects events the engine cannot interpret so they never
// reach the journal.
func (c Command) validate() error {
	if c.Action > orderbook.Cancel || c.Side > orderbook.Sell {
		return errors.Wrapf(orderbook.ErrInvalidEvent, "action=%d side=%d", c.Action, c.Side)
	}
	return nil
}

// Outcome is what a command did.
type Outcome struct {
	Seq    uint64
	Result orderbook.Result
	Trades []orderbook.Trade
}

// Stats is a point-in-time summary of the book.
type Stats struct {
	Symbol     string
	LastSeq    uint64
	Orders     int
	BidLevels  int
	AskLevels  int
	ArenaInUse int
	Halted     bool
}

type Options struct {
	Symbol    string
	Engine    orderbook.Config
	Journal   Journal
	Outbox    Outbox
	Quotes    *memory.Ring[wire.Quote]
	Metrics   *metrics.Metrics
	QueueSize int
}

/*
OrderService is the ONLY write entry point for one instrument.

The engine is single-writer: every command and query runs on the
service's own goroutine, submitted through a channel.
*/
type OrderService struct {
	symbol  string
	engine  *orderbook.Engine
	seq     sequence.Streams
	journal Journal
	outbox  Outbox
	quotes  *memory.Ring[wire.Quote]
	metrics *metrics.Metrics

	halted error

	reqs    chan func()
	stop    chan struct{}
	stopped chan struct{}
}

func NewOrderService(opts Options) *OrderService {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewUnregistered()
	}
	return &OrderService{
		symbol:  opts.Symbol,
		engine:  orderbook.NewEngine(opts.Engine),
		journal: opts.Journal,
		outbox:  opts.Outbox,
		quotes:  opts.Quotes,
		metrics: opts.Metrics,
		reqs:    make(chan func(), opts.QueueSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *OrderService) Symbol() string { return s.symbol }

// Start launches the writer goroutine. Replay must run before Start.
func (s *OrderService) Start() {
	go s.loop()
}

// Close stops the writer goroutine; queued work is abandoned.
func (s *OrderService) Close() {
	close(s.stop)
	<-s.stopped
}

func (s *OrderService) loop() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.reqs:
			fn()
		case <-s.stop:
			return
		}
	}
}

// exec runs fn on the writer goroutine and waits for it. ctx only bounds
// the wait for a queue slot: once queued, fn runs and exec reports its
// completion, so the caller always learns whether fn happened.
func (s *OrderService) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.reqs <- func() { fn(); close(done) }:
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Submit journals cmd and applies it to the book.
//
// A context error means cmd was not journaled and not applied: a command
// whose ctx is done by the time the writer reaches it is dropped.
func (s *OrderService) Submit(ctx context.Context, cmd Command) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	xerr := s.exec(ctx, func() {
		if err = ctx.Err(); err != nil {
			return
		}
		out, err = s.submit(cmd)
	})
	if xerr != nil {
		return Outcome{}, xerr
	}
	return out, err
}

func (s *OrderService) submit(cmd Command) (Outcome, error) {
	if s.halted != nil {
		return Outcome{}, errors.Wrapf(ErrHalted, "%s: %v", s.symbol, s.halted)
	}
	if err := cmd.validate(); err != nil {
		return Outcome{}, err
	}
	// An event the engine cannot take is refused before it is journaled,
	// so replay never sees it.
	if err := s.engine.Admit(cmd.Action, cmd.Qty, cmd.OrderID); err != nil {
		s.metrics.Events.WithLabelValues(s.symbol, cmd.Action.String(), orderbook.Rejected.String()).Inc()
		s.halt(err)
		return Outcome{Result: orderbook.Rejected}, err
	}

	seq := s.seq.Orders.Assign()
	ev := wire.OrderEvent{
		Symbol:  s.symbol,
		Seq:     seq,
		Action:  uint8(cmd.Action),
		Side:    uint8(cmd.Side),
		Price:   cmd.Price,
		Qty:     cmd.Qty,
		OrderID: cmd.OrderID,
	}
	if err := s.journal.Append(entrywal.NewRecord(entrywal.RecordOrder, seq, ev.Marshal())); err != nil {
		s.halt(errors.Wrap(err, "journal"))
		return Outcome{}, errors.Wrapf(ErrHalted, "%s: %v", s.symbol, s.halted)
	}
	return s.apply(seq, cmd)
}

// apply runs cmd through the engine and hands its effects off. It is
// shared by live traffic and journal replay.
func (s *OrderService) apply(seq uint64, cmd Command) (Outcome, error) {
	res, err := s.engine.ProcessOrder(cmd.Action, cmd.Side, cmd.Price, cmd.Qty, cmd.OrderID)
	s.metrics.Events.WithLabelValues(s.symbol, cmd.Action.String(), res.String()).Inc()
	if err != nil {
		if errors.Is(err, orderbook.ErrPoolExhausted) {
			s.halt(err)
		}
		return Outcome{Seq: seq, Result: res}, err
	}

	out := Outcome{Seq: seq, Result: res}
	if tl := s.engine.Trades(); tl.Len() > 0 {
		out.Trades = append([]orderbook.Trade(nil), tl.Since(0)...)
		tl.Reset()
		if err := s.publishTrades(seq, out.Trades); err != nil {
			s.halt(err)
			return out, errors.Wrapf(ErrHalted, "%s: %v", s.symbol, err)
		}
	}

	s.publishQuote(seq)
	s.observeBook()
	return out, nil
}

func (s *OrderService) halt(err error) {
	if s.halted == nil {
		s.halted = err
		log.Printf("[service] %s HALTED: %v", s.symbol, err)
	}
}

func (s *OrderService) publishTrades(seq uint64, trades []orderbook.Trade) error {
	now := time.Now().UnixNano()
	pending := make([]exitwal.Pending, 0, len(trades))
	var qty uint64
	for _, t := range trades {
		tradeSeq := s.seq.Trades.Assign()
		ev := wire.TradeEvent{
			Symbol:      s.symbol,
			Seq:         tradeSeq,
			OrderSeq:    seq,
			BuyOrderID:  t.BuyOrderID,
			BuyPrice:    t.BuyPrice,
			SellOrderID: t.SellOrderID,
			SellPrice:   t.SellPrice,
			Qty:         t.Quantity,
			Time:        now,
		}
		pending = append(pending, exitwal.Pending{Seq: tradeSeq, Payload: ev.Marshal()})
		qty += t.Quantity
	}
	s.metrics.Trades.WithLabelValues(s.symbol).Add(float64(len(trades)))
	s.metrics.TradedQty.WithLabelValues(s.symbol).Add(float64(qty))

	if s.outbox == nil {
		return nil
	}
	return errors.Wrap(s.outbox.PutNew(s.symbol, pending), "outbox")
}

func (s *OrderService) publishQuote(seq uint64) {
	if s.quotes == nil {
		return
	}
	if !s.quotes.Enqueue(s.quote(seq)) {
		s.metrics.QuotesDropped.WithLabelValues(s.symbol).Inc()
	}
}

func (s *OrderService) quote(seq uint64) wire.Quote {
	q := wire.Quote{Symbol: s.symbol, Seq: seq}
	if lvl, ok := s.engine.BestLevel(orderbook.Buy); ok {
		q.HasBid, q.BidPrice, q.BidQty = true, lvl.Price, lvl.TotalQty
	}
	if lvl, ok := s.engine.BestLevel(orderbook.Sell); ok {
		q.HasAsk, q.AskPrice, q.AskQty = true, lvl.Price, lvl.TotalQty
	}
	return q
}

func (s *OrderService) observeBook() {
	s.metrics.RestingOrders.WithLabelValues(s.symbol).Set(float64(s.engine.OrderCount()))
	s.metrics.PriceLevels.WithLabelValues(s.symbol, orderbook.Buy.String()).Set(float64(s.engine.BidLevelCount()))
	s.metrics.PriceLevels.WithLabelValues(s.symbol, orderbook.Sell.String()).Set(float64(s.engine.AskLevelCount()))
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// TopOfBook returns the current best level on each side.
func (s *OrderService) TopOfBook(ctx context.Context) (wire.Quote, error) {
	var q wire.Quote
	err := s.exec(ctx, func() { q = s.quote(s.seq.Orders.Last()) })
	return q, err
}

// Depth returns up to n levels per side, best first.
func (s *OrderService) Depth(ctx context.Context, n int) (bids, asks []orderbook.LevelView, err error) {
	err = s.exec(ctx, func() {
		bids = s.engine.Depth(orderbook.Buy, n)
		asks = s.engine.Depth(orderbook.Sell, n)
	})
	return bids, asks, err
}

// Lookup returns a resting order by id.
func (s *OrderService) Lookup(ctx context.Context, id uint64) (orderbook.Order, bool, error) {
	var (
		o  orderbook.Order
		ok bool
	)
	err := s.exec(ctx, func() { o, ok = s.engine.Lookup(id) })
	return o, ok, err
}

func (s *OrderService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.exec(ctx, func() {
		st = Stats{
			Symbol:     s.symbol,
			LastSeq:    s.seq.Orders.Last(),
			Orders:     s.engine.OrderCount(),
			BidLevels:  s.engine.BidLevelCount(),
			AskLevels:  s.engine.AskLevelCount(),
			ArenaInUse: s.engine.ArenaInUse(),
			Halted:     s.halted != nil,
		}
	})
	return st, err
}

// CheckInvariants verifies the book on the writer goroutine.
func (s *OrderService) CheckInvariants(ctx context.Context) error {
	var inv error
	if err := s.exec(ctx, func() { inv = s.engine.CheckInvariants() }); err != nil {
		return err
	}
	return inv
}
