package service

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var ErrUnknownInstrument = errors.New("service: unknown instrument")

// Instrument is one routed symbol and its price scale.
type Instrument struct {
	Service  *OrderService
	TickSize decimal.Decimal
}

// Router sends each request to the service that owns its symbol.
// Instruments share nothing; the map is fixed after construction.
type Router struct {
	instruments map[string]Instrument
}

func NewRouter() *Router {
	return &Router{instruments: make(map[string]Instrument)}
}

// Add registers svc. It must be called before the router is shared.
func (r *Router) Add(svc *OrderService, tickSize decimal.Decimal) error {
	if _, dup := r.instruments[svc.Symbol()]; dup {
		return errors.Newf("service: duplicate instrument %q", svc.Symbol())
	}
	r.instruments[svc.Symbol()] = Instrument{Service: svc, TickSize: tickSize}
	return nil
}

func (r *Router) Lookup(symbol string) (Instrument, error) {
	in, ok := r.instruments[symbol]
	if !ok {
		return Instrument{}, errors.Wrapf(ErrUnknownInstrument, "%q", symbol)
	}
	return in, nil
}

// Symbols returns the routed symbols in sorted order.
func (r *Router) Symbols() []string {
	out := make([]string, 0, len(r.instruments))
	for s := range r.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r *Router) Submit(ctx context.Context, symbol string, cmd Command) (Outcome, error) {
	in, err := r.Lookup(symbol)
	if err != nil {
		return Outcome{}, err
	}
	return in.Service.Submit(ctx, cmd)
}

func (r *Router) Start() {
	for _, in := range r.instruments {
		in.Service.Start()
	}
}

func (r *Router) Close() {
	for _, in := range r.instruments {
		in.Service.Close()
	}
}

// Display converts a tick price to its decimal form.
func (in Instrument) Display(ticks int64) decimal.Decimal {
	return decimal.NewFromInt(ticks).Mul(in.TickSize)
}
