// Package httpserver is the read-only admin surface: book inspection,
// health and Prometheus metrics.
package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"clob/domain/orderbook"
	"clob/service"
)

const defaultDepth = 10

type Server struct {
	router *service.Router
	mux    *mux.Router
}

// NewServer wires routes; gatherer backs /metrics.
func NewServer(router *service.Router, gatherer prometheus.Gatherer) *Server {
	s := &Server{router: router, mux: mux.NewRouter()}

	inst := s.mux.PathPrefix("/instruments").Subrouter()
	inst.HandleFunc("", s.handleInstruments).Methods(http.MethodGet)
	inst.HandleFunc("/{symbol}/top", s.handleTop).Methods(http.MethodGet)
	inst.HandleFunc("/{symbol}/depth", s.handleDepth).Methods(http.MethodGet)
	inst.HandleFunc("/{symbol}/stats", s.handleStats).Methods(http.MethodGet)
	inst.HandleFunc("/{symbol}/orders/{id:[0-9]+}", s.handleOrder).Methods(http.MethodGet)

	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Level is a price level with its display price.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Ticks    int64           `json:"ticks"`
	Quantity uint64          `json:"quantity"`
	Orders   int             `json:"orders"`
}

type TopResponse struct {
	Symbol string `json:"symbol"`
	Seq    uint64 `json:"seq"`
	Bid    *Level `json:"bid,omitempty"`
	Ask    *Level `json:"ask,omitempty"`
}

type DepthResponse struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

type OrderResponse struct {
	ID       uint64          `json:"id"`
	Side     string          `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Ticks    int64           `json:"ticks"`
	Quantity uint64          `json:"quantity"`
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"instruments": s.router.Symbols()})
}

// handleTop handles GET /instruments/{symbol}/top
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	in, ok := s.instrument(w, r)
	if !ok {
		return
	}
	q, err := in.Service.TopOfBook(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}

	resp := TopResponse{Symbol: q.Symbol, Seq: q.Seq}
	if q.HasBid {
		resp.Bid = &Level{Price: in.Display(q.BidPrice), Ticks: q.BidPrice, Quantity: q.BidQty}
	}
	if q.HasAsk {
		resp.Ask = &Level{Price: in.Display(q.AskPrice), Ticks: q.AskPrice, Quantity: q.AskQty}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleDepth handles GET /instruments/{symbol}/depth?levels=N
func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	in, ok := s.instrument(w, r)
	if !ok {
		return
	}

	n := defaultDepth
	if v := r.URL.Query().Get("levels"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "levels must be a positive integer")
			return
		}
		n = parsed
	}

	bids, asks, err := in.Service.Depth(r.Context(), n)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DepthResponse{
		Symbol: in.Service.Symbol(),
		Bids:   levels(in, bids),
		Asks:   levels(in, asks),
	})
}

// handleStats handles GET /instruments/{symbol}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	in, ok := s.instrument(w, r)
	if !ok {
		return
	}
	st, err := in.Service.Stats(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"symbol":       st.Symbol,
		"last_seq":     st.LastSeq,
		"orders":       st.Orders,
		"bid_levels":   st.BidLevels,
		"ask_levels":   st.AskLevels,
		"arena_in_use": st.ArenaInUse,
		"halted":       st.Halted,
	})
}

// handleOrder handles GET /instruments/{symbol}/orders/{id}
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	in, ok := s.instrument(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, found, err := in.Service.Lookup(r.Context(), id)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, OrderResponse{
		ID:       o.ID,
		Side:     o.Side.String(),
		Price:    in.Display(o.Price),
		Ticks:    o.Price,
		Quantity: o.Qty,
	})
}

// handleHealth reports 503 while any instrument is halted.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var halted []string
	for _, symbol := range s.router.Symbols() {
		in, _ := s.router.Lookup(symbol)
		st, err := in.Service.Stats(r.Context())
		if err != nil || st.Halted {
			halted = append(halted, symbol)
		}
	}
	if len(halted) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "halted": halted})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) instrument(w http.ResponseWriter, r *http.Request) (service.Instrument, bool) {
	in, err := s.router.Lookup(mux.Vars(r)["symbol"])
	if err != nil {
		respondErr(w, err)
		return service.Instrument{}, false
	}
	return in, true
}

func levels(in service.Instrument, views []orderbook.LevelView) []Level {
	out := make([]Level, 0, len(views))
	for _, v := range views {
		out = append(out, Level{Price: in.Display(v.Price), Ticks: v.Price, Quantity: v.TotalQty, Orders: v.OrderCount})
	}
	return out
}

// --- responses ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownInstrument):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
