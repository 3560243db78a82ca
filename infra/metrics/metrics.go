// Package metrics holds the Prometheus collectors of the engine service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clob"

type Metrics struct {
	Events        *prometheus.CounterVec
	Trades        *prometheus.CounterVec
	TradedQty     *prometheus.CounterVec
	RestingOrders *prometheus.GaugeVec
	PriceLevels   *prometheus.GaugeVec
	QuotesDropped *prometheus.CounterVec
	Published     *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_events_total",
			Help:      "Order events applied, by action and result.",
		}, []string{"symbol", "action", "result"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades produced by matching.",
		}, []string{"symbol"}),
		TradedQty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Sum of matched quantity.",
		}, []string{"symbol"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders currently resting in the book.",
		}, []string{"symbol"}),
		PriceLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "price_levels",
			Help:      "Non-empty price levels per side.",
		}, []string{"symbol", "side"}),
		QuotesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_dropped_total",
			Help:      "Top-of-book quotes dropped because the hand-off ring was full.",
		}, []string{"symbol"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Messages published downstream, by stream.",
		}, []string{"stream"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed downstream publish attempts, by stream.",
		}, []string{"stream"}),
	}
	reg.MustRegister(
		m.Events, m.Trades, m.TradedQty, m.RestingOrders,
		m.PriceLevels, m.QuotesDropped, m.Published, m.PublishErrors,
	)
	return m
}

// NewUnregistered is for tests and tools that do not expose /metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
