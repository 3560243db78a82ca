// Package service orchestrates the core components of the matching
// engine: orderbook, entry WAL, trade outbox, quote hand-off and metrics.
//
// Each instrument gets one OrderService that owns its Engine on a
// dedicated goroutine; transports (gRPC, HTTP, Kafka) only talk to the
// Router.
package service
