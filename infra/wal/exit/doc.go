// Package exit is the exit WAL: a pebble-backed outbox of trades waiting
// to be published downstream. It decouples the matching goroutine from
// Kafka; the broadcaster drains it at its own pace.
package exit
