// Package memory provides the low-level primitives the engine uses
// instead of per-order heap allocation: a fixed-capacity Arena handing
// out generation-checked handles, and a single-producer single-consumer
// Ring used to move values off the matching goroutine.
//
// Nothing in this package locks. Arena is owned by one goroutine; Ring
// is safe for exactly one producer and one consumer.
package memory
