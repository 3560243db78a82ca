// Package wire defines the messages the engine exchanges with the outside
// world (order events, trades, quotes, gateway replies) and encodes them in
// the protobuf wire format with protowire, without generated code.
package wire
