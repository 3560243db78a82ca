package orderbook

import (
	"github.com/cockroachdb/errors"

	"clob/infra/memory"
)

// ErrPoolExhausted is fatal for the engine: the New that hit it was not
// applied and no further New can be accepted safely.
var ErrPoolExhausted = memory.ErrPoolExhausted

var ErrInvalidEvent = errors.New("orderbook: invalid event")

// Result tells the caller what an event did to the book.
type Result uint8

const (
	Applied Result = iota
	// NotFound: Cancel/Amend for an id that is not resting.
	NotFound
	// SideMismatch: Cancel/Amend whose side disagrees with the resting order.
	SideMismatch
	// Rejected: New with zero quantity or an id that is already resting.
	Rejected
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case NotFound:
		return "not_found"
	case SideMismatch:
		return "side_mismatch"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}
