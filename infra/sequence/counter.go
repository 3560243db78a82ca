// Package sequence numbers the event streams of one instrument.
package sequence

import "github.com/cockroachdb/errors"

// Counter numbers one stream starting at 1. It belongs to the
// instrument's writer goroutine and is not safe for concurrent use.
type Counter struct {
	last uint64
}

func (c *Counter) Assign() uint64 {
	c.last++
	return c.last
}

// Last is the most recently assigned number, 0 before the first Assign.
func (c *Counter) Last() uint64 { return c.last }

// ResumeAfter continues numbering after last, as recovered from a journal.
func (c *Counter) ResumeAfter(last uint64) error {
	if last < c.last {
		return errors.Newf("sequence: resume after %d would reuse up to %d", last, c.last)
	}
	c.last = last
	return nil
}

// Streams are the counters of one instrument: accepted order events, and
// the trades those events produce.
type Streams struct {
	Orders Counter
	Trades Counter
}
