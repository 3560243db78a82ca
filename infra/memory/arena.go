package memory

import "github.com/cockroachdb/errors"

// ErrPoolExhausted is returned by Acquire when every slot is in use.
var ErrPoolExhausted = errors.New("memory: arena exhausted")

// Handle names a slot in an Arena. A handle becomes stale as soon as its
// slot is released; the generation makes that detectable.
type Handle struct {
	index uint32
	gen   uint32
}

// Index returns the slot index.
func (h Handle) Index() uint32 { return h.index }

// Arena is a fixed-capacity slot store (no GC churn in steady state).
// Slots are never moved, so pointers returned by Get stay valid until the
// slot is released.
type Arena[T any] struct {
	slots []T
	gens  []uint32
	live  []bool
	free  []uint32
}

func NewArena[T any](capacity int) *Arena[T] {
	a := &Arena[T]{
		slots: make([]T, capacity),
		gens:  make([]uint32, capacity),
		live:  make([]bool, capacity),
		free:  make([]uint32, capacity),
	}
	// lowest index on top of the stack
	for i := 0; i < capacity; i++ {
		a.free[i] = uint32(capacity - 1 - i)
	}
	return a
}

// Acquire hands out a zeroed slot.
func (a *Arena[T]) Acquire() (Handle, error) {
	n := len(a.free)
	if n == 0 {
		return Handle{}, ErrPoolExhausted
	}
	idx := a.free[n-1]
	a.free = a.free[:n-1]

	var zero T
	a.slots[idx] = zero
	a.live[idx] = true
	return Handle{index: idx, gen: a.gens[idx]}, nil
}

// Release returns the slot behind h. Releasing a stale handle is a no-op
// and reports false.
func (a *Arena[T]) Release(h Handle) bool {
	if !a.valid(h) {
		return false
	}
	var zero T
	a.slots[h.index] = zero
	a.live[h.index] = false
	a.gens[h.index]++
	a.free = append(a.free, h.index)
	return true
}

// Get resolves h, or returns nil if the handle is stale.
func (a *Arena[T]) Get(h Handle) *T {
	if !a.valid(h) {
		return nil
	}
	return &a.slots[h.index]
}

func (a *Arena[T]) valid(h Handle) bool {
	return int(h.index) < len(a.slots) && a.live[h.index] && a.gens[h.index] == h.gen
}

// InUse is the number of acquired slots.
func (a *Arena[T]) InUse() int { return len(a.slots) - len(a.free) }

func (a *Arena[T]) Cap() int { return len(a.slots) }
