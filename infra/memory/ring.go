package memory

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Ring is a lock-free SPSC ring buffer.
type Ring[T any] struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte
	buf   []T
	mask  uint64
}

func NewRing[T any](size uint64) (*Ring[T], error) {
	if size == 0 || size&(size-1) != 0 {
		return nil, errors.Newf("memory: ring size %d must be a power of two", size)
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}, nil
}

// Enqueue is called by the producer only. It reports false when full.
func (r *Ring[T]) Enqueue(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// Dequeue is called by the consumer only.
func (r *Ring[T]) Dequeue() (T, bool) {
	var zero T
	t := r.tail.Load()
	h := r.head.Load()
	if t == h {
		return zero, false
	}
	v := r.buf[t&r.mask]
	r.buf[t&r.mask] = zero
	r.tail.Store(t + 1)
	return v, true
}

func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}
