package orderbook

import "github.com/google/btree"

// Ordering decides which end of a side is "best".
type Ordering uint8

const (
	// BestHighest orders bids: highest price first.
	BestHighest Ordering = iota
	// BestLowest orders asks: lowest price first.
	BestLowest
)

const btreeDegree = 32

// Better reports whether price a ranks ahead of price b.
func (o Ordering) Better(a, b int64) bool {
	if o == BestHighest {
		return a > b
	}
	return a < b
}

// BookSide is one side of the book: price levels kept best-first.
// The best level is cached so Best is O(1).
type BookSide struct {
	ordering Ordering
	levels   *btree.BTreeG[*PriceLevel]
	best     *PriceLevel
	probe    PriceLevel
}

func NewBookSide(ordering Ordering) *BookSide {
	return &BookSide{
		ordering: ordering,
		levels: btree.NewG(btreeDegree, func(a, b *PriceLevel) bool {
			return ordering.Better(a.Price, b.Price)
		}),
	}
}

func (s *BookSide) Ordering() Ordering { return s.ordering }

// Find returns the level at price, or nil.
func (s *BookSide) Find(price int64) *PriceLevel {
	s.probe.Price = price
	lvl, ok := s.levels.Get(&s.probe)
	if !ok {
		return nil
	}
	return lvl
}

// GetOrCreate returns the level at price, creating an empty one if absent.
func (s *BookSide) GetOrCreate(price int64) *PriceLevel {
	if lvl := s.Find(price); lvl != nil {
		return lvl
	}
	lvl := &PriceLevel{Price: price}
	s.levels.ReplaceOrInsert(lvl)
	if s.best == nil || s.ordering.Better(price, s.best.Price) {
		s.best = lvl
	}
	return lvl
}

// EraseIfEmpty drops the level at price when it holds no orders.
func (s *BookSide) EraseIfEmpty(price int64) bool {
	lvl := s.Find(price)
	if lvl == nil || !lvl.IsEmpty() {
		return false
	}
	s.levels.Delete(lvl)
	if lvl == s.best {
		s.best, _ = s.levels.Min()
	}
	return true
}

// Best returns the best level, or nil when the side is empty.
func (s *BookSide) Best() *PriceLevel {
	return s.best
}

// Len is the number of price levels.
func (s *BookSide) Len() int {
	return s.levels.Len()
}

// Walk visits levels best-first until fn returns false.
func (s *BookSide) Walk(fn func(*PriceLevel) bool) {
	s.levels.Ascend(fn)
}
