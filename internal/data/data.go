// Package data provides the data sources consumed by training epochs.
//
// A DataLoader is restartable: each call to Iter returns a fresh Iterator
// positioned at the first item, so a new iterator is used for every epoch.
package data

import (
	"math/rand"
	"sync"
)

// Progress reports how far an iterator has advanced.
type Progress struct {
	ItemsProcessed int
	ItemsTotal     int
}

// Fraction returns processed/total, or 0 for an empty source.
func (p Progress) Fraction() float64 {
	if p.ItemsTotal == 0 {
		return 0
	}
	return float64(p.ItemsProcessed) / float64(p.ItemsTotal)
}

// Add returns the element-wise sum of two progress values.
func (p Progress) Add(o Progress) Progress {
	return Progress{
		ItemsProcessed: p.ItemsProcessed + o.ItemsProcessed,
		ItemsTotal:     p.ItemsTotal + o.ItemsTotal,
	}
}

// Iterator yields items of one epoch in order.
type Iterator[T any] interface {
	// Next returns the next item, or false once the source is exhausted.
	Next() (T, bool)
	// Progress reports the items consumed so far.
	Progress() Progress
}

// DataLoader creates iterators over a finite source.
type DataLoader[T any] interface {
	Iter() Iterator[T]
	NumItems() int
}

// SliceLoader serves items from memory.
//
// When shuffling is enabled, every call to Iter draws a new permutation from
// a generator seeded once at construction, so successive epochs differ but a
// run is reproducible.
type SliceLoader[T any] struct {
	items   []T
	shuffle bool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSliceLoader creates a loader that yields items in order.
func NewSliceLoader[T any](items []T) *SliceLoader[T] {
	return &SliceLoader[T]{items: items}
}

// NewShuffledLoader creates a loader that yields a new permutation each epoch.
func NewShuffledLoader[T any](items []T, seed int64) *SliceLoader[T] {
	return &SliceLoader[T]{
		items:   items,
		shuffle: true,
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible shuffling, not security.
	}
}

// NumItems returns the number of items per epoch.
func (l *SliceLoader[T]) NumItems() int {
	return len(l.items)
}

// Iter returns a fresh iterator.
func (l *SliceLoader[T]) Iter() Iterator[T] {
	order := make([]int, len(l.items))
	for i := range order {
		order[i] = i
	}
	if l.shuffle {
		l.mu.Lock()
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		l.mu.Unlock()
	}
	return &sliceIterator[T]{items: l.items, order: order}
}

type sliceIterator[T any] struct {
	items []T
	order []int
	pos   int
}

func (it *sliceIterator[T]) Next() (T, bool) {
	if it.pos >= len(it.order) {
		var zero T
		return zero, false
	}
	item := it.items[it.order[it.pos]]
	it.pos++
	return item, true
}

func (it *sliceIterator[T]) Progress() Progress {
	return Progress{ItemsProcessed: it.pos, ItemsTotal: len(it.order)}
}
