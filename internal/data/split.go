package data

import (
	"fmt"
	"sync"
)

// Split partitions loader into n contiguous shards, one per device. When the
// item count is not divisible by n, the first shards receive one extra item
// each.
//
// The shards share the source: the first shard to start epoch k draws the
// source's k-th epoch, and every shard slices its part out of that draw. A
// shuffling source therefore yields a fresh permutation per epoch across
// all shards.
func Split[T any](loader DataLoader[T], n int) ([]DataLoader[T], error) {
	if n < 1 {
		return nil, fmt.Errorf("data: cannot split into %d shards", n)
	}

	src := &splitSource[T]{source: loader, shards: n, epochs: make(map[int]*splitEpoch[T])}
	total := loader.NumItems()
	base, extra := total/n, total%n

	shards := make([]DataLoader[T], n)
	start := 0
	for i := range shards {
		size := base
		if i < extra {
			size++
		}
		shards[i] = &shardLoader[T]{src: src, start: start, size: size}
		start += size
	}
	return shards, nil
}

type splitEpoch[T any] struct {
	items   []T
	pending int
}

// splitSource materializes one epoch of the source at a time and hands it
// out to the shards. An epoch is released once every shard has taken it.
type splitSource[T any] struct {
	source DataLoader[T]
	shards int

	mu     sync.Mutex
	epochs map[int]*splitEpoch[T]
}

func (s *splitSource[T]) take(epoch int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.epochs[epoch]
	if !ok {
		e = &splitEpoch[T]{items: collect(s.source.Iter()), pending: s.shards}
		s.epochs[epoch] = e
	}
	e.pending--
	if e.pending == 0 {
		delete(s.epochs, epoch)
	}
	return e.items
}

func collect[T any](it Iterator[T]) []T {
	var items []T
	for {
		item, ok := it.Next()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

type shardLoader[T any] struct {
	src         *splitSource[T]
	start, size int

	mu    sync.Mutex
	epoch int
}

// NumItems returns the shard size.
func (l *shardLoader[T]) NumItems() int {
	return l.size
}

// Iter starts the shard's next epoch.
func (l *shardLoader[T]) Iter() Iterator[T] {
	l.mu.Lock()
	epoch := l.epoch
	l.epoch++
	l.mu.Unlock()

	items := l.src.take(epoch)
	lo := min(l.start, len(items))
	hi := min(l.start+l.size, len(items))
	return NewSliceLoader(items[lo:hi]).Iter()
}
