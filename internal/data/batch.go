package data

// Batch groups consecutive items of a source into one training item.
type Batch[T any] struct {
	Items []T
}

// Len returns the number of items in the batch.
func (b Batch[T]) Len() int {
	return len(b.Items)
}

// BatchLoader wraps a loader and yields batches of up to Size items. The
// last batch of an epoch may be short.
type BatchLoader[T any] struct {
	inner DataLoader[T]
	size  int
}

// NewBatchLoader creates a batching loader. A size below 1 is treated as 1.
func NewBatchLoader[T any](inner DataLoader[T], size int) *BatchLoader[T] {
	return &BatchLoader[T]{inner: inner, size: max(size, 1)}
}

// NumItems returns the number of batches per epoch.
func (l *BatchLoader[T]) NumItems() int {
	n := l.inner.NumItems()
	return (n + l.size - 1) / l.size
}

// Iter returns a fresh batch iterator.
func (l *BatchLoader[T]) Iter() Iterator[Batch[T]] {
	return &batchIterator[T]{inner: l.inner.Iter(), size: l.size, total: l.NumItems()}
}

type batchIterator[T any] struct {
	inner Iterator[T]
	size  int
	done  int
	total int
}

func (it *batchIterator[T]) Next() (Batch[T], bool) {
	items := make([]T, 0, it.size)
	for len(items) < it.size {
		item, ok := it.inner.Next()
		if !ok {
			break
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return Batch[T]{}, false
	}
	it.done++
	return Batch[T]{Items: items}, true
}

func (it *batchIterator[T]) Progress() Progress {
	return Progress{ItemsProcessed: it.done, ItemsTotal: it.total}
}
