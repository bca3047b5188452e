package reactor

// Iterator is a generic round-robin cursor over a fixed slice of items,
// adapted from the teacher's internal/pkg/iterator package: Next advances
// the cursor and returns the item now under it, wrapping past the end;
// Peek reports the item under the cursor without advancing. A zero-value
// Iterator (no Items) returns the zero value of T from both.
type Iterator[T any] struct {
	Items []T
	idx   int
}

// NewIterator builds an Iterator whose cursor starts on items[0], so
// Peek() returns items[0] and the first Next() call returns items[1].
func NewIterator[T any](items []T) *Iterator[T] {
	return &Iterator[T]{Items: items}
}

// Next advances the cursor by one position, wrapping modulo len(Items),
// and returns the item now under it. On an empty iterator it returns the
// zero value of T and leaves the cursor untouched.
func (it *Iterator[T]) Next() T {
	if len(it.Items) == 0 {
		var zero T
		return zero
	}
	it.idx = (it.idx + 1) % len(it.Items)
	return it.Items[it.idx]
}

// Peek returns the item currently under the cursor without advancing it.
// On an empty iterator it returns the zero value of T.
func (it *Iterator[T]) Peek() T {
	if len(it.Items) == 0 {
		var zero T
		return zero
	}
	return it.Items[it.idx]
}

// Len reports the number of items in the iterator.
func (it *Iterator[T]) Len() int { return len(it.Items) }
