package buffer

// Ring is a fixed-capacity FIFO with an explicit head index.
// The zero value has capacity 0 and drops every push.
type Ring[T any] struct {
	data []T
	head int
	size int
}

// NewRing returns an empty ring holding at most capacity elements.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring[T]{data: make([]T, capacity)}
}

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.data) }

// Full reports whether the next push evicts an element.
func (r *Ring[T]) Full() bool { return r.size == len(r.data) }

// Push appends v. When the ring is full the oldest element is evicted and
// returned with ok=true.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	if len(r.data) == 0 {
		return v, true
	}

	if r.size == len(r.data) {
		evicted = r.data[r.head]
		r.data[r.head] = v
		r.head = r.wrap(r.head + 1)
		return evicted, true
	}

	r.data[r.wrap(r.head+r.size)] = v
	r.size++

	return evicted, false
}

// PopFront removes and returns the oldest element.
func (r *Ring[T]) PopFront() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}

	var zero T
	v = r.data[r.head]
	r.data[r.head] = zero
	r.head = r.wrap(r.head + 1)
	r.size--

	return v, true
}

// Front returns the oldest element without removing it.
func (r *Ring[T]) Front() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}
	return r.data[r.head], true
}

// Back returns the newest element without removing it.
func (r *Ring[T]) Back() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}
	return r.data[r.wrap(r.head+r.size-1)], true
}

// At returns the i-th element counted from the oldest. It panics when i is
// out of range, like slice indexing.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("buffer: ring index out of range")
	}
	return r.data[r.wrap(r.head+i)]
}

// AppendTo appends the contents oldest-first to dst and returns it.
func (r *Ring[T]) AppendTo(dst []T) []T {
	for i := 0; i < r.size; i++ {
		dst = append(dst, r.data[r.wrap(r.head+i)])
	}
	return dst
}

// Reset drops all elements while keeping the capacity.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.head = 0
	r.size = 0
}

func (r *Ring[T]) wrap(i int) int {
	if i >= len(r.data) {
		return i - len(r.data)
	}
	return i
}
