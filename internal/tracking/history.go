package tracking

// History is a bounded sliding window of samples, oldest first.
type History[T any] struct {
	entries  []T
	capacity int
}

// NewHistory creates an empty history holding at most capacity samples.
// Capacities below 1 are raised to 1.
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest sample when full.
func (h *History[T]) Push(v T) {
	if len(h.entries) >= h.capacity {
		// Shift left by 1, dropping the oldest sample
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.capacity-1]
	}
	h.entries = append(h.entries, v)
}

// Len returns the number of samples held.
func (h *History[T]) Len() int { return len(h.entries) }

// Cap returns the capacity.
func (h *History[T]) Cap() int { return h.capacity }

// Entries returns a copy of the samples, oldest first.
func (h *History[T]) Entries() []T {
	return append([]T(nil), h.entries...)
}

// Clear drops all samples.
func (h *History[T]) Clear() {
	h.entries = h.entries[:0]
}
