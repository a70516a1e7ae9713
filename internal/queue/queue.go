// Package queue provides a generic binary heap used for top-k selection.
package queue

// Heap is a binary heap ordered by less: the top is the element no other
// element is less than.
type Heap[T any] struct {
	less  func(a, b T) bool
	items []T
}

// New returns an empty heap with the given capacity hint.
func New[T any](less func(a, b T) bool, capacity int) *Heap[T] {
	return &Heap[T]{less: less, items: make([]T, 0, capacity)}
}

// Len returns the number of elements.
func (h *Heap[T]) Len() int { return len(h.items) }

// Top returns the top element.
func (h *Heap[T]) Top() (T, bool) {
	if len(h.items) == 0 {
		var zero T
		return zero, false
	}
	return h.items[0], true
}

// Push inserts v.
func (h *Heap[T]) Push(v T) {
	h.items = append(h.items, v)
	h.up(len(h.items) - 1)
}

// Pop removes and returns the top element.
func (h *Heap[T]) Pop() (T, bool) {
	n := len(h.items)
	if n == 0 {
		var zero T
		return zero, false
	}
	top := h.items[0]
	h.items[0] = h.items[n-1]
	var zero T
	h.items[n-1] = zero
	h.items = h.items[:n-1]
	if n > 1 {
		h.down(0)
	}
	return top, true
}

// PushBounded keeps at most k elements: once full, v replaces the top only
// if the top is less than v. With a min-ordering this retains the k largest
// values seen.
func (h *Heap[T]) PushBounded(v T, k int) {
	if len(h.items) < k {
		h.Push(v)
		return
	}
	if k == 0 || !h.less(h.items[0], v) {
		return
	}
	h.items[0] = v
	h.down(0)
}

// Drain pops every element into a slice, top first, leaving the heap empty.
func (h *Heap[T]) Drain() []T {
	out := make([]T, 0, len(h.items))
	for len(h.items) > 0 {
		v, _ := h.Pop()
		out = append(out, v)
	}
	return out
}

// Reset empties the heap, keeping its storage.
func (h *Heap[T]) Reset() {
	clear(h.items)
	h.items = h.items[:0]
}

func (h *Heap[T]) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(h.items[i], h.items[p]) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *Heap[T]) down(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(h.items[r], h.items[l]) {
			best = r
		}
		if !h.less(h.items[best], h.items[i]) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}
