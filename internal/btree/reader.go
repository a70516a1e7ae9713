package btree

import (
	"fmt"
	"sync"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

// Reader scans positions [from, till] of a column as typed elements. It
// keeps a cursor so that consecutive Fill calls read each leaf once; any
// other position, or a mutation of the column, costs one descent.
//
// Reader implements iterator.Source.
type Reader[T kind.Elem] struct {
	c      *Column
	lock   sync.Locker
	origin int64
	n      int64

	valid   bool
	version uint64
	next    int64 // column position under the cursor
	leaf    page.ID
	off     int
	steps   []step
}

// NewReader returns a reader over [from, till]. If lock is non-nil it is
// held around every page access.
func NewReader[T kind.Elem](c *Column, from, till int64, lock sync.Locker) (*Reader[T], error) {
	if kind.PhysOf[T]() != c.Kind().Phys() {
		return nil, errs.Mismatch("column %q holds %s, not %T", c.Key(), c.Kind(), *new(T))
	}
	if from < 0 || till < from-1 || till >= c.Count() {
		return nil, errs.Invalid("column %q: range [%d, %d] outside [0, %d)", c.Key(), from, till, c.Count())
	}
	return &Reader[T]{c: c, lock: lock, origin: from, n: till - from + 1}, nil
}

// Len returns the number of positions in the window.
func (r *Reader[T]) Len() int64 { return r.n }

// Fill copies elements from window position pos into dst.
func (r *Reader[T]) Fill(pos int64, dst []T) (int, error) {
	if r.lock != nil {
		r.lock.Lock()
		defer r.lock.Unlock()
	}
	at := r.origin + pos
	want := min(int64(len(dst)), r.n-pos, r.c.Count()-at)
	if pos < 0 || want <= 0 {
		return 0, nil
	}
	if !r.valid || r.next != at || r.version != r.c.Version() {
		leaf, off, steps, err := r.c.locate(at)
		if err != nil {
			r.valid = false
			return 0, err
		}
		r.leaf, r.off, r.steps = leaf, off, steps
		r.version, r.valid = r.c.Version(), true
	}

	w := r.c.Width()
	filled := 0
	for int64(filled) < want {
		frame, err := r.c.p.Read(r.leaf)
		if err != nil {
			r.valid = false
			return filled, err
		}
		cnt := nodeLen(frame)
		if r.off >= cnt {
			if err := r.advance(); err != nil {
				r.valid = false
				return filled, err
			}
			continue
		}
		k := min(cnt-r.off, int(want)-filled)
		kind.DecodeInto(dst[filled:filled+k], frame[headerSize+r.off*w:headerSize+(r.off+k)*w], w)
		filled += k
		r.off += k
	}
	r.next = at + int64(filled)
	return filled, nil
}

// advance moves the cursor to the first element of the next leaf.
func (r *Reader[T]) advance() error {
	for level := len(r.steps) - 1; level >= 0; level-- {
		s := &r.steps[level]
		frame, err := r.c.p.Read(s.node)
		if err != nil {
			return err
		}
		if s.idx+1 >= nodeLen(frame) {
			continue
		}
		s.idx++
		child := readEntry(frame, s.idx).child
		for l := level + 1; l < len(r.steps); l++ {
			r.steps[l] = step{node: child, idx: 0}
			frame, err := r.c.p.Read(child)
			if err != nil {
				return err
			}
			child = readEntry(frame, 0).child
		}
		r.leaf, r.off = child, 0
		return nil
	}
	return fmt.Errorf("btree: column %q: read past the last leaf", r.c.Key())
}

// Clone returns a reader over the same window with its own cursor.
func (r *Reader[T]) Clone() iterator.Source[T] {
	return &Reader[T]{c: r.c, lock: r.lock, origin: r.origin, n: r.n}
}
