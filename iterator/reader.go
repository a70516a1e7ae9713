package iterator

import "github.com/hupe1980/imcs/kind"

// reader pulls an operand tile by tile and lets a consumer take elements in
// runs that need not line up with the operand's tile boundaries.
type reader[T kind.Elem] struct {
	it   Tiler[T]
	data []T
	off  int
	done bool
}

func newReader[T kind.Elem](it Iterator) (*reader[T], error) {
	t, err := tiler[T](it)
	if err != nil {
		return nil, err
	}
	return &reader[T]{it: t}, nil
}

// peek returns the unconsumed rest of the current tile, pulling the next
// tile when it is used up. An empty result means the operand is exhausted.
func (r *reader[T]) peek() ([]T, error) {
	for r.off >= len(r.data) {
		if r.done {
			return nil, nil
		}
		ok, err := r.it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			r.done = true
			r.data, r.off = nil, 0
			return nil, nil
		}
		r.data, r.off = r.it.Tile(), 0
	}
	return r.data[r.off:], nil
}

func (r *reader[T]) skip(n int) { r.off += n }

// reset forgets buffered state; the operand itself is reset by its owner.
func (r *reader[T]) reset() {
	r.data, r.off, r.done = nil, 0, false
}

// each feeds every remaining tile of it to fn.
func each[T kind.Elem](it Iterator, fn func([]T) error) error {
	t, err := tiler[T](it)
	if err != nil {
		return err
	}
	for {
		ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(t.Tile()); err != nil {
			return err
		}
	}
}

// zip feeds aligned runs of two operands to fn until either is exhausted.
func zip[A, B kind.Elem](a *reader[A], b *reader[B], fn func([]A, []B) error) error {
	for {
		xa, err := a.peek()
		if err != nil {
			return err
		}
		xb, err := b.peek()
		if err != nil {
			return err
		}
		n := min(len(xa), len(xb))
		if n == 0 {
			return nil
		}
		if err := fn(xa[:n], xb[:n]); err != nil {
			return err
		}
		a.skip(n)
		b.skip(n)
	}
}
