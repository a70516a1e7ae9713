package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Limit yields the elements of x at positions [from, till] of x's window.
// till may be Unbounded.
func Limit(x Iterator, from, till int64) (Iterator, error) {
	if from < 0 || till < from-1 {
		return nil, errs.Invalid("limit [%d, %d]", from, till)
	}
	return newStride(x, from, till, 1)
}

// Grid yields every step-th element of x, starting with the first.
func Grid(x Iterator, step int64) (Iterator, error) {
	if step < 1 {
		return nil, errs.Invalid("grid step %d", step)
	}
	return newStride(x, 0, Unbounded, step)
}

func newStride(x Iterator, offset, till, step int64) (Iterator, error) {
	switch x.Kind().Phys() {
	case kind.PhysInt8:
		return makeStride[int8](x, offset, till, step)
	case kind.PhysInt16:
		return makeStride[int16](x, offset, till, step)
	case kind.PhysInt32:
		return makeStride[int32](x, offset, till, step)
	case kind.PhysInt64:
		return makeStride[int64](x, offset, till, step)
	case kind.PhysFloat32:
		return makeStride[float32](x, offset, till, step)
	case kind.PhysFloat64:
		return makeStride[float64](x, offset, till, step)
	case kind.PhysString:
		return makeStride[string](x, offset, till, step)
	}
	return nil, errs.Unsupported(x.Kind(), "limit")
}

// stride yields x[xbase + offset + i*step] for its own positions i.
type stride[T kind.Elem] struct {
	node
	tile[T]
	x      *reader[T]
	xbase  int64
	xlast  int64
	offset int64
	step   int64
	full   int64
	phase  int64 // elements of x to skip before the next pick
	left   int64 // elements still to emit
}

func makeStride[T kind.Elem](x Iterator, offset, till, step int64) (Iterator, error) {
	full := Unbounded
	if till != Unbounded {
		full = till - offset
	}
	if e := Extent(x); e != Unbounded {
		full = min(full, (e-1-offset)/step)
		if e-1 < offset {
			full = -1
		}
	}
	s := &stride[T]{
		xbase:  x.First(),
		xlast:  x.Last(),
		offset: offset,
		step:   step,
		full:   full,
	}
	flags := Flags(0)
	if x.Flags().Has(RandomAccess) {
		if _, ok := x.(Seeker); ok {
			flags = RandomAccess | ContextFree
		}
	}
	s.node = newNode(x.Kind(), x.Width(), flags, full, scopeOf(x), x)
	if err := s.bind(); err != nil {
		return nil, err
	}
	if flags.Has(RandomAccess) {
		if err := s.Seek(0, full); err != nil {
			return nil, err
		}
	}
	s.Reset()
	return s, nil
}

func (s *stride[T]) bind() error {
	var err error
	s.x, err = newReader[T](s.ops[0])
	return err
}

func (s *stride[T]) Seek(from, till int64) error {
	if !s.flags.Has(RandomAccess) {
		return errs.Unsupported(s.kind, "seek")
	}
	if err := s.window(from, till, s.full); err != nil {
		return err
	}
	lo, hi := s.xbase, s.xbase-1
	if s.last >= s.first {
		lo = s.xbase + s.offset + s.first*s.step
		hi = s.xlast
		if s.last != Unbounded {
			hi = min(hi, s.xbase+s.offset+s.last*s.step)
		}
	}
	if err := s.ops[0].(Seeker).Seek(lo, hi); err != nil {
		return err
	}
	s.Reset()
	return nil
}

func (s *stride[T]) Next() (bool, error) {
	buf, err := s.buf(s.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) && s.left > 0 {
		xs, err := s.x.peek()
		if err != nil {
			return false, err
		}
		if len(xs) == 0 {
			s.left = 0
			break
		}
		if s.phase > 0 {
			k := int(min(s.phase, int64(len(xs))))
			s.x.skip(k)
			s.phase -= int64(k)
			continue
		}
		if s.step == 1 {
			k := int(min(int64(len(xs)), int64(len(buf)-out), s.left))
			copy(buf[out:], xs[:k])
			s.x.skip(k)
			out += k
			s.left -= int64(k)
			continue
		}
		buf[out] = xs[0]
		out++
		s.x.skip(1)
		s.left--
		s.phase = s.step - 1
	}
	s.n = out
	return out > 0, nil
}

func (s *stride[T]) Reset() {
	s.resetOps()
	s.x.reset()
	s.n = 0
	s.phase = 0
	if !s.flags.Has(RandomAccess) {
		s.phase = s.offset
	}
	s.left = Unbounded
	if s.last != Unbounded {
		s.left = max(s.last-s.first+1, 0)
	}
}

func (s *stride[T]) Clone() Iterator {
	c := &stride[T]{
		node:   s.node,
		xbase:  s.xbase,
		xlast:  s.xlast,
		offset: s.offset,
		step:   s.step,
		full:   s.full,
	}
	c.ops = s.cloneOps()
	if err := c.bind(); err != nil {
		panic(err)
	}
	c.Reset()
	return c
}

// Concat yields the elements of a followed by those of b.
func Concat(a, b Iterator) (Iterator, error) {
	a, b, err := unify(a, b)
	if err != nil {
		return nil, err
	}
	switch a.Kind().Phys() {
	case kind.PhysInt8:
		return newConcat[int8](a, b)
	case kind.PhysInt16:
		return newConcat[int16](a, b)
	case kind.PhysInt32:
		return newConcat[int32](a, b)
	case kind.PhysInt64:
		return newConcat[int64](a, b)
	case kind.PhysFloat32:
		return newConcat[float32](a, b)
	case kind.PhysFloat64:
		return newConcat[float64](a, b)
	case kind.PhysString:
		return newConcat[string](a, b)
	}
	return nil, errs.Unsupported(a.Kind(), "concat")
}

type concat[T kind.Elem] struct {
	node
	tile[T]
	in [2]*reader[T]
}

func newConcat[T kind.Elem](a, b Iterator) (Iterator, error) {
	c := &concat[T]{node: newNode(a.Kind(), max(a.Width(), b.Width()), 0, Unbounded, scopeOf(a), a, b)}
	if ea, eb := Extent(a), Extent(b); ea != Unbounded && eb != Unbounded {
		c.last = ea + eb - 1
	}
	if err := c.bind(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *concat[T]) bind() error {
	for i, op := range c.ops {
		r, err := newReader[T](op)
		if err != nil {
			return err
		}
		c.in[i] = r
	}
	return nil
}

func (c *concat[T]) Next() (bool, error) {
	buf, err := c.buf(c.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for _, r := range c.in {
		for out < len(buf) {
			xs, err := r.peek()
			if err != nil {
				return false, err
			}
			if len(xs) == 0 {
				break
			}
			k := copy(buf[out:], xs)
			r.skip(k)
			out += k
		}
	}
	c.n = out
	return out > 0, nil
}

func (c *concat[T]) Reset() {
	c.resetOps()
	for _, r := range c.in {
		r.reset()
	}
	c.n = 0
}

func (c *concat[T]) Clone() Iterator {
	n := &concat[T]{node: c.node}
	n.ops = c.cloneOps()
	if err := n.bind(); err != nil {
		panic(err)
	}
	return n
}
