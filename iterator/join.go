package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// JoinMode selects which inner element an outer element matches.
type JoinMode uint8

const (
	// JoinExact matches the first inner element equal to the outer one.
	JoinExact JoinMode = iota
	// JoinBefore matches the last inner element less than or equal to it.
	JoinBefore
	// JoinAfter matches the first inner element greater than or equal to it.
	JoinAfter
)

// Join yields, for every element of outer, the position of its matching
// element in inner, or -1 if there is none. Both inputs must be in
// ascending order; they are merged in a single pass.
func Join(outer, inner Iterator, mode JoinMode) (Iterator, error) {
	if mode > JoinAfter {
		return nil, errs.Invalid("join mode %d", mode)
	}
	outer, inner, err := unify(outer, inner)
	if err != nil {
		return nil, err
	}
	k := outer.Kind()
	if k == kind.Varchar && mode != JoinExact {
		return nil, errs.Unsupported(k, "ordered join")
	}
	switch k.Phys() {
	case kind.PhysInt8:
		return newJoin[int8](outer, inner, mode)
	case kind.PhysInt16:
		return newJoin[int16](outer, inner, mode)
	case kind.PhysInt32:
		return newJoin[int32](outer, inner, mode)
	case kind.PhysInt64:
		return newJoin[int64](outer, inner, mode)
	case kind.PhysFloat32:
		return newJoin[float32](outer, inner, mode)
	case kind.PhysFloat64:
		return newJoin[float64](outer, inner, mode)
	case kind.PhysString:
		return newJoin[string](outer, inner, mode)
	}
	return nil, errs.Unsupported(k, "join")
}

type join[T ordered] struct {
	node
	tile[int64]
	outer *reader[T]
	inner *reader[T]
	mode  JoinMode
	ipos  int64 // position of inner's next unread element
	prev  int64 // last consumed inner position not above the outer value
}

func newJoin[T ordered](outer, inner Iterator, mode JoinMode) (Iterator, error) {
	j := &join[T]{
		node: newNode(kind.Int64, 0, 0, Unbounded, scopeOf(outer), outer, inner),
		mode: mode,
	}
	if e := Extent(outer); e != Unbounded {
		j.last = e - 1
	}
	if err := j.bind(); err != nil {
		return nil, err
	}
	j.Reset()
	return j, nil
}

func (j *join[T]) bind() error {
	var err error
	if j.outer, err = newReader[T](j.ops[0]); err != nil {
		return err
	}
	j.inner, err = newReader[T](j.ops[1])
	return err
}

// head returns inner's next element.
func (j *join[T]) head() (T, bool, error) {
	xs, err := j.inner.peek()
	if err != nil || len(xs) == 0 {
		var zero T
		return zero, false, err
	}
	return xs[0], true, nil
}

func (j *join[T]) match(v T) (int64, error) {
	for {
		h, ok, err := j.head()
		if err != nil {
			return 0, err
		}
		if !ok || h > v || (h == v && j.mode != JoinBefore) {
			break
		}
		j.prev = j.ipos
		j.inner.skip(1)
		j.ipos++
	}
	if j.mode == JoinBefore {
		return j.prev, nil
	}
	h, ok, err := j.head()
	if err != nil {
		return 0, err
	}
	if !ok || (j.mode == JoinExact && h != v) {
		return -1, nil
	}
	return j.ipos, nil
}

func (j *join[T]) Next() (bool, error) {
	buf, err := j.buf(j.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		xs, err := j.outer.peek()
		if err != nil {
			return false, err
		}
		if len(xs) == 0 {
			break
		}
		i := 0
		for ; i < len(xs) && out < len(buf); i++ {
			p, err := j.match(xs[i])
			if err != nil {
				return false, err
			}
			buf[out] = p
			out++
		}
		j.outer.skip(i)
	}
	j.n = out
	return out > 0, nil
}

func (j *join[T]) Reset() {
	j.resetOps()
	j.outer.reset()
	j.inner.reset()
	j.ipos, j.prev, j.n = j.ops[1].First(), -1, 0
}

func (j *join[T]) Clone() Iterator {
	c := &join[T]{node: j.node, mode: j.mode}
	c.ops = j.cloneOps()
	if err := c.bind(); err != nil {
		panic(err)
	}
	c.Reset()
	return c
}
