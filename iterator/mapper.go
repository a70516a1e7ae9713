package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

type numeric interface {
	int8 | int16 | int32 | int64 | float32 | float64
}

type ordered interface {
	numeric | string
}

// mapper is an element-wise node over operands of one physical type.
type mapper[S, D kind.Elem] struct {
	node
	tile[D]
	in   []*reader[S]
	args [][]S
	fn   func(dst []D, args [][]S) error
}

func newMapper[S, D kind.Elem](k kind.Kind, width int, fn func([]D, [][]S) error, ops ...Iterator) (*mapper[S, D], error) {
	if err := checkPhys[D](k); err != nil {
		return nil, err
	}
	m := &mapper[S, D]{
		node: newNode(k, width, elementWise(ops...), 0, scopeOf(ops[0]), ops...),
		fn:   fn,
	}
	m.first, m.last = span(ops...)
	if err := m.bind(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *mapper[S, D]) bind() error {
	m.in = make([]*reader[S], len(m.ops))
	m.args = make([][]S, len(m.ops))
	for i, op := range m.ops {
		r, err := newReader[S](op)
		if err != nil {
			return err
		}
		m.in[i] = r
	}
	return nil
}

func (m *mapper[S, D]) Next() (bool, error) {
	buf, err := m.buf(m.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		n := len(buf) - out
		for i, r := range m.in {
			x, err := r.peek()
			if err != nil {
				m.n = 0
				return false, err
			}
			n = min(n, len(x))
			m.args[i] = x
		}
		if n == 0 {
			break
		}
		for i := range m.args {
			m.args[i] = m.args[i][:n]
		}
		if err := m.fn(buf[out:out+n], m.args); err != nil {
			m.n = 0
			return false, err
		}
		for _, r := range m.in {
			r.skip(n)
		}
		out += n
	}
	m.n = out
	return out > 0, nil
}

func (m *mapper[S, D]) Reset() {
	m.resetOps()
	for _, r := range m.in {
		r.reset()
	}
	m.n = 0
}

func (m *mapper[S, D]) Seek(from, till int64) error {
	if err := m.seekOps(from, till); err != nil {
		return err
	}
	m.Reset()
	return nil
}

func (m *mapper[S, D]) Clone() Iterator {
	c := &mapper[S, D]{node: m.node, fn: m.fn}
	c.ops = m.cloneOps()
	if err := c.bind(); err != nil {
		panic(err) // operand types were checked at construction
	}
	return c
}

// unify casts the lower-ranked operand so that both share a kind.
func unify(a, b Iterator) (Iterator, Iterator, error) {
	if a.Kind() == b.Kind() {
		return a, b, nil
	}
	k, ok := kind.Higher(a.Kind(), b.Kind())
	if !ok {
		return nil, nil, errs.Mismatch("no implicit cast between %s and %s", a.Kind(), b.Kind())
	}
	a, err := Cast(a, k)
	if err != nil {
		return nil, nil, err
	}
	b, err = Cast(b, k)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// Cast converts x to kind to. Casting to the same kind returns x.
func Cast(x Iterator, to kind.Kind) (Iterator, error) {
	from := x.Kind()
	if from == to {
		return x, nil
	}
	if from.Rank() < 0 || to.Rank() < 0 {
		return nil, errs.Mismatch("cannot cast %s to %s", from, to)
	}
	switch from.Phys() {
	case kind.PhysInt8:
		return castFrom[int8](x, to)
	case kind.PhysInt16:
		return castFrom[int16](x, to)
	case kind.PhysInt32:
		return castFrom[int32](x, to)
	case kind.PhysInt64:
		return castFrom[int64](x, to)
	case kind.PhysFloat32:
		return castFrom[float32](x, to)
	case kind.PhysFloat64:
		return castFrom[float64](x, to)
	}
	return nil, errs.Unsupported(from, "cast")
}

func castFrom[S numeric](x Iterator, to kind.Kind) (Iterator, error) {
	switch to.Phys() {
	case kind.PhysInt8:
		return newCast[S, int8](x, to)
	case kind.PhysInt16:
		return newCast[S, int16](x, to)
	case kind.PhysInt32:
		return newCast[S, int32](x, to)
	case kind.PhysInt64:
		return newCast[S, int64](x, to)
	case kind.PhysFloat32:
		return newCast[S, float32](x, to)
	case kind.PhysFloat64:
		return newCast[S, float64](x, to)
	}
	return nil, errs.Unsupported(to, "cast")
}

func newCast[S, D numeric](x Iterator, to kind.Kind) (Iterator, error) {
	conv := kind.Converter[S, D](x.Kind(), to)
	return newMapper(to, 0, func(dst []D, args [][]S) error {
		for i, v := range args[0] {
			dst[i] = conv(v)
		}
		return nil
	}, x)
}
