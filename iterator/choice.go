package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// If selects then[i] where cond[i] is non-zero and otherwise[i] elsewhere.
// The node is context free only when all three operands are random access.
func If(cond, then, otherwise Iterator) (Iterator, error) {
	if err := checkBool(cond, "if"); err != nil {
		return nil, err
	}
	then, otherwise, err := unify(then, otherwise)
	if err != nil {
		return nil, err
	}
	switch then.Kind().Phys() {
	case kind.PhysInt8:
		return newChoice[int8](cond, then, otherwise)
	case kind.PhysInt16:
		return newChoice[int16](cond, then, otherwise)
	case kind.PhysInt32:
		return newChoice[int32](cond, then, otherwise)
	case kind.PhysInt64:
		return newChoice[int64](cond, then, otherwise)
	case kind.PhysFloat32:
		return newChoice[float32](cond, then, otherwise)
	case kind.PhysFloat64:
		return newChoice[float64](cond, then, otherwise)
	case kind.PhysString:
		return newChoice[string](cond, then, otherwise)
	}
	return nil, errs.Unsupported(then.Kind(), "if")
}

type choice[T kind.Elem] struct {
	node
	tile[T]
	cond *reader[int8]
	a, b *reader[T]
}

func newChoice[T kind.Elem](cond, then, otherwise Iterator) (Iterator, error) {
	c := &choice[T]{
		node: newNode(then.Kind(), max(then.Width(), otherwise.Width()), elementWise(cond, then, otherwise), 0, scopeOf(cond), cond, then, otherwise),
	}
	c.first, c.last = span(cond, then, otherwise)
	if err := c.bind(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *choice[T]) bind() error {
	var err error
	if c.cond, err = newReader[int8](c.ops[0]); err != nil {
		return err
	}
	if c.a, err = newReader[T](c.ops[1]); err != nil {
		return err
	}
	c.b, err = newReader[T](c.ops[2])
	return err
}

func (c *choice[T]) Next() (bool, error) {
	buf, err := c.buf(c.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		xc, err := c.cond.peek()
		if err != nil {
			return false, err
		}
		xa, err := c.a.peek()
		if err != nil {
			return false, err
		}
		xb, err := c.b.peek()
		if err != nil {
			return false, err
		}
		n := min(len(buf)-out, len(xc), len(xa), len(xb))
		if n == 0 {
			break
		}
		for i := range n {
			if xc[i] != 0 {
				buf[out+i] = xa[i]
			} else {
				buf[out+i] = xb[i]
			}
		}
		c.cond.skip(n)
		c.a.skip(n)
		c.b.skip(n)
		out += n
	}
	c.n = out
	return out > 0, nil
}

func (c *choice[T]) Reset() {
	c.resetOps()
	c.cond.reset()
	c.a.reset()
	c.b.reset()
	c.n = 0
}

func (c *choice[T]) Seek(from, till int64) error {
	if err := c.seekOps(from, till); err != nil {
		return err
	}
	c.Reset()
	return nil
}

func (c *choice[T]) Clone() Iterator {
	n := &choice[T]{node: c.node}
	n.ops = c.cloneOps()
	if err := n.bind(); err != nil {
		panic(err)
	}
	return n
}
