package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// reduction is the swappable state of a reducing node.
type reduction[R kind.Elem] interface {
	// consume drains the operands into the state.
	consume(ops []Iterator) error
	// merge folds a state of the same concrete type into the receiver.
	merge(src reduction[R]) error
	// values is the output once consumed or merged.
	values() []R
	// empty returns a fresh state with the same parameters.
	empty() reduction[R]
}

// reducer evaluates its whole input on the first Next (or Prepare) and then
// emits the result tile by tile.
type reducer[R kind.Elem] struct {
	node
	tile[R]
	name     string
	st       reduction[R]
	prepared bool
	out      []R
	pos      int
}

func newReducer[R kind.Elem](name string, k kind.Kind, width int, st reduction[R], ops ...Iterator) (*reducer[R], error) {
	if err := checkPhys[R](k); err != nil {
		return nil, err
	}
	return &reducer[R]{
		node: newNode(k, width, 0, Unbounded, scopeOf(ops[0]), ops...),
		name: name,
		st:   st,
	}, nil
}

func (r *reducer[R]) Prepare() error {
	if r.prepared {
		return nil
	}
	st := r.st.empty()
	if err := st.consume(r.ops); err != nil {
		return err
	}
	r.st, r.out, r.pos, r.prepared = st, st.values(), 0, true
	return nil
}

func (r *reducer[R]) Next() (bool, error) {
	if err := r.Prepare(); err != nil {
		r.n = 0
		return false, err
	}
	if r.pos >= len(r.out) {
		r.n = 0
		return false, nil
	}
	buf, err := r.buf(r.scope)
	if err != nil {
		return false, err
	}
	r.n = copy(buf, r.out[r.pos:])
	r.pos += r.n
	return true, nil
}

func (r *reducer[R]) Reset() {
	r.resetOps()
	r.prepared, r.out, r.pos, r.n = false, nil, 0, 0
}

func (r *reducer[R]) peer(src Iterator) (*reducer[R], error) {
	s, ok := src.(*reducer[R])
	if !ok || s.name != r.name {
		return nil, errs.Mismatch("cannot combine %s with %T", r.name, src)
	}
	return s, s.Prepare()
}

func (r *reducer[R]) Merge(src Iterator) error {
	s, err := r.peer(src)
	if err != nil {
		return err
	}
	if err := r.Prepare(); err != nil {
		return err
	}
	if err := r.st.merge(s.st); err != nil {
		return err
	}
	r.out, r.pos = r.st.values(), 0
	return nil
}

func (r *reducer[R]) Adopt(src Iterator) error {
	s, err := r.peer(src)
	if err != nil {
		return err
	}
	r.st, r.out, r.pos, r.prepared = s.st, s.out, 0, true
	return nil
}

func (r *reducer[R]) Clone() Iterator {
	c := &reducer[R]{node: r.node, name: r.name, st: r.st.empty()}
	c.ops = r.cloneOps()
	return c
}

func sameState[S any, R kind.Elem](src reduction[R]) (S, error) {
	s, ok := src.(S)
	if !ok {
		var zero S
		return zero, errs.Mismatch("cannot merge %T into %T", src, zero)
	}
	return s, nil
}
