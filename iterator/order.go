package iterator

import (
	"cmp"
	"slices"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/queue"
	"github.com/hupe1980/imcs/kind"
)

// Order is a sort direction.
type Order uint8

const (
	Ascending Order = iota
	Descending
)

// Sort yields the elements of x in the given order.
func Sort(x Iterator, order Order) (Iterator, error) {
	return ordering(x, order, 0, "sort")
}

// TopMax yields the k largest elements of x, largest first.
func TopMax(x Iterator, k int) (Iterator, error) {
	if k < 1 {
		return nil, errs.Invalid("top %d", k)
	}
	return ordering(x, Descending, k, "top max")
}

// TopMin yields the k smallest elements of x, smallest first.
func TopMin(x Iterator, k int) (Iterator, error) {
	if k < 1 {
		return nil, errs.Invalid("top %d", k)
	}
	return ordering(x, Ascending, k, "top min")
}

func ordering(x Iterator, order Order, k int, name string) (Iterator, error) {
	kd := x.Kind()
	if kd == kind.Varchar {
		return nil, errs.Unsupported(kd, name)
	}
	switch kd.Phys() {
	case kind.PhysInt8:
		return newReducer[int8](name, kd, 0, newOrderState[int8](order, k), x)
	case kind.PhysInt16:
		return newReducer[int16](name, kd, 0, newOrderState[int16](order, k), x)
	case kind.PhysInt32:
		return newReducer[int32](name, kd, 0, newOrderState[int32](order, k), x)
	case kind.PhysInt64:
		return newReducer[int64](name, kd, 0, newOrderState[int64](order, k), x)
	case kind.PhysFloat32:
		return newReducer[float32](name, kd, 0, newOrderState[float32](order, k), x)
	case kind.PhysFloat64:
		return newReducer[float64](name, kd, 0, newOrderState[float64](order, k), x)
	case kind.PhysString:
		return newReducer[string](name, kd, x.Width(), newOrderState[string](order, k), x)
	}
	return nil, errs.Unsupported(kd, name)
}

// orderState holds its values in output order. k > 0 bounds the state to
// the first k values of that order.
type orderState[T ordered] struct {
	order Order
	k     int
	vals  []T
}

func newOrderState[T ordered](order Order, k int) *orderState[T] {
	return &orderState[T]{order: order, k: k}
}

// before reports whether a precedes b in output order.
func (s *orderState[T]) before(a, b T) bool {
	if s.order == Descending {
		return cmp.Less(b, a)
	}
	return cmp.Less(a, b)
}

func (s *orderState[T]) consume(ops []Iterator) error {
	if s.k == 0 {
		err := each(ops[0], func(xs []T) error {
			s.vals = append(s.vals, xs...)
			return nil
		})
		if err != nil {
			return err
		}
		slices.SortFunc(s.vals, s.compare)
		return nil
	}
	// The heap top is the worst retained value.
	h := queue.New(func(a, b T) bool { return s.before(b, a) }, s.k)
	err := each(ops[0], func(xs []T) error {
		for _, v := range xs {
			h.PushBounded(v, s.k)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.vals = h.Drain()
	slices.Reverse(s.vals)
	return nil
}

func (s *orderState[T]) compare(a, b T) int {
	if s.order == Descending {
		return cmp.Compare(b, a)
	}
	return cmp.Compare(a, b)
}

// merge is a two-way ordered merge of both value runs.
func (s *orderState[T]) merge(src reduction[T]) error {
	o, err := sameState[*orderState[T]](src)
	if err != nil {
		return err
	}
	n := len(s.vals) + len(o.vals)
	if s.k > 0 {
		n = min(n, s.k)
	}
	out := make([]T, 0, n)
	i, j := 0, 0
	for len(out) < n {
		switch {
		case j >= len(o.vals) || (i < len(s.vals) && !s.before(o.vals[j], s.vals[i])):
			out = append(out, s.vals[i])
			i++
		default:
			out = append(out, o.vals[j])
			j++
		}
	}
	s.vals = out
	return nil
}

func (s *orderState[T]) values() []T         { return s.vals }
func (s *orderState[T]) empty() reduction[T] { return newOrderState[T](s.order, s.k) }
