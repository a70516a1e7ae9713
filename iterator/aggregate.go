package iterator

import (
	"math"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Scalar aggregates emit a single element. Min, Max, Avg, Var and Dev emit
// nothing over an empty input; Sum and Count emit 0.

// Sum totals x in SumKind(x.Kind()).
func Sum(x Iterator) (Iterator, error) {
	k, err := kind.SumKind(x.Kind())
	if err != nil {
		return nil, err
	}
	switch x.Kind().Phys() {
	case kind.PhysInt8:
		return newSum[int8](x, k)
	case kind.PhysInt16:
		return newSum[int16](x, k)
	case kind.PhysInt32:
		return newSum[int32](x, k)
	case kind.PhysInt64:
		return newSum[int64](x, k)
	case kind.PhysFloat32:
		return newSum[float32](x, k)
	case kind.PhysFloat64:
		return newSum[float64](x, k)
	}
	return nil, errs.Unsupported(x.Kind(), "sum")
}

func newSum[T numeric](x Iterator, k kind.Kind) (Iterator, error) {
	if k.Phys() == kind.PhysFloat64 {
		return newReducer[float64]("sum", k, 0, &sumState[T, float64]{}, x)
	}
	return newReducer[int64]("sum", k, 0, &sumState[T, int64]{}, x)
}

type sumState[T numeric, R int64 | float64] struct {
	total R
}

func (s *sumState[T, R]) consume(ops []Iterator) error {
	return each(ops[0], func(xs []T) error {
		for _, v := range xs {
			s.total += R(v)
		}
		return nil
	})
}

func (s *sumState[T, R]) merge(src reduction[R]) error {
	o, err := sameState[*sumState[T, R]](src)
	if err != nil {
		return err
	}
	s.total += o.total
	return nil
}

func (s *sumState[T, R]) values() []R         { return []R{s.total} }
func (s *sumState[T, R]) empty() reduction[R] { return &sumState[T, R]{} }

// Min returns the smallest element of x.
func Min(x Iterator) (Iterator, error) { return extremum(x, false) }

// Max returns the largest element of x.
func Max(x Iterator) (Iterator, error) { return extremum(x, true) }

func extremum(x Iterator, greatest bool) (Iterator, error) {
	name := "min"
	if greatest {
		name = "max"
	}
	k := x.Kind()
	if k == kind.Varchar {
		return nil, errs.Unsupported(k, name)
	}
	switch k.Phys() {
	case kind.PhysInt8:
		return newReducer[int8](name, k, 0, &extremeState[int8]{greatest: greatest}, x)
	case kind.PhysInt16:
		return newReducer[int16](name, k, 0, &extremeState[int16]{greatest: greatest}, x)
	case kind.PhysInt32:
		return newReducer[int32](name, k, 0, &extremeState[int32]{greatest: greatest}, x)
	case kind.PhysInt64:
		return newReducer[int64](name, k, 0, &extremeState[int64]{greatest: greatest}, x)
	case kind.PhysFloat32:
		return newReducer[float32](name, k, 0, &extremeState[float32]{greatest: greatest}, x)
	case kind.PhysFloat64:
		return newReducer[float64](name, k, 0, &extremeState[float64]{greatest: greatest}, x)
	case kind.PhysString:
		return newReducer[string](name, k, x.Width(), &extremeState[string]{greatest: greatest}, x)
	}
	return nil, errs.Unsupported(k, name)
}

type extremeState[T ordered] struct {
	greatest bool
	has      bool
	v        T
}

func (s *extremeState[T]) add(v T) {
	if !s.has || (s.greatest && v > s.v) || (!s.greatest && v < s.v) {
		s.v, s.has = v, true
	}
}

func (s *extremeState[T]) consume(ops []Iterator) error {
	return each(ops[0], func(xs []T) error {
		for _, v := range xs {
			s.add(v)
		}
		return nil
	})
}

func (s *extremeState[T]) merge(src reduction[T]) error {
	o, err := sameState[*extremeState[T]](src)
	if err != nil {
		return err
	}
	if o.has {
		s.add(o.v)
	}
	return nil
}

func (s *extremeState[T]) values() []T {
	if !s.has {
		return nil
	}
	return []T{s.v}
}

func (s *extremeState[T]) empty() reduction[T] { return &extremeState[T]{greatest: s.greatest} }

// Count returns the number of elements of x as int64.
func Count(x Iterator) (Iterator, error) {
	return newReducer[int64]("count", kind.Int64, 0, &countState{}, x)
}

type countState struct {
	n int64
}

func (s *countState) consume(ops []Iterator) error {
	x := ops[0]
	for {
		ok, err := x.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		s.n += int64(x.Len())
	}
}

func (s *countState) merge(src reduction[int64]) error {
	o, err := sameState[*countState](src)
	if err != nil {
		return err
	}
	s.n += o.n
	return nil
}

func (s *countState) values() []int64         { return []int64{s.n} }
func (s *countState) empty() reduction[int64] { return &countState{} }

// Avg returns the arithmetic mean of x as a double.
func Avg(x Iterator) (Iterator, error) { return moments(x, "avg") }

// Var returns the population variance of x.
func Var(x Iterator) (Iterator, error) { return moments(x, "var") }

// Dev returns the population standard deviation of x.
func Dev(x Iterator) (Iterator, error) { return moments(x, "dev") }

func moments(x Iterator, name string) (Iterator, error) {
	k := x.Kind()
	if !k.IsNumeric() {
		return nil, errs.Unsupported(k, name)
	}
	var st reduction[float64]
	switch k.Phys() {
	case kind.PhysInt8:
		st = &momentState[int8]{name: name, conv: kind.Converter[int8, float64](k, kind.Double)}
	case kind.PhysInt16:
		st = &momentState[int16]{name: name, conv: kind.Converter[int16, float64](k, kind.Double)}
	case kind.PhysInt32:
		st = &momentState[int32]{name: name, conv: kind.Converter[int32, float64](k, kind.Double)}
	case kind.PhysInt64:
		st = &momentState[int64]{name: name, conv: kind.Converter[int64, float64](k, kind.Double)}
	case kind.PhysFloat32:
		st = &momentState[float32]{name: name, conv: kind.Converter[float32, float64](k, kind.Double)}
	case kind.PhysFloat64:
		st = &momentState[float64]{name: name, conv: kind.Converter[float64, float64](k, kind.Double)}
	default:
		return nil, errs.Unsupported(k, name)
	}
	return newReducer[float64](name, kind.Double, 0, st, x)
}

// momentState keeps a running mean and sum of squared deviations (Welford),
// merged pairwise with Chan's update.
type momentState[T numeric] struct {
	name string
	conv func(T) float64
	n    int64
	mean float64
	m2   float64
}

func (s *momentState[T]) consume(ops []Iterator) error {
	return each(ops[0], func(xs []T) error {
		for _, v := range xs {
			f := s.conv(v)
			s.n++
			d := f - s.mean
			s.mean += d / float64(s.n)
			s.m2 += d * (f - s.mean)
		}
		return nil
	})
}

func (s *momentState[T]) merge(src reduction[float64]) error {
	o, err := sameState[*momentState[T]](src)
	if err != nil {
		return err
	}
	if o.n == 0 {
		return nil
	}
	if s.n == 0 {
		s.n, s.mean, s.m2 = o.n, o.mean, o.m2
		return nil
	}
	n := s.n + o.n
	d := o.mean - s.mean
	s.mean += d * float64(o.n) / float64(n)
	s.m2 += o.m2 + d*d*float64(s.n)*float64(o.n)/float64(n)
	s.n = n
	return nil
}

func (s *momentState[T]) values() []float64 {
	if s.n == 0 {
		return nil
	}
	switch s.name {
	case "var":
		return []float64{s.m2 / float64(s.n)}
	case "dev":
		return []float64{math.Sqrt(s.m2 / float64(s.n))}
	}
	return []float64{s.mean}
}

func (s *momentState[T]) empty() reduction[float64] {
	return &momentState[T]{name: s.name, conv: s.conv}
}

// Any reports whether some element of the int1 boolean x is non-zero.
func Any(x Iterator) (Iterator, error) { return quantifier(x, "any") }

// All reports whether every element of the int1 boolean x is non-zero.
func All(x Iterator) (Iterator, error) { return quantifier(x, "all") }

func quantifier(x Iterator, name string) (Iterator, error) {
	if err := checkBool(x, name); err != nil {
		return nil, err
	}
	return newReducer[int8](name, kind.Int8, 0, &quantState{all: name == "all", seen: name == "all"}, x)
}

// quantState folds with OR (any) or AND (all); seen starts at the identity.
type quantState struct {
	all  bool
	seen bool
}

func (s *quantState) consume(ops []Iterator) error {
	return each(ops[0], func(xs []int8) error {
		for _, v := range xs {
			if s.all {
				s.seen = s.seen && v != 0
			} else {
				s.seen = s.seen || v != 0
			}
		}
		return nil
	})
}

func (s *quantState) merge(src reduction[int8]) error {
	o, err := sameState[*quantState](src)
	if err != nil {
		return err
	}
	if s.all {
		s.seen = s.seen && o.seen
	} else {
		s.seen = s.seen || o.seen
	}
	return nil
}

func (s *quantState) values() []int8         { return []int8{boolean(s.seen)} }
func (s *quantState) empty() reduction[int8] { return &quantState{all: s.all, seen: s.all} }
