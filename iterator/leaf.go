package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Source is a positional element supplier backing a leaf node. Positions
// are 0-based; Len may be Unbounded.
type Source[T kind.Elem] interface {
	Len() int64
	// Fill copies elements starting at pos into dst and returns how many
	// were copied; 0 means pos is past the end.
	Fill(pos int64, dst []T) (int, error)
	// Clone returns an independent cursor over the same elements.
	Clone() Source[T]
}

type leaf[T kind.Elem] struct {
	node
	tile[T]
	src  Source[T]
	full int64
	pos  int64
}

// FromSource returns a random-access leaf scanning src.
func FromSource[T kind.Elem](s *Scope, k kind.Kind, width int, src Source[T]) (Iterator, error) {
	if err := checkPhys[T](k); err != nil {
		return nil, err
	}
	full := Unbounded
	if n := src.Len(); n != Unbounded {
		full = n - 1
	}
	return &leaf[T]{
		node: newNode(k, width, RandomAccess|ContextFree, full, s),
		src:  src,
		full: full,
	}, nil
}

// FromSlice returns a leaf over values. Char leaves take the longest value
// as their width.
func FromSlice[T kind.Elem](s *Scope, k kind.Kind, values []T) (Iterator, error) {
	width := 0
	if k == kind.Char {
		width = 1
		for _, v := range any(values).([]string) {
			width = max(width, len(v))
		}
	}
	return FromSource[T](s, k, width, SliceSource[T](values))
}

// Const returns an unbounded leaf repeating v.
func Const[T kind.Elem](s *Scope, k kind.Kind, v T) (Iterator, error) {
	width := 0
	if str, ok := any(v).(string); ok {
		width = max(len(str), 1)
	}
	return FromSource[T](s, k, width, constSource[T]{v: v})
}

func (l *leaf[T]) Next() (bool, error) {
	if l.pos > l.last {
		l.n = 0
		return false, nil
	}
	buf, err := l.buf(l.scope)
	if err != nil {
		return false, err
	}
	want := int64(len(buf))
	if l.last != Unbounded {
		want = min(want, l.last-l.pos+1)
	}
	got, err := l.src.Fill(l.pos, buf[:want])
	if err != nil {
		l.n = 0
		return false, err
	}
	l.n = got
	l.pos += int64(got)
	if got == 0 {
		l.pos = l.last + 1
		return false, nil
	}
	return true, nil
}

func (l *leaf[T]) Reset() {
	l.pos, l.n = l.first, 0
}

func (l *leaf[T]) Seek(from, till int64) error {
	if err := l.window(from, till, l.full); err != nil {
		return err
	}
	l.Reset()
	return nil
}

func (l *leaf[T]) Clone() Iterator {
	c := &leaf[T]{node: l.node, src: l.src.Clone(), full: l.full}
	c.Reset()
	return c
}

// SliceSource serves the elements of a slice.
type SliceSource[T kind.Elem] []T

func (s SliceSource[T]) Len() int64 { return int64(len(s)) }

func (s SliceSource[T]) Fill(pos int64, dst []T) (int, error) {
	if pos >= int64(len(s)) {
		return 0, nil
	}
	return copy(dst, s[pos:]), nil
}

func (s SliceSource[T]) Clone() Source[T] { return s }

type constSource[T kind.Elem] struct{ v T }

func (c constSource[T]) Len() int64 { return Unbounded }

func (c constSource[T]) Fill(_ int64, dst []T) (int, error) {
	for i := range dst {
		dst[i] = c.v
	}
	return len(dst), nil
}

func (c constSource[T]) Clone() Source[T] { return c }

// Drain pulls every remaining element of it.
func Drain[T kind.Elem](it Iterator) ([]T, error) {
	t, err := tiler[T](it)
	if err != nil {
		return nil, err
	}
	var out []T
	for {
		ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t.Tile()...)
	}
}

// DrainAll pulls every remaining element of it as its physical Go type.
func DrainAll(it Iterator) ([]any, error) {
	switch it.Kind().Phys() {
	case kind.PhysInt8:
		return drainAny[int8](it)
	case kind.PhysInt16:
		return drainAny[int16](it)
	case kind.PhysInt32:
		return drainAny[int32](it)
	case kind.PhysInt64:
		return drainAny[int64](it)
	case kind.PhysFloat32:
		return drainAny[float32](it)
	case kind.PhysFloat64:
		return drainAny[float64](it)
	case kind.PhysString:
		return drainAny[string](it)
	}
	return nil, errs.Unsupported(it.Kind(), "drain")
}

func drainAny[T kind.Elem](it Iterator) ([]any, error) {
	vals, err := Drain[T](it)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out, nil
}

// Size rewinds it and counts its elements, in O(1) for bounded
// random-access nodes.
func Size(it Iterator) (int64, error) {
	it.Reset()
	if it.Flags().Has(RandomAccess) && it.Last() != Unbounded {
		return Extent(it), nil
	}
	var n int64
	for {
		ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n += int64(it.Len())
	}
}
