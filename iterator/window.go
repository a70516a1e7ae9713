package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// A sliding window of interval elements yields one value per full window:
// n-interval+1 values for n inputs.

// WindowSum yields the sum of each window in SumKind(x.Kind()).
func WindowSum(x Iterator, interval int) (Iterator, error) {
	return newWindowOp(x, interval, "window sum")
}

// WindowAvg yields the mean of each window as a double.
func WindowAvg(x Iterator, interval int) (Iterator, error) {
	return newWindowOp(x, interval, "window avg")
}

// WindowMin yields the smallest element of each window.
func WindowMin(x Iterator, interval int) (Iterator, error) {
	return newWindowOp(x, interval, "window min")
}

// WindowMax yields the largest element of each window.
func WindowMax(x Iterator, interval int) (Iterator, error) {
	return newWindowOp(x, interval, "window max")
}

// Diff yields x[i+1] - x[i].
func Diff(x Iterator) (Iterator, error) {
	return newWindowOp(x, 2, "diff")
}

// CumSum yields the running total of x in SumKind(x.Kind()).
func CumSum(x Iterator) (Iterator, error) {
	return newWindowOp(x, 0, "cumsum")
}

func newWindowOp(x Iterator, interval int, name string) (Iterator, error) {
	if interval < 0 || (interval == 0 && name != "cumsum") {
		return nil, errs.Invalid("%s interval %d", name, interval)
	}
	k := x.Kind()
	if !k.IsNumeric() {
		return nil, errs.Unsupported(k, name)
	}
	switch k.Phys() {
	case kind.PhysInt8:
		return windowFor[int8](x, interval, name)
	case kind.PhysInt16:
		return windowFor[int16](x, interval, name)
	case kind.PhysInt32:
		return windowFor[int32](x, interval, name)
	case kind.PhysInt64:
		return windowFor[int64](x, interval, name)
	case kind.PhysFloat32:
		return windowFor[float32](x, interval, name)
	case kind.PhysFloat64:
		return windowFor[float64](x, interval, name)
	}
	return nil, errs.Unsupported(k, name)
}

func windowFor[T numeric](x Iterator, interval int, name string) (Iterator, error) {
	k := x.Kind()
	switch name {
	case "window sum", "cumsum":
		sk, err := kind.SumKind(k)
		if err != nil {
			return nil, err
		}
		if sk.Phys() == kind.PhysFloat64 {
			return newWindow[T, float64](x, sk, interval, &sumSlider[T, float64]{})
		}
		return newWindow[T, int64](x, sk, interval, &sumSlider[T, int64]{})
	case "window avg":
		conv := kind.Converter[T, float64](k, kind.Double)
		return newWindow[T, float64](x, kind.Double, interval, &avgSlider[T]{conv: conv, interval: interval})
	case "window min":
		return newWindow[T, T](x, k, interval, &extremeSlider[T]{})
	case "window max":
		return newWindow[T, T](x, k, interval, &extremeSlider[T]{greatest: true})
	}
	return newWindow[T, T](x, k, interval, &diffSlider[T]{})
}

// slider is the incremental state of a window aggregate.
type slider[T numeric, R kind.Elem] interface {
	add(i int64, v T)
	drop(i int64, v T)
	result() R
	reset()
	fresh() slider[T, R]
}

// window emits one result per full window. interval 0 is cumulative: no
// element ever leaves and every input produces an output.
type window[T numeric, R kind.Elem] struct {
	node
	tile[R]
	x        *reader[T]
	agg      slider[T, R]
	interval int
	ring     []T
	seen     int64
	xbase    int64
	xlast    int64
	full     int64
}

func newWindow[T numeric, R kind.Elem](x Iterator, k kind.Kind, interval int, agg slider[T, R]) (Iterator, error) {
	if err := checkPhys[R](k); err != nil {
		return nil, err
	}
	full := Unbounded
	if e := Extent(x); e != Unbounded {
		full = e - int64(max(interval, 1))
	}
	var flags Flags
	if _, ok := x.(Seeker); ok && interval > 0 && x.Flags().Has(RandomAccess) {
		flags = RandomAccess
	}
	w := &window[T, R]{
		node:     newNode(k, 0, flags, full, scopeOf(x), x),
		agg:      agg,
		interval: interval,
		ring:     make([]T, interval),
		xbase:    x.First(),
		xlast:    x.Last(),
		full:     full,
	}
	if err := w.bind(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *window[T, R]) bind() error {
	var err error
	w.x, err = newReader[T](w.ops[0])
	return err
}

func (w *window[T, R]) Next() (bool, error) {
	buf, err := w.buf(w.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		xs, err := w.x.peek()
		if err != nil {
			return false, err
		}
		if len(xs) == 0 {
			break
		}
		i := 0
		for ; i < len(xs) && out < len(buf); i++ {
			v := xs[i]
			if w.interval > 0 {
				slot := w.seen % int64(w.interval)
				if w.seen >= int64(w.interval) {
					w.agg.drop(w.seen-int64(w.interval), w.ring[slot])
				}
				w.ring[slot] = v
			}
			w.agg.add(w.seen, v)
			w.seen++
			if w.seen >= int64(w.interval) {
				buf[out] = w.agg.result()
				out++
			}
		}
		w.x.skip(i)
	}
	w.n = out
	return out > 0, nil
}

func (w *window[T, R]) Reset() {
	w.resetOps()
	w.x.reset()
	w.agg.reset()
	w.seen, w.n = 0, 0
}

func (w *window[T, R]) Seek(from, till int64) error {
	if !w.flags.Has(RandomAccess) {
		return errs.Unsupported(w.kind, "seek")
	}
	if err := w.window(from, till, w.full); err != nil {
		return err
	}
	lo, hi := w.xbase, w.xbase-1
	if w.last >= w.first {
		lo = w.xbase + w.first
		hi = w.xlast
		if w.last != Unbounded {
			hi = min(hi, w.xbase+w.last+int64(w.interval)-1)
		}
	}
	if err := w.ops[0].(Seeker).Seek(lo, hi); err != nil {
		return err
	}
	w.Reset()
	return nil
}

func (w *window[T, R]) Clone() Iterator {
	c := &window[T, R]{
		node:     w.node,
		agg:      w.agg.fresh(),
		interval: w.interval,
		ring:     make([]T, w.interval),
		xbase:    w.xbase,
		xlast:    w.xlast,
		full:     w.full,
	}
	c.ops = w.cloneOps()
	if err := c.bind(); err != nil {
		panic(err)
	}
	return c
}

type sumSlider[T numeric, R int64 | float64] struct {
	total R
}

func (s *sumSlider[T, R]) add(_ int64, v T)  { s.total += R(v) }
func (s *sumSlider[T, R]) drop(_ int64, v T) { s.total -= R(v) }
func (s *sumSlider[T, R]) result() R         { return s.total }
func (s *sumSlider[T, R]) reset()            { s.total = 0 }

func (s *sumSlider[T, R]) fresh() slider[T, R] { return &sumSlider[T, R]{} }

type avgSlider[T numeric] struct {
	conv     func(T) float64
	interval int
	total    float64
}

func (s *avgSlider[T]) add(_ int64, v T)  { s.total += s.conv(v) }
func (s *avgSlider[T]) drop(_ int64, v T) { s.total -= s.conv(v) }
func (s *avgSlider[T]) result() float64   { return s.total / float64(s.interval) }
func (s *avgSlider[T]) reset()            { s.total = 0 }

func (s *avgSlider[T]) fresh() slider[T, float64] {
	return &avgSlider[T]{conv: s.conv, interval: s.interval}
}

type indexed[T numeric] struct {
	i int64
	v T
}

// extremeSlider keeps a monotonic deque: candidates in arrival order whose
// values never improve on an earlier candidate.
type extremeSlider[T numeric] struct {
	greatest bool
	dq       []indexed[T]
}

func (s *extremeSlider[T]) add(i int64, v T) {
	for len(s.dq) > 0 {
		back := s.dq[len(s.dq)-1].v
		if (s.greatest && back > v) || (!s.greatest && back < v) {
			break
		}
		s.dq = s.dq[:len(s.dq)-1]
	}
	s.dq = append(s.dq, indexed[T]{i, v})
}

func (s *extremeSlider[T]) drop(i int64, _ T) {
	if len(s.dq) > 0 && s.dq[0].i == i {
		s.dq = s.dq[1:]
	}
}

func (s *extremeSlider[T]) result() T { return s.dq[0].v }
func (s *extremeSlider[T]) reset()    { s.dq = s.dq[:0] }

func (s *extremeSlider[T]) fresh() slider[T, T] { return &extremeSlider[T]{greatest: s.greatest} }

type diffSlider[T numeric] struct {
	prev, cur T
}

func (s *diffSlider[T]) add(_ int64, v T) { s.prev, s.cur = s.cur, v }
func (s *diffSlider[T]) drop(int64, T)    {}
func (s *diffSlider[T]) result() T        { return s.cur - s.prev }
func (s *diffSlider[T]) reset()           { s.prev, s.cur = 0, 0 }

func (s *diffSlider[T]) fresh() slider[T, T] { return &diffSlider[T]{} }
