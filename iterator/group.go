package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Group-by aggregates fold runs of equal consecutive values of by and emit
// one value per run, in run order. Sort by first to group globally.

// GroupSum sums x per run of by.
func GroupSum(x, by Iterator) (Iterator, error) { return groupBy(groupSum, x, by) }

// GroupMin yields the smallest x per run of by.
func GroupMin(x, by Iterator) (Iterator, error) { return groupBy(groupMin, x, by) }

// GroupMax yields the largest x per run of by.
func GroupMax(x, by Iterator) (Iterator, error) { return groupBy(groupMax, x, by) }

// GroupAvg averages x per run of by.
func GroupAvg(x, by Iterator) (Iterator, error) { return groupBy(groupAvg, x, by) }

// GroupCount yields the length of each run of by.
func GroupCount(by Iterator) (Iterator, error) {
	ids, err := runs(by)
	if err != nil {
		return nil, err
	}
	return newGroup[int64, int64](kind.Int64, &countAcc[int64]{}, ids)
}

func groupBy(op groupOp, x, by Iterator) (Iterator, error) {
	ids, err := runs(by)
	if err != nil {
		return nil, err
	}
	name := "group " + groupNames[op]
	k := x.Kind()
	if !k.IsNumeric() {
		return nil, errs.Unsupported(k, name)
	}
	switch k.Phys() {
	case kind.PhysInt8:
		return groupFor[int8](op, x, ids)
	case kind.PhysInt16:
		return groupFor[int16](op, x, ids)
	case kind.PhysInt32:
		return groupFor[int32](op, x, ids)
	case kind.PhysInt64:
		return groupFor[int64](op, x, ids)
	case kind.PhysFloat32:
		return groupFor[float32](op, x, ids)
	case kind.PhysFloat64:
		return groupFor[float64](op, x, ids)
	}
	return nil, errs.Unsupported(k, name)
}

func groupFor[T numeric](op groupOp, x, ids Iterator) (Iterator, error) {
	k := x.Kind()
	switch op {
	case groupSum:
		sk, err := kind.SumKind(k)
		if err != nil {
			return nil, err
		}
		if sk.Phys() == kind.PhysFloat64 {
			return newGroup[T, float64](sk, &sumAcc[T, float64]{}, ids, x)
		}
		return newGroup[T, int64](sk, &sumAcc[T, int64]{}, ids, x)
	case groupMin, groupMax:
		return newGroup[T, T](k, &extremeAcc[T]{greatest: op == groupMax}, ids, x)
	case groupAvg:
		return newGroup[T, float64](kind.Double, &avgAcc[T]{conv: kind.Converter[T, float64](k, kind.Double)}, ids, x)
	}
	return newGroup[T, int64](kind.Int64, &countAcc[T]{}, ids, x)
}

// runs numbers the runs of equal consecutive values of by.
func runs(by Iterator) (Iterator, error) {
	switch by.Kind().Phys() {
	case kind.PhysInt8:
		return newRunIDs[int8](by)
	case kind.PhysInt16:
		return newRunIDs[int16](by)
	case kind.PhysInt32:
		return newRunIDs[int32](by)
	case kind.PhysInt64:
		return newRunIDs[int64](by)
	case kind.PhysFloat32:
		return newRunIDs[float32](by)
	case kind.PhysFloat64:
		return newRunIDs[float64](by)
	case kind.PhysString:
		return newRunIDs[string](by)
	}
	return nil, errs.Unsupported(by.Kind(), "group by")
}

type runIDs[K ordered] struct {
	node
	tile[int64]
	by   *reader[K]
	prev K
	id   int64
	has  bool
}

func newRunIDs[K ordered](by Iterator) (Iterator, error) {
	r := &runIDs[K]{node: newNode(kind.Int64, 0, 0, by.Last(), scopeOf(by), by)}
	if Extent(by) != Unbounded {
		r.last = Extent(by) - 1
	}
	if err := r.bind(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *runIDs[K]) bind() error {
	var err error
	r.by, err = newReader[K](r.ops[0])
	return err
}

func (r *runIDs[K]) Next() (bool, error) {
	buf, err := r.buf(r.scope)
	if err != nil {
		return false, err
	}
	xs, err := r.by.peek()
	if err != nil {
		return false, err
	}
	n := min(len(xs), len(buf))
	for i, v := range xs[:n] {
		if r.has && v != r.prev {
			r.id++
		}
		r.prev, r.has = v, true
		buf[i] = r.id
	}
	r.by.skip(n)
	r.n = n
	return n > 0, nil
}

func (r *runIDs[K]) Reset() {
	r.resetOps()
	r.by.reset()
	var zero K
	r.prev, r.id, r.has, r.n = zero, 0, false, 0
}

func (r *runIDs[K]) Clone() Iterator {
	c := &runIDs[K]{node: r.node}
	c.ops = r.cloneOps()
	if err := c.bind(); err != nil {
		panic(err)
	}
	return c
}

// group folds values per run id. With a single operand the run ids
// themselves are the values.
type group[T, R kind.Elem] struct {
	node
	tile[R]
	ids  *reader[int64]
	vals *reader[T]
	acc  acc[T, R]
	cur  int64
	has  bool
}

func newGroup[T, R kind.Elem](k kind.Kind, a acc[T, R], ops ...Iterator) (Iterator, error) {
	if err := checkPhys[R](k); err != nil {
		return nil, err
	}
	g := &group[T, R]{node: newNode(k, 0, 0, Unbounded, scopeOf(ops[0]), ops...), acc: a}
	if err := g.bind(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *group[T, R]) bind() error {
	var err error
	if g.ids, err = newReader[int64](g.ops[0]); err != nil {
		return err
	}
	if len(g.ops) > 1 {
		g.vals, err = newReader[T](g.ops[1])
	}
	return err
}

func (g *group[T, R]) Next() (bool, error) {
	buf, err := g.buf(g.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		ids, err := g.ids.peek()
		if err != nil {
			return false, err
		}
		var vals []T
		if g.vals != nil {
			if vals, err = g.vals.peek(); err != nil {
				return false, err
			}
		} else {
			vals = any(ids).([]T)
		}
		n := min(len(ids), len(vals))
		if n == 0 {
			if g.has {
				buf[out] = g.acc.result()
				out++
				g.has = false
			}
			break
		}
		i := 0
		for ; i < n && out < len(buf); i++ {
			if g.has && ids[i] != g.cur {
				buf[out] = g.acc.result()
				out++
				g.acc, g.has = g.acc.fresh(), false
				if out == len(buf) {
					break
				}
			}
			g.acc.add(vals[i])
			g.cur, g.has = ids[i], true
		}
		g.ids.skip(i)
		if g.vals != nil {
			g.vals.skip(i)
		}
	}
	g.n = out
	return out > 0, nil
}

func (g *group[T, R]) Reset() {
	g.resetOps()
	g.ids.reset()
	if g.vals != nil {
		g.vals.reset()
	}
	g.acc = g.acc.fresh()
	g.cur, g.has, g.n = 0, false, 0
}

func (g *group[T, R]) Clone() Iterator {
	c := &group[T, R]{node: g.node, acc: g.acc.fresh()}
	c.ops = g.cloneOps()
	if err := c.bind(); err != nil {
		panic(err)
	}
	return c
}
