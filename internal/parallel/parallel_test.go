package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

func ints(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32((i*7919)%1000 - 300)
	}
	return out
}

func leaf(t *testing.T, vals []int32) iterator.Iterator {
	t.Helper()
	it, err := iterator.FromSlice(nil, kind.Int32, vals)
	require.NoError(t, err)
	return it
}

func newPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p := NewPool(workers)
	t.Cleanup(p.Close)
	return p
}

func TestPool_Run(t *testing.T) {
	p := newPool(t, 3)
	var ran atomic.Int32
	jobs := make([]func() error, 10)
	for i := range jobs {
		jobs[i] = func() error {
			ran.Add(1)
			return nil
		}
	}
	require.NoError(t, p.Run(context.Background(), jobs))
	assert.Equal(t, int32(10), ran.Load())
}

func TestPool_FirstErrorByIndex(t *testing.T) {
	p := newPool(t, 4)
	errA, errB := errors.New("a"), errors.New("b")
	jobs := []func() error{
		func() error { return nil },
		func() error { return errA },
		func() error { return errB },
		func() error { panic("boom") },
	}
	for range 20 {
		assert.Same(t, errA, p.Run(context.Background(), jobs))
	}

	err := p.Run(context.Background(), jobs[3:])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPool_Close(t *testing.T) {
	p := NewPool(2)
	assert.Equal(t, 2, p.Workers())
	p.Close()
	p.Close()

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.Run(context.Background(), []func() error{func() error { return nil }}), errs.ErrStoreNotInitialized)
}

func TestAnalyze(t *testing.T) {
	x := leaf(t, ints(1000))
	sum, err := iterator.Sum(x)
	require.NoError(t, err)

	plan, err := Analyze(sum, 4)
	require.NoError(t, err)
	assert.Equal(t, Plan{Interval: 1000, Partitions: 4}, plan)

	plan, err = Analyze(sum, 1)
	require.NoError(t, err)
	assert.Zero(t, plan.Partitions)

	small, err := iterator.Sum(leaf(t, ints(3)))
	require.NoError(t, err)
	plan, err = Analyze(small, 4)
	require.NoError(t, err)
	assert.Equal(t, Plan{Interval: 3}, plan)

	// a filter that is the only operand of its reducer passes the interval through
	cond, err := iterator.Gt(x, constant(t, 0))
	require.NoError(t, err)
	filtered, err := iterator.Filter(cond, leaf(t, ints(500)))
	require.NoError(t, err)
	fsum, err := iterator.Sum(filtered)
	require.NoError(t, err)
	plan, err = Analyze(fsum, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(500), plan.Interval)

	// not a reducer
	plan, err = Analyze(x, 4)
	require.NoError(t, err)
	assert.Zero(t, plan.Partitions)
}

func constant(t *testing.T, v int32) iterator.Iterator {
	t.Helper()
	it, err := iterator.Const(nil, kind.Int32, v)
	require.NoError(t, err)
	return it
}

func TestSplit_RejectsContextDependentNodes(t *testing.T) {
	p := newPool(t, 8)

	inners := map[string]func(x iterator.Iterator) (iterator.Iterator, error){
		"cumsum": iterator.CumSum,
		"positions": func(x iterator.Iterator) (iterator.Iterator, error) {
			cond, err := iterator.Gt(x, constant(t, 0))
			if err != nil {
				return nil, err
			}
			return iterator.Positions(cond)
		},
	}

	for name, build := range inners {
		t.Run(name, func(t *testing.T) {
			inner, err := build(leaf(t, ints(1000)))
			require.NoError(t, err)
			root, err := iterator.Count(inner)
			require.NoError(t, err)

			_, err = Interval(root)
			assert.ErrorIs(t, err, errs.ErrFeatureNotSupported)

			got, plan, err := Split(context.Background(), p, root)
			require.NoError(t, err)
			assert.Same(t, root, got)
			assert.Zero(t, plan.Partitions)

			vals, err := iterator.Drain[int64](got)
			require.NoError(t, err)
			require.Len(t, vals, 1)
		})
	}
}

func TestSplit_Equivalence(t *testing.T) {
	data := ints(5000)
	by := make([]int32, len(data))
	for i := range by {
		by[i] = int32(i % 7)
	}

	roots := map[string]func(t *testing.T) iterator.Iterator{
		"sum": func(t *testing.T) iterator.Iterator {
			it, err := iterator.Sum(leaf(t, data))
			require.NoError(t, err)
			return it
		},
		"min": func(t *testing.T) iterator.Iterator {
			it, err := iterator.Min(leaf(t, data))
			require.NoError(t, err)
			return it
		},
		"sum of products": func(t *testing.T) iterator.Iterator {
			prod, err := iterator.Mul(leaf(t, data), leaf(t, by))
			require.NoError(t, err)
			it, err := iterator.Sum(prod)
			require.NoError(t, err)
			return it
		},
		"window sum": func(t *testing.T) iterator.Iterator {
			w, err := iterator.WindowSum(leaf(t, data), 3)
			require.NoError(t, err)
			it, err := iterator.Sum(w)
			require.NoError(t, err)
			return it
		},
		"sort": func(t *testing.T) iterator.Iterator {
			it, err := iterator.Sort(leaf(t, data), iterator.Descending)
			require.NoError(t, err)
			return it
		},
		"top": func(t *testing.T) iterator.Iterator {
			it, err := iterator.TopMin(leaf(t, data), 10)
			require.NoError(t, err)
			return it
		},
		"hash sum": func(t *testing.T) iterator.Iterator {
			it, err := iterator.HashSum(leaf(t, data), leaf(t, by))
			require.NoError(t, err)
			return it
		},
	}

	for name, build := range roots {
		t.Run(name, func(t *testing.T) {
			want, err := iterator.DrainAll(build(t))
			require.NoError(t, err)

			for _, workers := range []int{2, 3, 8} {
				root, plan, err := Split(context.Background(), newPool(t, workers), build(t))
				require.NoError(t, err)
				require.Equal(t, workers, plan.Partitions)

				got, err := iterator.DrainAll(root)
				require.NoError(t, err)
				assert.Equal(t, want, got)

				// reset evaluates again
				root.Reset()
				got, err = iterator.DrainAll(root)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func everyThird(t *testing.T, n int) iterator.Iterator {
	t.Helper()
	flags := make([]int8, n)
	for i := range flags {
		if i%3 == 0 {
			flags[i] = 1
		}
	}
	it, err := iterator.FromSlice(nil, kind.Int8, flags)
	require.NoError(t, err)
	return it
}

func TestSplit_CompactingOperands(t *testing.T) {
	const n = 1000
	data, other := ints(n), ints(n)
	for i := range other {
		other[i] = int32(i)
	}

	tests := []struct {
		name  string
		build func(t *testing.T) iterator.Iterator
		split bool
	}{
		{
			name: "sum of filter",
			build: func(t *testing.T) iterator.Iterator {
				f, err := iterator.Filter(everyThird(t, n), leaf(t, data))
				require.NoError(t, err)
				it, err := iterator.Sum(f)
				require.NoError(t, err)
				return it
			},
			split: true,
		},
		{
			name: "filter beside a column",
			build: func(t *testing.T) iterator.Iterator {
				f, err := iterator.Filter(everyThird(t, n), leaf(t, data))
				require.NoError(t, err)
				add, err := iterator.Add(f, leaf(t, other))
				require.NoError(t, err)
				it, err := iterator.Sum(add)
				require.NoError(t, err)
				return it
			},
		},
		{
			name: "positions beside a column",
			build: func(t *testing.T) iterator.Iterator {
				pos, err := iterator.Positions(everyThird(t, n))
				require.NoError(t, err)
				mul, err := iterator.Mul(pos, leaf(t, other))
				require.NoError(t, err)
				it, err := iterator.Sum(mul)
				require.NoError(t, err)
				return it
			},
		},
		{
			name: "window beside a column",
			build: func(t *testing.T) iterator.Iterator {
				w, err := iterator.WindowSum(leaf(t, data), 3)
				require.NoError(t, err)
				add, err := iterator.Add(w, leaf(t, other))
				require.NoError(t, err)
				it, err := iterator.Sum(add)
				require.NoError(t, err)
				return it
			},
			split: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := iterator.DrainAll(tt.build(t))
			require.NoError(t, err)

			for _, workers := range []int{1, 3, 4} {
				root, plan, err := Split(context.Background(), newPool(t, workers), tt.build(t))
				require.NoError(t, err)
				if tt.split && workers > 1 {
					assert.Equal(t, workers, plan.Partitions)
				} else {
					assert.Zero(t, plan.Partitions)
				}

				got, err := iterator.DrainAll(root)
				require.NoError(t, err)
				assert.Equal(t, want, got, "workers=%d", workers)
			}
		})
	}
}

func TestSplit_FloatTolerance(t *testing.T) {
	data := make([]float64, 10000)
	for i := range data {
		data[i] = 1.0 / float64(i+1)
	}
	build := func() iterator.Iterator {
		x, err := iterator.FromSlice(nil, kind.Double, data)
		require.NoError(t, err)
		avg, err := iterator.Avg(x)
		require.NoError(t, err)
		return avg
	}

	want, err := iterator.Drain[float64](build())
	require.NoError(t, err)

	root, _, err := Split(context.Background(), newPool(t, 6), build())
	require.NoError(t, err)
	got, err := iterator.Drain[float64](root)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, want[0], got[0], 1e-12)
}

func TestSplit_HashKeysFollowAdoptedState(t *testing.T) {
	by := leaf(t, []int32{3, 1, 3, 1, 2, 2, 3, 1, 3, 1})
	hash, err := iterator.HashCount(by)
	require.NoError(t, err)

	root, plan, err := Split(context.Background(), newPool(t, 3), hash)
	require.NoError(t, err)
	require.Equal(t, 3, plan.Partitions)

	counts, err := iterator.Drain[int64](root)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2, 4}, counts)

	keys, err := iterator.Keys(hash)
	require.NoError(t, err)
	got, err := iterator.Drain[int32](keys)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, got)
}

func TestSplit_ErrorPropagation(t *testing.T) {
	data := ints(4000)
	div := make([]int32, len(data))
	for i := range div {
		div[i] = 1
	}
	div[3500] = 0

	q, err := iterator.Div(leaf(t, data), leaf(t, div))
	require.NoError(t, err)
	sum, err := iterator.Sum(q)
	require.NoError(t, err)

	root, plan, err := Split(context.Background(), newPool(t, 4), sum)
	require.NoError(t, err)
	require.Equal(t, 4, plan.Partitions)

	_, err = iterator.Drain[int64](root)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

// panicSource fails hard past a position.
type panicSource struct {
	n     int64
	after int64
}

func (s panicSource) Len() int64 { return s.n }

func (s panicSource) Fill(pos int64, dst []int64) (int, error) {
	if pos+int64(len(dst)) > s.after {
		panic("corrupt source")
	}
	clear(dst)
	return len(dst), nil
}

func (s panicSource) Clone() iterator.Source[int64] { return s }

func TestSplit_PanicRecovery(t *testing.T) {
	x, err := iterator.FromSource[int64](nil, kind.Int64, 0, panicSource{n: 1000, after: 900})
	require.NoError(t, err)
	sum, err := iterator.Sum(x)
	require.NoError(t, err)

	root, _, err := Split(context.Background(), newPool(t, 2), sum)
	require.NoError(t, err)

	_, err = iterator.Drain[int64](root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt source")
}
