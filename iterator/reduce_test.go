package iterator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

func TestScenarioSumAndWindowAvg(t *testing.T) {
	x := func() Iterator { return slice[int32](t, nil, kind.Int32, 10, 20, 30) }

	sum, err := Sum(x())
	require.NoError(t, err)
	assert.Equal(t, kind.Int64, sum.Kind())
	assert.Equal(t, []int64{60}, drain[int64](t, sum, nil))

	avg, err := WindowAvg(x(), 2)
	require.NoError(t, err)
	assert.Equal(t, kind.Double, avg.Kind())
	assert.Equal(t, []float64{15, 25}, drain[float64](t, avg, nil))
}

func TestScalarAggregates(t *testing.T) {
	x := func() Iterator { return slice[int32](t, NewScope(3, nil), kind.Int32, 2, 4, 4, 4, 5, 5, 7, 9) }
	empty := func() Iterator { return slice[int32](t, nil, kind.Int32) }

	it, err := Min(x())
	assert.Equal(t, []int32{2}, drain[int32](t, it, err))
	it, err = Max(x())
	assert.Equal(t, []int32{9}, drain[int32](t, it, err))
	it, err = Count(x())
	assert.Equal(t, []int64{8}, drain[int64](t, it, err))
	it, err = Avg(x())
	v := drain[float64](t, it, err)
	require.Len(t, v, 1)
	assert.InDelta(t, 5.0, v[0], 1e-9)

	it, err = Var(x())
	v = drain[float64](t, it, err)
	require.Len(t, v, 1)
	assert.InDelta(t, 4.0, v[0], 1e-9)

	it, err = Dev(x())
	v = drain[float64](t, it, err)
	require.Len(t, v, 1)
	assert.InDelta(t, 2.0, v[0], 1e-9)

	it, err = Sum(slice[float32](t, nil, kind.Float, float32(1.5), float32(2)))
	assert.Equal(t, []float64{3.5}, drain[float64](t, it, err))

	it, err = Sum(slice[int64](t, nil, kind.Money, 150, 250))
	require.NoError(t, err)
	assert.Equal(t, kind.Money, it.Kind())

	it, err = Min(empty())
	assert.Empty(t, drain[int32](t, it, err))
	it, err = Avg(empty())
	assert.Empty(t, drain[float64](t, it, err))
	it, err = Sum(empty())
	assert.Equal(t, []int64{0}, drain[int64](t, it, err))
	it, err = Count(empty())
	assert.Equal(t, []int64{0}, drain[int64](t, it, err))

	it, err = Max(slice[string](t, nil, kind.Char, "pear", "apple", "plum"))
	assert.Equal(t, []string{"plum"}, drain[string](t, it, err))

	flags := func(vals ...int8) Iterator { return slice[int8](t, nil, kind.Int8, vals...) }
	it, err = Any(flags(0, 0, 1))
	assert.Equal(t, []int8{1}, drain[int8](t, it, err))
	it, err = All(flags(1, 0, 1))
	assert.Equal(t, []int8{0}, drain[int8](t, it, err))
	it, err = All(flags())
	assert.Equal(t, []int8{1}, drain[int8](t, it, err))

	_, err = Sum(slice[string](t, nil, kind.Char, "a"))
	assert.ErrorIs(t, err, errs.ErrFeatureNotSupported)
	_, err = Avg(slice[int32](t, nil, kind.Varchar, 1))
	assert.ErrorIs(t, err, errs.ErrFeatureNotSupported)
	_, err = Any(x())
	assert.ErrorIs(t, err, errs.ErrDataTypeMismatch)
}

func TestMergeAndAdopt(t *testing.T) {
	part := func(build func(Iterator) (Iterator, error), vals ...int64) Iterator {
		it, err := build(slice[int64](t, nil, kind.Int64, vals...))
		require.NoError(t, err)
		require.NoError(t, it.(Preparer).Prepare())
		return it
	}

	t.Run("sum", func(t *testing.T) {
		a := part(Sum, 1, 2)
		require.NoError(t, a.(Merger).Merge(part(Sum, 3, 4)))
		assert.Equal(t, []int64{10}, drain[int64](t, a, nil))

		root, err := Sum(slice[int64](t, nil, kind.Int64, 100))
		require.NoError(t, err)
		require.NoError(t, root.(Adopter).Adopt(a))
		assert.Equal(t, []int64{10}, drain[int64](t, root, nil))

		// reset recomputes from the operands
		root.Reset()
		assert.Equal(t, []int64{100}, drain[int64](t, root, nil))
	})

	t.Run("var", func(t *testing.T) {
		a := part(Var, 2, 4, 4, 4)
		require.NoError(t, a.(Merger).Merge(part(Var, 5, 5, 7, 9)))
		v := drain[float64](t, a, nil)
		require.Len(t, v, 1)
		assert.InDelta(t, 4.0, v[0], 1e-9)
	})

	t.Run("min over empty part", func(t *testing.T) {
		a := part(Min)
		require.NoError(t, a.(Merger).Merge(part(Min, 7, 3)))
		assert.Equal(t, []int64{3}, drain[int64](t, a, nil))
	})

	t.Run("sort", func(t *testing.T) {
		asc := func(x Iterator) (Iterator, error) { return Sort(x, Ascending) }
		a := part(asc, 5, 1, 3)
		require.NoError(t, a.(Merger).Merge(part(asc, 4, 2, 6)))
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, drain[int64](t, a, nil))
	})

	t.Run("top", func(t *testing.T) {
		top2 := func(x Iterator) (Iterator, error) { return TopMax(x, 2) }
		a := part(top2, 5, 1, 9)
		require.NoError(t, a.(Merger).Merge(part(top2, 7, 8, 2)))
		assert.Equal(t, []int64{9, 8}, drain[int64](t, a, nil))

		low2 := func(x Iterator) (Iterator, error) { return TopMin(x, 2) }
		b := part(low2, 5, 1, 9)
		require.NoError(t, b.(Merger).Merge(part(low2, 7, 0, 2)))
		assert.Equal(t, []int64{0, 1}, drain[int64](t, b, nil))
	})

	t.Run("mismatch", func(t *testing.T) {
		a := part(Sum, 1)
		assert.ErrorIs(t, a.(Merger).Merge(part(Max, 1)), errs.ErrDataTypeMismatch)
	})
}

func TestOrdering(t *testing.T) {
	x := func() Iterator { return slice[float64](t, NewScope(2, nil), kind.Double, 3.5, -1, 8, 2, 8) }

	it, err := Sort(x(), Ascending)
	assert.Equal(t, []float64{-1, 2, 3.5, 8, 8}, drain[float64](t, it, err))
	it, err = Sort(x(), Descending)
	assert.Equal(t, []float64{8, 8, 3.5, 2, -1}, drain[float64](t, it, err))
	it, err = TopMax(x(), 3)
	assert.Equal(t, []float64{8, 8, 3.5}, drain[float64](t, it, err))
	it, err = TopMin(x(), 10)
	assert.Equal(t, []float64{-1, 2, 3.5, 8, 8}, drain[float64](t, it, err))

	it, err = Sort(slice[string](t, nil, kind.Char, "b", "c", "a"), Ascending)
	assert.Equal(t, []string{"a", "b", "c"}, drain[string](t, it, err))

	_, err = TopMax(x(), 0)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestWindows(t *testing.T) {
	x := func() Iterator { return slice[int32](t, NewScope(2, nil), kind.Int32, 5, 3, 4, 1, 2) }

	it, err := WindowMin(x(), 3)
	assert.Equal(t, []int32{3, 1, 1}, drain[int32](t, it, err))
	it, err = WindowMax(x(), 3)
	assert.Equal(t, []int32{5, 4, 4}, drain[int32](t, it, err))
	it, err = WindowSum(x(), 2)
	assert.Equal(t, []int64{8, 7, 5, 3}, drain[int64](t, it, err))
	it, err = CumSum(x())
	assert.Equal(t, []int64{5, 8, 12, 13, 15}, drain[int64](t, it, err))
	assert.False(t, it.Flags().Has(RandomAccess))
	it, err = Diff(slice[int32](t, nil, kind.Int32, 1, 4, 9, 16))
	assert.Equal(t, []int32{3, 5, 7}, drain[int32](t, it, err))

	it, err = WindowSum(slice[int64](t, nil, kind.Int64, 1, 2, 3, 4, 5, 6), 2)
	require.NoError(t, err)
	assert.True(t, it.Flags().Has(RandomAccess))
	assert.False(t, it.Flags().Has(ContextFree))
	assert.Equal(t, int64(4), it.Last())
	require.NoError(t, it.(Seeker).Seek(1, 2))
	assert.Equal(t, []int64{5, 7}, drain[int64](t, it, nil))

	it, err = WindowAvg(slice[int32](t, nil, kind.Int32, 1), 2)
	assert.Empty(t, drain[float64](t, it, err))

	_, err = WindowSum(x(), 0)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	_, err = WindowSum(slice[string](t, nil, kind.Char, "a"), 2)
	assert.ErrorIs(t, err, errs.ErrFeatureNotSupported)
}

func TestGroupBy(t *testing.T) {
	s := NewScope(2, nil)
	x := func() Iterator { return slice[int32](t, s, kind.Int32, 1, 2, 3, 4, 5) }
	by := func() Iterator { return slice[string](t, s, kind.Char, "a", "a", "b", "b", "b") }

	it, err := GroupSum(x(), by())
	assert.Equal(t, []int64{3, 12}, drain[int64](t, it, err))
	it, err = GroupMax(x(), by())
	assert.Equal(t, []int32{2, 5}, drain[int32](t, it, err))
	it, err = GroupMin(x(), by())
	assert.Equal(t, []int32{1, 3}, drain[int32](t, it, err))
	it, err = GroupAvg(x(), by())
	assert.Equal(t, []float64{1.5, 4}, drain[float64](t, it, err))
	it, err = GroupCount(by())
	assert.Equal(t, []int64{2, 3}, drain[int64](t, it, err))

	// runs, not distinct values
	it, err = GroupCount(slice[int32](t, s, kind.Int32, 1, 2, 2, 1))
	assert.Equal(t, []int64{1, 2, 1}, drain[int64](t, it, err))
}

func TestHashAggregates(t *testing.T) {
	x := func() Iterator { return slice[int64](t, NewScope(2, nil), kind.Int64, 10, 20, 30, 40, 50) }
	by := func() Iterator { return slice[int32](t, NewScope(2, nil), kind.Int32, 3, 1, 3, 2, 1) }

	h, err := HashSum(x(), by())
	require.NoError(t, err)
	keys, err := Keys(h)
	require.NoError(t, err)
	assert.Equal(t, kind.Int32, keys.Kind())
	assert.Equal(t, []int32{1, 2, 3}, drain[int32](t, keys, nil))
	assert.Equal(t, []int64{70, 40, 40}, drain[int64](t, h, nil))

	it, err := HashMax(x(), by())
	assert.Equal(t, []int64{50, 40, 30}, drain[int64](t, it, err))
	it, err = HashMin(x(), by())
	assert.Equal(t, []int64{20, 40, 10}, drain[int64](t, it, err))
	it, err = HashAvg(x(), by())
	assert.Equal(t, []float64{35, 40, 20}, drain[float64](t, it, err))
	it, err = HashCount(by())
	assert.Equal(t, []int64{2, 1, 2}, drain[int64](t, it, err))

	t.Run("merge", func(t *testing.T) {
		a, err := HashSum(slice[int64](t, nil, kind.Int64, 1, 1), slice[int32](t, nil, kind.Int32, 1, 2))
		require.NoError(t, err)
		b, err := HashSum(slice[int64](t, nil, kind.Int64, 5, 5), slice[int32](t, nil, kind.Int32, 2, 3))
		require.NoError(t, err)
		require.NoError(t, b.(Preparer).Prepare())
		require.NoError(t, a.(Merger).Merge(b))

		keys, err := Keys(a)
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2, 3}, drain[int32](t, keys, nil))
		assert.Equal(t, []int64{1, 6, 5}, drain[int64](t, a, nil))
	})

	_, err = Keys(slice[int32](t, nil, kind.Int32, 1))
	assert.ErrorIs(t, err, errs.ErrDataTypeMismatch)
	s, err := Sum(x())
	require.NoError(t, err)
	_, err = Keys(s)
	assert.ErrorIs(t, err, errs.ErrDataTypeMismatch)
}

func TestJoin(t *testing.T) {
	outer := func() Iterator { return slice[int32](t, NewScope(2, nil), kind.Int32, 1, 3, 5, 7) }
	inner := func() Iterator { return slice[int64](t, NewScope(2, nil), kind.Int64, 2, 3, 6) }

	tests := []struct {
		mode JoinMode
		want []int64
	}{
		{JoinExact, []int64{-1, 1, -1, -1}},
		{JoinBefore, []int64{-1, 1, 1, 2}},
		{JoinAfter, []int64{0, 1, 2, -1}},
	}
	for _, tt := range tests {
		it, err := Join(outer(), inner(), tt.mode)
		assert.Equal(t, tt.want, drain[int64](t, it, err), "mode %d", tt.mode)
	}

	_, err := Join(outer(), inner(), JoinMode(9))
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}
