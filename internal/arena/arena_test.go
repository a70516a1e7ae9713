package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/resource"
)

func TestArena_AllocBytes(t *testing.T) {
	a := New(1024)
	defer a.Free()

	b, err := a.AllocBytes(100)
	require.NoError(t, err)
	assert.Len(t, b, 100)
	for _, v := range b {
		assert.Zero(t, v)
	}

	none, err := a.AllocBytes(0)
	require.NoError(t, err)
	assert.Nil(t, none)

	st := a.Stats()
	assert.Equal(t, 1, st.Chunks)
	assert.Equal(t, int64(104), st.Used)
}

func TestArena_LargeAllocation(t *testing.T) {
	a := New(1024)
	defer a.Free()

	b, err := a.AllocBytes(4000)
	require.NoError(t, err)
	assert.Len(t, b, 4000)
	assert.Equal(t, int64(4000), a.Stats().Reserved)
}

func TestArena_AllocTyped(t *testing.T) {
	a := New(0)
	defer a.Free()

	xs, err := Alloc[int64](a, 16)
	require.NoError(t, err)
	require.Len(t, xs, 16)
	for i := range xs {
		xs[i] = int64(i * i)
	}
	assert.Equal(t, int64(225), xs[15])

	fs, err := Alloc[float32](a, 3)
	require.NoError(t, err)
	fs[2] = 1.5
	assert.Equal(t, int64(225), xs[15])
}

func TestArena_ResetAndReuse(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	a := New(1024, WithReserver(rc))

	for range 5 {
		_, err := a.AllocBytes(1000)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5*1024), rc.Usage())

	require.NoError(t, a.Reset())
	assert.Equal(t, int64(1024), rc.Usage())
	assert.Equal(t, int64(0), a.Stats().Used)

	b, err := a.AllocBytes(8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, b)

	require.NoError(t, a.Free())
	assert.Zero(t, rc.Usage())

	_, err = a.AllocBytes(8)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestArena_Budget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryBudget: 2048})
	a := New(1024, WithReserver(rc))
	defer a.Free()

	_, err := a.AllocBytes(1024)
	require.NoError(t, err)
	_, err = a.AllocBytes(1024)
	require.NoError(t, err)

	_, err = a.AllocBytes(1024)
	require.ErrorIs(t, err, errs.ErrOutOfMemory)
	assert.ErrorIs(t, err, &errs.Error{Code: errs.CodeOutOfMemory, Subject: string(errs.ResourceArena)})
	assert.ErrorIs(t, err, resource.ErrBudgetExceeded)
}

func TestArena_Concurrent(t *testing.T) {
	a := New(4096)
	defer a.Free()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				xs, err := Alloc[int32](a, 10)
				if !assert.NoError(t, err) {
					return
				}
				xs[9] = int32(g*1000 + i)
				assert.Equal(t, int32(g*1000+i), xs[9])
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), a.Stats().Allocs)
}
