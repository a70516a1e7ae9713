package btree

import (
	"encoding/binary"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/kind"
)

func pagers(t *testing.T) map[string]page.Pager {
	t.Helper()
	mem, err := page.NewMemory(page.MinSize, nil)
	require.NoError(t, err)
	disk, err := page.OpenDisk(filepath.Join(t.TempDir(), "pages"), page.DiskOptions{
		PageSize:  page.MinSize,
		CacheSize: page.MinCacheSize,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		mem.Close()
		disk.Close()
	})
	return map[string]page.Pager{"memory": mem, "disk": disk}
}

func raw32(vals ...int32) []byte {
	out := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	return out
}

func raw64(vals ...int64) []byte {
	out := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint64(out, uint64(v))
	}
	return out
}

// fill appends 0, 1, ..., n-1 in batches.
func fill(t *testing.T, c *Column, n int) {
	t.Helper()
	vals := make([]int32, 0, 97)
	for i := range n {
		vals = append(vals, int32(i))
		if len(vals) == cap(vals) || i == n-1 {
			require.NoError(t, c.Append(raw32(vals...)))
			vals = vals[:0]
		}
	}
}

func scan(t *testing.T, c *Column, from, till int64, chunk int) []int32 {
	t.Helper()
	r, err := NewReader[int32](c, from, till, nil)
	require.NoError(t, err)
	var out []int32
	buf := make([]int32, chunk)
	for pos := int64(0); ; {
		n, err := r.Fill(pos, buf)
		require.NoError(t, err)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
		pos += int64(n)
	}
}

func span(from, till int32) []int32 {
	out := make([]int32, 0, till-from+1)
	for v := from; v <= till; v++ {
		out = append(out, v)
	}
	return out
}

func TestColumn_AppendAndRead(t *testing.T) {
	for name, p := range pagers(t) {
		t.Run(name, func(t *testing.T) {
			c, err := New(p, "t-x", kind.Int32, 4, false)
			require.NoError(t, err)
			assert.Equal(t, 0, c.Height())

			fill(t, c, 5000)
			assert.Equal(t, int64(5000), c.Count())
			assert.Equal(t, 3, c.Height())

			buf := make([]byte, 4)
			for _, pos := range []int64{0, 59, 60, 1199, 1200, 4999} {
				require.NoError(t, c.Get(pos, buf))
				assert.Equal(t, int32(pos), int32(binary.LittleEndian.Uint32(buf)))
			}
			assert.ErrorIs(t, c.Get(5000, buf), errs.ErrInvalidParameter)

			assert.Equal(t, span(0, 4999), scan(t, c, 0, 4999, 128))
			assert.Equal(t, span(100, 1999), scan(t, c, 100, 1999, 7))

			var walked []byte
			require.NoError(t, c.Walk(func(raw []byte) error {
				walked = append(walked, raw...)
				return nil
			}))
			assert.Equal(t, raw32(span(0, 4999)...), walked)

			pages, err := c.Pages()
			require.NoError(t, err)
			assert.Equal(t, p.Stats().Used, pages)
		})
	}
}

func TestColumn_DeleteScenario(t *testing.T) {
	for name, p := range pagers(t) {
		t.Run(name, func(t *testing.T) {
			c, err := New(p, "t-x", kind.Int32, 4, false)
			require.NoError(t, err)
			require.NoError(t, c.Append(raw32(10, 20, 30)))

			require.NoError(t, c.Delete(1, 1))
			assert.Equal(t, int64(2), c.Count())
			assert.Equal(t, []int32{10, 30}, scan(t, c, 0, 1, 128))

			assert.ErrorIs(t, c.Delete(1, 2), errs.ErrInvalidParameter)
			assert.ErrorIs(t, c.Delete(1, 0), errs.ErrInvalidParameter)
		})
	}
}

func TestColumn_DeleteRebalances(t *testing.T) {
	for name, p := range pagers(t) {
		t.Run(name, func(t *testing.T) {
			before := p.Stats().Used
			c, err := New(p, "t-x", kind.Int32, 4, false)
			require.NoError(t, err)
			fill(t, c, 5000)
			full, err := c.Pages()
			require.NoError(t, err)

			require.NoError(t, c.Delete(100, 3999))
			assert.Equal(t, int64(1100), c.Count())
			want := append(span(0, 99), span(4000, 4999)...)
			assert.Equal(t, want, scan(t, c, 0, 1099, 64))

			pages, err := c.Pages()
			require.NoError(t, err)
			assert.Less(t, pages, full)
			assert.Equal(t, before+pages, p.Stats().Used)
			st := p.Stats()
			assert.Equal(t, st.Carved, st.Used+st.Free)

			// small deletes inside single leaves
			require.NoError(t, c.Delete(0, 0))
			require.NoError(t, c.Delete(998, 998))
			assert.Equal(t, int64(1098), c.Count())
			want = append(append(span(1, 99), span(4000, 4898)...), span(4900, 4999)...)
			assert.Equal(t, want, scan(t, c, 0, c.Count()-1, 128))

			// shrink to a single leaf: the root collapses
			require.NoError(t, c.Delete(10, c.Count()-1))
			assert.Equal(t, 1, c.Height())
			assert.Equal(t, span(1, 10), scan(t, c, 0, 9, 128))
			assert.Equal(t, before+1, p.Stats().Used)

			require.NoError(t, c.Delete(0, c.Count()-1))
			assert.Equal(t, int64(0), c.Count())
			assert.Equal(t, before, p.Stats().Used)

			// the column stays usable
			require.NoError(t, c.Append(raw32(7)))
			assert.Equal(t, []int32{7}, scan(t, c, 0, 0, 1))
		})
	}
}

func TestColumn_Truncate(t *testing.T) {
	for name, p := range pagers(t) {
		t.Run(name, func(t *testing.T) {
			before := p.Stats().Used
			c, err := New(p, "t-x", kind.Int32, 4, false)
			require.NoError(t, err)
			fill(t, c, 2000)
			require.Greater(t, p.Stats().Used, before)

			require.NoError(t, c.Truncate())
			assert.Equal(t, int64(0), c.Count())
			assert.Equal(t, 0, c.Height())
			assert.Equal(t, before, p.Stats().Used)
		})
	}
}

func TestColumn_Open(t *testing.T) {
	p, err := page.NewMemory(page.MinSize, nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = New(p, "t-x", kind.Char, 200, false)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)

	_, err = New(p, "t-x", kind.Char, 8, true)
	assert.ErrorIs(t, err, errs.ErrDataTypeMismatch)

	c, err := New(p, "t-x", kind.Int32, 4, false)
	require.NoError(t, err)
	fill(t, c, 300)

	again, err := Open(p, c.Meta())
	require.NoError(t, err)
	assert.Equal(t, span(0, 299), scan(t, again, 0, 299, 50))

	assert.ErrorIs(t, c.Append([]byte{1, 2, 3}), errs.ErrDataTypeMismatch)
}

func TestColumn_Search(t *testing.T) {
	p, err := page.NewMemory(page.MinSize, nil)
	require.NoError(t, err)
	defer p.Close()

	c, err := New(p, "t-timestamp", kind.Timestamp, 8, true)
	require.NoError(t, err)
	vals := make([]int64, 100)
	for i := range vals {
		vals[i] = int64(i * 10)
	}
	require.NoError(t, c.Append(raw64(vals...)))

	tests := []struct {
		name      string
		low, high Bound
		limit     int64
		from      int64
		till      int64
	}{
		{"inclusive", Bound{Kind: Inclusive, Value: int64(100)}, Bound{Kind: Inclusive, Value: int64(200)}, 0, 10, 20},
		{"exclusive", Bound{Kind: Exclusive, Value: int64(100)}, Bound{Kind: Exclusive, Value: int64(200)}, 0, 11, 19},
		{"between elements", Bound{Kind: Inclusive, Value: int64(101)}, Bound{Kind: Inclusive, Value: int64(199)}, 0, 11, 19},
		{"open low", Bound{Kind: Unbounded}, Bound{Kind: Inclusive, Value: int64(5)}, 0, 0, 0},
		{"open high", Bound{Kind: Inclusive, Value: int64(985)}, Bound{Kind: Unbounded}, 0, 99, 99},
		{"limit", Bound{Kind: Inclusive, Value: int64(100)}, Bound{Kind: Unbounded}, 3, 10, 12},
		{"empty", Bound{Kind: Inclusive, Value: int64(995)}, Bound{Kind: Unbounded}, 0, 100, 99},
		{"inverted", Bound{Kind: Inclusive, Value: int64(500)}, Bound{Kind: Inclusive, Value: int64(100)}, 0, 50, 49},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, till, err := c.Search(tt.low, tt.high, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.till, till)
		})
	}

	_, _, err = c.Search(Bound{Kind: Inclusive, Value: "x"}, Bound{Kind: Unbounded}, 0)
	assert.ErrorIs(t, err, errs.ErrDataTypeMismatch)

	err = c.Append(raw64(990, 980))
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	assert.Equal(t, int64(100), c.Count())

	plain, err := New(p, "t-x", kind.Int64, 8, false)
	require.NoError(t, err)
	_, _, err = plain.Search(Bound{}, Bound{}, 0)
	assert.ErrorIs(t, err, errs.ErrFeatureNotSupported)
}

func TestReader(t *testing.T) {
	p, err := page.NewMemory(page.MinSize, nil)
	require.NoError(t, err)
	defer p.Close()

	c, err := New(p, "t-x", kind.Int32, 4, false)
	require.NoError(t, err)
	fill(t, c, 500)

	var mu sync.RWMutex
	r, err := NewReader[int32](c, 0, 499, mu.RLocker())
	require.NoError(t, err)
	assert.Equal(t, int64(500), r.Len())

	buf := make([]int32, 10)
	n, err := r.Fill(0, buf)
	require.NoError(t, err)
	assert.Equal(t, span(0, 9), buf[:n])

	// a mutation invalidates the cursor
	require.NoError(t, c.Delete(0, 4))
	n, err = r.Fill(10, buf)
	require.NoError(t, err)
	assert.Equal(t, span(15, 24), buf[:n])

	// random access
	n, err = r.Fill(300, buf[:3])
	require.NoError(t, err)
	assert.Equal(t, span(305, 307), buf[:n])

	// the window outlives shrinking columns
	n, err = r.Fill(495, buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	clone := r.Clone()
	n, err = clone.Fill(0, buf[:2])
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 6}, buf[:n])

	_, err = NewReader[int64](c, 0, 1, nil)
	assert.ErrorIs(t, err, errs.ErrDataTypeMismatch)
	_, err = NewReader[int32](c, 0, 1000, nil)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
}

func TestReader_Char(t *testing.T) {
	p, err := page.NewMemory(page.MinSize, nil)
	require.NoError(t, err)
	defer p.Close()

	c, err := New(p, "t-name", kind.Char, 4, false)
	require.NoError(t, err)
	require.NoError(t, c.Append([]byte("ab\x00\x00abcdx\x00\x00\x00")))

	r, err := NewReader[string](c, 0, 2, nil)
	require.NoError(t, err)
	buf := make([]string, 3)
	n, err := r.Fill(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "abcd", "x"}, buf[:n])
}
