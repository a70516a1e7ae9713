package imcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/blobstore"
	"github.com/hupe1980/imcs/internal/fs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/kind"
)

func fillSnapshotStore(t *testing.T, s *Store) {
	t.Helper()
	vals := make([]any, 6000)
	for i := range vals {
		vals[i] = int64(i * 3)
	}
	appendValues(t, s, "q-price", ColumnSpec{Kind: kind.Int64}, vals...)
	appendValues(t, s, "q-timestamp", timestampSpec, int64(5), int64(7), int64(7), int64(9))
	appendValues(t, s, "q-name", ColumnSpec{Kind: kind.Char, Width: 6}, "ibm", "oracle", "sap")
	appendValues(t, s, "q-tag", ColumnSpec{Kind: kind.Varchar}, "buy", "sell", "buy")
	appendValues(t, s, "q-ratio", ColumnSpec{Kind: kind.Double}, 0.5, 1.25)
}

func resolveAll(t *testing.T, d Dictionary, codes []int32) []string {
	t.Helper()
	out := make([]string, len(codes))
	for i, c := range codes {
		s, err := d.Resolve(c)
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	mc := &BasicMetricsCollector{}

	srcDict := NewMemoryDictionary(0)
	src := newStore(t, WithPageSize(page.MinSize), WithDictionary(srcDict, 0, 4), WithMetricsCollector(mc))
	fillSnapshotStore(t, src)
	require.NoError(t, src.Snapshot(ctx, bs, "nightly"))

	names, err := bs.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"nightly"}, names)
	assert.Equal(t, int64(1), mc.GetStats().SnapshotCount)
	assert.Positive(t, mc.GetStats().SnapshotBytes)

	// the target holds a stale column that restore must drop
	dstDict := NewMemoryDictionary(0)
	_, err = dstDict.Intern("hold")
	require.NoError(t, err)
	dst := newStore(t, WithDictionary(dstDict, 0, 4))
	appendValues(t, dst, "old-col", int32Spec, 1)

	require.NoError(t, dst.Restore(ctx, bs, "nightly"))

	want := export[int64](t, src, "q-price")
	assert.Equal(t, want, export[int64](t, dst, "q-price"))
	assert.Equal(t, []int64{5, 7, 7, 9}, export[int64](t, dst, "q-timestamp"))
	assert.Equal(t, []string{"ibm", "oracle", "sap"}, export[string](t, dst, "q-name"))
	assert.Equal(t, []float64{0.5, 1.25}, export[float64](t, dst, "q-ratio"))
	assert.Equal(t, []string{"buy", "sell", "buy"}, resolveAll(t, dstDict, export[int32](t, dst, "q-tag")))

	require.NoError(t, dst.View(ctx, func(tx *Tx) error {
		cols, err := tx.Columns()
		require.NoError(t, err)
		keys := make([]string, len(cols))
		for i, c := range cols {
			keys[i] = c.Key
		}
		assert.Equal(t, []string{"q-name", "q-price", "q-ratio", "q-tag", "q-timestamp"}, keys)
		assert.True(t, cols[4].Temporal)

		from, till, err := tx.Search(ctx, "q-timestamp", Bound{Kind: Inclusive, Value: int64(7)}, Bound{Kind: Inclusive, Value: int64(7)}, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), from)
		assert.Equal(t, int64(2), till)
		return nil
	}))
}

func TestSnapshot_Errors(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	s := newStore(t, WithDictionary(NewMemoryDictionary(0), 0, 4))
	fillSnapshotStore(t, s)
	require.NoError(t, s.Snapshot(ctx, bs, "snap"))

	data, err := blobstore.ReadAll(ctx, bs, "snap")
	require.NoError(t, err)

	t.Run("flipped byte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)/2] ^= 0xff
		require.NoError(t, bs.Put(ctx, "bad", bad))
		assert.ErrorIs(t, s.Restore(ctx, bs, "bad"), ErrCorrupt)
	})

	t.Run("not a snapshot", func(t *testing.T) {
		require.NoError(t, bs.Put(ctx, "junk", []byte("hello, world")))
		assert.ErrorIs(t, s.Restore(ctx, bs, "junk"), ErrCorrupt)
	})

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, s.Restore(ctx, bs, "nope"), blobstore.ErrNotFound)
	})

	t.Run("varchar without dictionary", func(t *testing.T) {
		plain := newStore(t)
		appendValues(t, plain, "q-tag", ColumnSpec{Kind: kind.Varchar}, int32(0))
		assert.ErrorIs(t, plain.Snapshot(ctx, bs, "plain"), ErrInvalidParameter)
	})

	// corrupt restores leave the store usable
	assert.Len(t, export[int64](t, s, "q-price"), 6000)
}

func TestSnapshot_DiskStore(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()

	src := newStore(t, WithDictionary(NewMemoryDictionary(0), 0, 4))
	fillSnapshotStore(t, src)
	require.NoError(t, src.Snapshot(ctx, bs, "snap"))

	path := t.TempDir() + "/restored.pages"
	dict := NewMemoryDictionary(0)
	dst, err := Open(WithDiskPath(path, 0), WithDurable(true), WithDictionary(dict, 0, 4))
	require.NoError(t, err)
	require.NoError(t, dst.Restore(ctx, bs, "snap"))
	require.NoError(t, dst.Close())

	again := newStore(t, WithDiskPath(path, 0), WithDictionary(dict, 0, 4))
	assert.Equal(t, export[int64](t, src, "q-price"), export[int64](t, again, "q-price"))
}

func TestSnapshot_FailedWriteIsAborted(t *testing.T) {
	ctx := context.Background()
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(".tmp", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	bs := blobstore.NewLocalStore(t.TempDir(), faulty)

	s := newStore(t)
	appendValues(t, s, "q-price", ColumnSpec{Kind: kind.Int64}, int64(1), int64(2))

	err := s.Snapshot(ctx, bs, "nightly")
	require.ErrorIs(t, err, fs.ErrInjected)

	names, err := bs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
