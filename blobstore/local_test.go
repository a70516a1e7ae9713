package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/internal/fs"
)

func stores(t *testing.T) map[string]BlobStore {
	t.Helper()
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir(), nil),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("columns and pages")

			w, err := s.Create(ctx, "snap/001.imcs")
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())
			assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)

			b, err := s.Open(ctx, "snap/001.imcs")
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), b.Size())

			buf := make([]byte, 3)
			n, err = b.ReadAt(ctx, buf, 8)
			require.NoError(t, err)
			assert.Equal(t, "and", string(buf[:n]))

			buf = make([]byte, 10)
			n, err = b.ReadAt(ctx, buf, 12)
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, "pages", string(buf[:n]))

			r, err := b.ReadRange(ctx, 0, 7)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "columns", string(got))
			require.NoError(t, r.Close())
			require.NoError(t, b.Close())

			require.NoError(t, s.Put(ctx, "snap/002.imcs", []byte("x")))
			require.NoError(t, s.Put(ctx, "other", []byte("y")))

			names, err := s.List(ctx, "snap/")
			require.NoError(t, err)
			assert.Equal(t, []string{"snap/001.imcs", "snap/002.imcs"}, names)

			all, err := ReadAll(ctx, s, "snap/001.imcs")
			require.NoError(t, err)
			assert.Equal(t, data, all)

			require.NoError(t, s.Delete(ctx, "snap/001.imcs"))
			require.NoError(t, s.Delete(ctx, "snap/001.imcs"))
			_, err = s.Open(ctx, "snap/001.imcs")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestBlobStore_Abort(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := s.Create(ctx, "partial")
			require.NoError(t, err)
			_, err = w.Write([]byte("half a snapshot"))
			require.NoError(t, err)
			require.NoError(t, Abort(w))
			require.NoError(t, Abort(w))

			_, err = w.Write([]byte("more"))
			assert.ErrorIs(t, err, io.ErrClosedPipe)
			_, err = s.Open(ctx, "partial")
			assert.ErrorIs(t, err, ErrNotFound)
			names, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestLocalStore_FailedWriteLeavesNoBlob(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule(".tmp", fs.Fault{FailAfterBytes: -1, FailOnSync: true})
	s := NewLocalStore(root, faulty)

	w, err := s.Create(ctx, "broken")
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Close(), fs.ErrInjected)

	_, err = os.Stat(filepath.Join(root, "broken"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
