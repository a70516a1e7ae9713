package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/blobstore"
)

func TestStore_Keys(t *testing.T) {
	tests := []struct {
		root, name, key string
	}{
		{root: "", name: "daily", key: "daily"},
		{root: "imcs", name: "daily", key: "imcs/daily"},
		{root: "/imcs/", name: "daily", key: "imcs/daily"},
		{root: "a/b", name: "c/daily", key: "a/b/c/daily"},
	}
	for _, tt := range tests {
		s := NewStore(nil, "bucket", tt.root)
		assert.Equal(t, tt.key, s.objectKey(tt.name))
		assert.Equal(t, tt.name, s.blobName(tt.key))
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{StatusCode: 404}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}))
}

// TestStore_Integration needs a server at IMCS_MINIO_ENDPOINT with the
// default minioadmin credentials.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("IMCS_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("IMCS_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not reachable: %v", err)
	}

	const bucket = "imcs-test"
	ok, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !ok {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	s := NewStore(client, bucket, "it/")

	data := []byte("columns and pages")
	require.NoError(t, s.Put(ctx, "snap/put", data))
	b, err := s.Open(ctx, "snap/put")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, 10)
	n, err := b.ReadAt(ctx, buf, 12)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "pages", string(buf[:n]))

	r, err := b.ReadRange(ctx, 0, 7)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "columns", string(got))
	require.NoError(t, r.Close())
	require.NoError(t, b.Close())

	w, err := s.Create(ctx, "snap/stream")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)

	w, err = s.Create(ctx, "snap/aborted")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, blobstore.Abort(w))

	names, err := s.List(ctx, "snap/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snap/put", "snap/stream"}, names)

	all, err := blobstore.ReadAll(ctx, s, "snap/stream")
	require.NoError(t, err)
	assert.Equal(t, data, all)

	for _, name := range names {
		require.NoError(t, s.Delete(ctx, name))
	}
	_, err = s.Open(ctx, "snap/put")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
