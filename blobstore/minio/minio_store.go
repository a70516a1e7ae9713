package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/imcs/blobstore"
)

// contentType is set on every object the store writes.
const contentType = "application/x-imcs-snapshot"

// errAborted fails the background upload of an aborted blob.
var errAborted = errors.New("minio: upload aborted")

// Store implements blobstore.BlobStore on a bucket of a MinIO or other
// S3-compatible server.
type Store struct {
	client *minio.Client
	bucket string
	root   string
}

// NewStore returns a store on bucket. Object keys are root joined with
// the blob name, so "imcs/" and "imcs" are equivalent.
func NewStore(client *minio.Client, bucket, root string) *Store {
	return &Store{client: client, bucket: bucket, root: strings.Trim(root, "/")}
}

func (s *Store) objectKey(name string) string {
	if s.root == "" {
		return name
	}
	return path.Join(s.root, name)
}

func (s *Store) blobName(key string) string {
	if s.root == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.root), "/")
}

// isNotFound reports whether err is a missing key or bucket response.
func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
}

// Open stats the object and returns a handle that reads it with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.objectKey(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &object{store: s, key: key, size: info.Size, etag: info.ETag}, nil
}

// Create streams the written bytes into a single PutObject of unknown
// length. The object appears once Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	w := &upload{pw: pw, cancel: cancel, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), pr, -1, minio.PutObjectOptions{
			ContentType: contentType,
		})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Put uploads data with a known length.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Delete removes a blob. Missing blobs are ignored.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted blob names starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{Prefix: s.objectKey(prefix), Recursive: true}
	if prefix == "" && s.root != "" {
		opts.Prefix = s.root + "/"
	}

	var names []string
	for info := range s.client.ListObjects(ctx, s.bucket, opts) {
		if info.Err != nil {
			return nil, info.Err
		}
		if name := s.blobName(info.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// object is an opened blob. Reads pin the ETag seen by Open so a blob
// replaced underneath fails instead of mixing versions.
type object struct {
	store *Store
	key   string
	size  int64
	etag  string
}

func (o *object) get(ctx context.Context, off, length int64) (*minio.Object, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, min(off+length, o.size)-1); err != nil {
		return nil, err
	}
	if o.etag != "" {
		if err := opts.SetMatchETag(o.etag); err != nil {
			return nil, err
		}
	}
	return o.store.client.GetObject(ctx, o.store.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= o.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), o.size-off)
	r, err := o.get(ctx, off, want)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	n, err := io.ReadFull(r, p[:want])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= o.size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return o.get(ctx, off, length)
}

func (o *object) Size() int64 { return o.size }

func (o *object) Close() error { return nil }

// upload is a streaming PutObject fed through a pipe.
type upload struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error

	mu     sync.Mutex
	closed bool
}

func (u *upload) Write(p []byte) (int, error) {
	u.mu.Lock()
	closed := u.closed
	u.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	return u.pw.Write(p)
}

// Sync is a no-op; the object only exists after Close.
func (u *upload) Sync() error { return nil }

func (u *upload) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return false
	}
	u.closed = true
	return true
}

func (u *upload) Close() error {
	if !u.finish() {
		return io.ErrClosedPipe
	}
	defer u.cancel()
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.done
}

// Abort fails the pipe and waits for the upload to stop. Nothing is
// published.
func (u *upload) Abort() error {
	if !u.finish() {
		return nil
	}
	_ = u.pw.CloseWithError(errAborted)
	u.cancel()
	<-u.done
	return nil
}
