package blobstore

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. Stored slices are never
// mutated after publication, so open blobs share them.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	return data, ok
}

// publish replaces name with data, which the caller must not touch again.
func (m *MemoryStore) publish(name string, data []byte) {
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
}

// Open implements BlobStore.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	data, ok := m.get(name)
	if !ok {
		return nil, ErrNotFound
	}
	return newBytesBlob(data), nil
}

// Create implements BlobStore. The blob appears on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{publish: func(b []byte) { m.publish(name, b) }}, nil
}

// Put implements BlobStore.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.publish(name, bytes.Clone(data))
	return nil
}

// Delete implements BlobStore.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List implements BlobStore.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	slices.Sort(names)
	return names, nil
}

// bytesBlob serves reads from an immutable byte slice.
type bytesBlob struct {
	r    *bytes.Reader
	data []byte
}

func newBytesBlob(data []byte) *bytesBlob {
	return &bytesBlob{r: bytes.NewReader(data), data: data}
}

func (b *bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.EOF
	}
	return b.r.ReadAt(p, off)
}

func (b *bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	off = min(max(off, 0), b.Size())
	return io.NopCloser(io.NewSectionReader(b.r, off, length)), nil
}

func (b *bytesBlob) Bytes() ([]byte, error) { return b.data, nil }

func (b *bytesBlob) Close() error { return nil }

func (b *bytesBlob) Size() int64 { return int64(len(b.data)) }

// memoryWriter buffers a blob until Close publishes it.
type memoryWriter struct {
	buf     bytes.Buffer
	publish func([]byte)
	done    bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error {
	if w.done {
		return io.ErrClosedPipe
	}
	return nil
}

func (w *memoryWriter) Close() error {
	if w.done {
		return io.ErrClosedPipe
	}
	w.done = true
	w.publish(w.buf.Bytes())
	return nil
}

// Abort drops the buffered data.
func (w *memoryWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.buf.Reset()
	return nil
}
