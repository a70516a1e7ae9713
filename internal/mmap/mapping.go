package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// AccessPattern is a kernel hint about upcoming accesses.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	AccessSequential
	AccessRandom
	AccessWillNeed
	AccessDontNeed
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: invalid size")
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)

// Mapping is a mapped byte range. Close unmaps it.
type Mapping struct {
	b      []byte
	free   func([]byte) error
	closed atomic.Bool
}

// MapAnon maps size bytes of zeroed private memory.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	b, free, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{b: b, free: free}, nil
}

// MapFile maps the file at path read-only. The file may be closed or
// replaced afterwards; the mapping stays valid until Close.
func MapFile(path string) (*Mapping, error) {
	f, err := os.Open(path) //nolint:gosec // caller-chosen path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	switch size := fi.Size(); {
	case size == 0:
		return &Mapping{}, nil
	case int64(int(size)) != size:
		return nil, ErrInvalidSize
	default:
		b, free, err := osMapFile(f, int(size))
		if err != nil {
			return nil, err
		}
		return &Mapping{b: b, free: free}, nil
	}
}

// Bytes returns the mapped memory, or nil once closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.b
}

// Len returns the mapping length in bytes.
func (m *Mapping) Len() int { return len(m.b) }

// Advise passes an access hint for the whole mapping.
func (m *Mapping) Advise(p AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.b, p)
}

// Discard tells the kernel the first n bytes are no longer needed. Anonymous
// memory reads back as zero afterwards on unix; elsewhere it keeps its
// content.
func (m *Mapping) Discard(n int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	n = min(n, len(m.b))
	if n <= 0 {
		return nil
	}
	return osAdvise(m.b[:n], AccessDontNeed)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case m.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrInvalidOffset
	case off >= int64(len(m.b)):
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the memory. Later calls return nil.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.free == nil {
		return nil
	}
	return m.free(m.b)
}
