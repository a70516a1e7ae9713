package arena

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/mmap"
)

// ErrClosed is returned by allocations after Free.
var ErrClosed = errors.New("arena: closed")

const (
	// DefaultChunkSize is the size of one mapped chunk (1 MiB).
	DefaultChunkSize = 1 << 20
	// Alignment of every allocation.
	Alignment = 8
)

// Reserver accounts for chunk memory.
type Reserver interface {
	Reserve(n int64) error
	Release(n int64)
}

// Stats describes arena memory usage.
type Stats struct {
	Chunks   int   // chunks currently mapped
	Reserved int64 // bytes mapped
	Used     int64 // bytes handed out, including alignment padding
	Allocs   int64 // allocations since the last Reset
}

// Scalar is the set of element types Alloc can place in arena memory.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

type chunk struct {
	m    *mmap.Mapping
	off  int
	size int
}

// Arena is a chunked bump allocator.
type Arena struct {
	mu        sync.Mutex
	chunkSize int
	chunks    []*chunk
	closed    bool
	res       Reserver
	stats     Stats
}

// Option configures an Arena.
type Option func(*Arena)

// WithReserver accounts chunk memory against r.
func WithReserver(r Reserver) Option {
	return func(a *Arena) {
		a.res = r
	}
}

// New creates an arena mapping chunks of chunkSize bytes (DefaultChunkSize if
// chunkSize <= 0). No memory is mapped until the first allocation.
func New(chunkSize int, opts ...Option) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	a := &Arena{chunkSize: align(chunkSize)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func align(n int) int { return (n + Alignment - 1) &^ (Alignment - 1) }

// AllocBytes returns n zeroed bytes. Requests larger than the chunk size get
// a dedicated chunk.
func (a *Arena) AllocBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	size := align(n)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrClosed
	}

	var c *chunk
	if len(a.chunks) > 0 {
		c = a.chunks[len(a.chunks)-1]
	}
	if c == nil || c.off+size > c.size {
		var err error
		if c, err = a.grow(max(size, a.chunkSize)); err != nil {
			return nil, err
		}
	}

	b := c.m.Bytes()[c.off : c.off+n : c.off+n]
	// chunks are reused after Reset
	clear(b)
	c.off += size

	a.stats.Used += int64(size)
	a.stats.Allocs++
	return b, nil
}

func (a *Arena) grow(size int) (*chunk, error) {
	if a.res != nil {
		if err := a.res.Reserve(int64(size)); err != nil {
			return nil, errs.OutOfMemory(errs.ResourceArena, err)
		}
	}
	m, err := mmap.MapAnon(size)
	if err != nil {
		if a.res != nil {
			a.res.Release(int64(size))
		}
		return nil, errs.OutOfMemory(errs.ResourceArena, fmt.Errorf("map chunk: %w", err))
	}
	c := &chunk{m: m, size: size}
	a.chunks = append(a.chunks, c)
	a.stats.Chunks++
	a.stats.Reserved += int64(size)
	return c, nil
}

// Alloc returns a zeroed slice of n elements of T backed by arena memory.
func Alloc[T Scalar](a *Arena, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	var zero T
	b, err := a.AllocBytes(n * int(unsafe.Sizeof(zero)))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n), nil //nolint:gosec // arena memory is pointer free
}

// Stats returns a snapshot of the usage counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Reset invalidates every allocation. The first chunk is kept for reuse
// with its used pages discarded; the rest are unmapped and released.
func (a *Arena) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.chunks) == 0 {
		return nil
	}
	err := a.unmap(a.chunks[1:])
	a.chunks = a.chunks[:1]
	first := a.chunks[0]
	if derr := first.m.Discard(first.off); err == nil {
		err = derr
	}
	first.off = 0
	a.stats = Stats{Chunks: 1, Reserved: int64(a.chunks[0].size)}
	return err
}

// Free unmaps every chunk. The arena cannot be used afterwards.
func (a *Arena) Free() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	err := a.unmap(a.chunks)
	a.chunks = nil
	a.stats = Stats{}
	return err
}

func (a *Arena) unmap(cs []*chunk) error {
	var errList []error
	for _, c := range cs {
		if err := c.m.Close(); err != nil {
			errList = append(errList, err)
		}
		if a.res != nil {
			a.res.Release(int64(c.size))
		}
	}
	return errors.Join(errList...)
}
