// Package page manages fixed-size page frames for column storage.
//
// Pages are identified by a dense ID starting at 1; Nil (0) never names a
// page. New pages are carved from an arena. Freed pages go onto a singly
// linked free list whose next pointer is stored in the first four bytes of
// each freed page, and Alloc pops that list before carving fresh space, so
//
//	Used + Free == Carved
//
// always holds. Two pagers implement the interface: Memory keeps frames in an
// off-heap arena; Disk keeps them in a file behind a write-back LRU cache.
package page

import (
	"context"
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/imcs/internal/errs"
)

// ID names a page.
type ID uint32

// Nil is the null page reference.
const Nil ID = 0

const (
	// DefaultSize is the default page size in bytes.
	DefaultSize = 4096
	// MinSize is the smallest supported page size.
	MinSize = 256
	// MaxSize is the largest supported page size.
	MaxSize = 1 << 20
)

// Stats describes page usage.
type Stats struct {
	PageSize int
	Used     int64
	Free     int64
	Carved   int64
}

// Pager hands out page frames.
//
// Frames returned by Read must not be modified. A frame returned by Write
// may be modified until the next call into the pager.
type Pager interface {
	PageSize() int
	// Alloc returns a zeroed page.
	Alloc() (ID, error)
	// Free returns a page to the free list.
	Free(id ID) error
	Read(id ID) ([]byte, error)
	Write(id ID) ([]byte, error)
	Stats() Stats
	// Flush makes modified pages durable (no-op in memory).
	Flush(ctx context.Context) error
	Close() error
}

// ValidateSize checks a configured page size.
func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize || size&(size-1) != 0 {
		return errs.Invalid("page size %d must be a power of two in [%d, %d]", size, MinSize, MaxSize)
	}
	return nil
}

// freeList is the allocation state shared by both pagers.
type freeList struct {
	head   ID
	free   int64
	carved int64
	live   *bitset.BitSet
}

func newFreeList() freeList {
	return freeList{live: bitset.New(1024)}
}

// pop takes the head of the list; frame is the head page's writable frame.
func (f *freeList) pop(frame []byte) ID {
	id := f.head
	f.head = ID(binary.LittleEndian.Uint32(frame))
	f.free--
	f.live.Set(uint(id))
	clear(frame)
	return id
}

func (f *freeList) carve() ID {
	f.carved++
	id := ID(f.carved)
	f.live.Set(uint(id))
	return id
}

func (f *freeList) check(id ID) error {
	if id == Nil || int64(id) > f.carved {
		return errs.Invalid("page %d out of range [1, %d]", id, f.carved)
	}
	if !f.live.Test(uint(id)) {
		return errs.Invalid("page %d is not allocated", id)
	}
	return nil
}

// push threads id onto the list; frame is its writable frame.
func (f *freeList) push(id ID, frame []byte) {
	clear(frame)
	binary.LittleEndian.PutUint32(frame, uint32(f.head))
	f.head = id
	f.free++
	f.live.Clear(uint(id))
}

func (f *freeList) stats(size int) Stats {
	return Stats{PageSize: size, Used: f.carved - f.free, Free: f.free, Carved: f.carved}
}
