package iterator

import (
	"unsafe"

	"github.com/hupe1980/imcs/kind"
)

// Allocator hands out zeroed byte regions. *arena.Arena satisfies it.
type Allocator interface {
	AllocBytes(n int) ([]byte, error)
}

// Scope is the allocation context of one query: tile size and the arena
// numeric tiles are carved from. A nil *Scope allocates on the heap with
// DefaultTileSize.
type Scope struct {
	tileSize int
	alloc    Allocator
}

// NewScope returns a scope. tileSize <= 0 selects DefaultTileSize; a nil
// alloc uses the heap.
func NewScope(tileSize int, alloc Allocator) *Scope {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	return &Scope{tileSize: tileSize, alloc: alloc}
}

// TileSize returns the number of elements per tile.
func (s *Scope) TileSize() int {
	if s == nil {
		return DefaultTileSize
	}
	return s.tileSize
}

func allocTile[T kind.Elem](s *Scope) ([]T, error) {
	return allocN[T](s, s.TileSize())
}

// allocN allocates n elements. Text tiles always live on the heap since the
// arena does not track pointers.
func allocN[T kind.Elem](s *Scope, n int) ([]T, error) {
	if s == nil || s.alloc == nil || kind.PhysOf[T]() == kind.PhysString || n == 0 {
		return make([]T, n), nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	b, err := s.alloc.AllocBytes(n * size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}
