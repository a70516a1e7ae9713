// Package iterator implements the lazy, tile-batched operator tree.
//
// Every query is a tree of Iterator nodes built bottom-up from leaves
// (slices, constants, column scans). Nothing is computed until the consumer
// calls Next on the root; each call fills the node's tile with up to
// TileSize elements and returns false once the node is exhausted.
//
// Operators are written once per Go physical type and instantiated by
// switching on the node's kind.Kind. Binary operators whose operand kinds
// differ cast the lower-ranked operand to the higher one first.
//
//	x, _ := iterator.FromSlice(nil, kind.Int32, []int32{10, 20, 30})
//	sum, _ := iterator.Sum(x)
//	vals, _ := iterator.Drain[int64](sum) // [60]
//
// # Positions and seeking
//
// Positions are relative to the node: a node's unseeked output starts at 0.
// Random-access nodes implement Seeker and narrow their window to
// [from, till] in O(log n); First and Last report the current window.
//
// # Parallel evaluation
//
// Reducing roots (aggregates, sorts, top-k, hash aggregates) implement
// Preparer, Merger and Adopter so a coordinator can evaluate clones over
// disjoint partitions and splice the merged state back into the root.
package iterator

import (
	"math"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Unbounded marks an open-ended Last.
const Unbounded int64 = math.MaxInt64

// DefaultTileSize is the number of elements per tile.
const DefaultTileSize = 128

// Flags are node capabilities.
type Flags uint8

const (
	// RandomAccess nodes can seek to a bounded window in O(log n).
	RandomAccess Flags = 1 << iota
	// ContextFree nodes compute output i from input i alone.
	ContextFree
	// Compacting nodes emit an order-preserving subsequence of their input
	// positions. Output i does not line up with input i.
	Compacting
)

// Has reports whether all of g are set.
func (f Flags) Has(g Flags) bool { return f&g == g }

// Iterator is an operator node.
type Iterator interface {
	Kind() kind.Kind
	// Width is the element width in bytes (the column width for char).
	Width() int
	Flags() Flags
	First() int64
	Last() int64
	// Next fills the tile. It returns false once exhausted; an error aborts
	// the whole pull chain.
	Next() (bool, error)
	// Reset rewinds to First and resets the operands.
	Reset()
	// Len is the number of elements in the current tile.
	Len() int
	Operands() []Iterator
	// Clone copies the subtree with fresh cursors.
	Clone() Iterator
}

// Tiler gives typed access to the current tile.
type Tiler[T kind.Elem] interface {
	Iterator
	Tile() []T
}

// Seeker is implemented by random-access nodes.
type Seeker interface {
	// Seek narrows the window to positions [from, till]; till < from
	// selects nothing. The cursor moves to from.
	Seek(from, till int64) error
}

// Preparer forces full evaluation.
type Preparer interface {
	Prepare() error
}

// Merger folds a prepared partial result of the same shape into the node.
type Merger interface {
	Merge(src Iterator) error
}

// Adopter replaces the node's state with the merged state of src and marks
// the node prepared.
type Adopter interface {
	Adopt(src Iterator) error
}

// Extent returns the number of positions in its window, or Unbounded.
func Extent(it Iterator) int64 {
	if it.Last() == Unbounded {
		return Unbounded
	}
	return max(it.Last()-it.First()+1, 0)
}

// node carries the attributes shared by every operator.
type node struct {
	kind  kind.Kind
	width int
	flags Flags
	first int64
	last  int64
	scope *Scope
	ops   []Iterator
}

func newNode(k kind.Kind, width int, flags Flags, last int64, scope *Scope, ops ...Iterator) node {
	if width == 0 {
		width = k.Width()
	}
	return node{kind: k, width: width, flags: flags, last: last, scope: scope, ops: ops}
}

func (n *node) Kind() kind.Kind      { return n.kind }
func (n *node) Width() int           { return n.width }
func (n *node) Flags() Flags         { return n.flags }
func (n *node) First() int64         { return n.first }
func (n *node) Last() int64          { return n.last }
func (n *node) Operands() []Iterator { return n.ops }
func (n *node) nodeScope() *Scope    { return n.scope }

func (n *node) resetOps() {
	for _, op := range n.ops {
		if op != nil {
			op.Reset()
		}
	}
}

func (n *node) cloneOps() []Iterator {
	out := make([]Iterator, len(n.ops))
	for i, op := range n.ops {
		if op != nil {
			out[i] = op.Clone()
		}
	}
	return out
}

// window validates a seek against the full extent [0, full].
func (n *node) window(from, till, full int64) error {
	if from < 0 || till < from-1 {
		return errs.Invalid("seek [%d, %d]", from, till)
	}
	if full != Unbounded && from > full+1 {
		return errs.Invalid("seek from %d beyond last position %d", from, full)
	}
	n.first, n.last = from, min(till, full)
	return nil
}

type scoped interface {
	nodeScope() *Scope
}

// scopeOf returns the scope derived nodes allocate from.
func scopeOf(it Iterator) *Scope {
	if s, ok := it.(scoped); ok {
		return s.nodeScope()
	}
	return nil
}

// tile is the owned output buffer of a node.
type tile[T kind.Elem] struct {
	data []T
	n    int
}

func (t *tile[T]) Tile() []T { return t.data[:t.n] }
func (t *tile[T]) Len() int  { return t.n }

// buf returns the full-capacity buffer, allocating it on first use.
func (t *tile[T]) buf(s *Scope) ([]T, error) {
	if t.data == nil {
		d, err := allocTile[T](s)
		if err != nil {
			return nil, err
		}
		t.data = d
	}
	return t.data, nil
}

func tiler[T kind.Elem](it Iterator) (Tiler[T], error) {
	t, ok := it.(Tiler[T])
	if !ok {
		return nil, errs.Mismatch("%s node does not produce %T tiles", it.Kind(), *new(T))
	}
	return t, nil
}

func checkPhys[T kind.Elem](k kind.Kind) error {
	if k.Phys() != kind.PhysOf[T]() {
		return errs.Mismatch("%s elements are not %T", k, *new(T))
	}
	return nil
}

// allRandom reports whether every operand is random access.
func allRandom(ops ...Iterator) bool {
	for _, op := range ops {
		if !op.Flags().Has(RandomAccess) {
			return false
		}
	}
	return true
}

// positional reports whether every operand emits element i for input
// position i.
func positional(ops ...Iterator) bool {
	for _, op := range ops {
		if f := op.Flags(); !f.Has(RandomAccess) && !f.Has(ContextFree) {
			return false
		}
	}
	return true
}

// elementWise returns the flags of a node computing output i from element
// i of each operand.
func elementWise(ops ...Iterator) Flags {
	switch {
	case allRandom(ops...):
		return RandomAccess | ContextFree
	case positional(ops...):
		return ContextFree
	case len(ops) == 1 && ops[0].Flags().Has(Compacting):
		return Compacting
	}
	return 0
}

// span is the window shared by ops: the latest First and earliest Last.
func span(ops ...Iterator) (int64, int64) {
	first, last := int64(0), Unbounded
	for _, op := range ops {
		first = max(first, op.First())
		last = min(last, op.Last())
	}
	return first, last
}

// seekOps seeks every operand to the same window and adopts the resulting
// span. Element-wise nodes share their operands' coordinates.
func (n *node) seekOps(from, till int64) error {
	if from < 0 || till < from-1 {
		return errs.Invalid("seek [%d, %d]", from, till)
	}
	for _, op := range n.ops {
		s, ok := op.(Seeker)
		if !ok || !op.Flags().Has(RandomAccess) {
			return errs.Unsupported(op.Kind(), "seek")
		}
		if err := s.Seek(from, till); err != nil {
			return err
		}
	}
	n.first, n.last = span(n.ops...)
	return nil
}
