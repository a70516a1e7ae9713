// Package btree stores a column as a positional B-tree over fixed-size
// pages.
//
// Leaves hold runs of fixed-width elements. Internal nodes hold child
// references with subtree element counts, so locating position p costs one
// page read per level. Columns are append-only at the tail; ranges can be
// deleted from anywhere, after which underfull neighbours are merged and a
// single-child root collapses.
//
// A Column is not safe for concurrent mutation. Concurrent readers are safe
// as long as no writer runs (the store's lock enforces this).
package btree

import (
	"fmt"
	"math"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/kind"
)

// Meta is the persistent description of a column.
type Meta struct {
	Key      string    `json:"key"`
	Kind     kind.Kind `json:"kind"`
	Width    int       `json:"width"` // element width in bytes
	Temporal bool      `json:"temporal,omitempty"`
	Root     page.ID   `json:"root"`
	Height   int       `json:"height"`
	Count    int64     `json:"count"`
}

// Column is a paged positional B-tree.
type Column struct {
	meta    Meta
	p       page.Pager
	leafCap int
	nodeCap int
	version uint64 // bumped by every mutation
}

// New creates an empty column. width is the element width in bytes.
func New(p page.Pager, key string, k kind.Kind, width int, temporal bool) (*Column, error) {
	return Open(p, Meta{Key: key, Kind: k, Width: width, Temporal: temporal})
}

// Open attaches to an existing column described by meta.
func Open(p page.Pager, meta Meta) (*Column, error) {
	if meta.Width <= 0 {
		return nil, errs.Invalid("column %q: element width %d", meta.Key, meta.Width)
	}
	if temporalUnordered(meta) {
		return nil, errs.Mismatch("column %q: %s cannot be value ordered", meta.Key, meta.Kind)
	}
	leafCap := min((p.PageSize()-headerSize)/meta.Width, math.MaxUint16)
	if leafCap < 2 {
		return nil, errs.Invalid("column %q: element width %d too large for %d byte pages", meta.Key, meta.Width, p.PageSize())
	}
	return &Column{
		meta:    meta,
		p:       p,
		leafCap: leafCap,
		nodeCap: min((p.PageSize()-headerSize)/entrySize, math.MaxUint16),
	}, nil
}

func temporalUnordered(m Meta) bool {
	return m.Temporal && !m.Kind.IsNumeric()
}

// Meta returns the column's current description.
func (c *Column) Meta() Meta { return c.meta }

// Key returns the column key.
func (c *Column) Key() string { return c.meta.Key }

// Kind returns the element kind.
func (c *Column) Kind() kind.Kind { return c.meta.Kind }

// Width returns the element width in bytes.
func (c *Column) Width() int { return c.meta.Width }

// Count returns the number of elements.
func (c *Column) Count() int64 { return c.meta.Count }

// Height returns the number of levels (0 when empty).
func (c *Column) Height() int { return c.meta.Height }

// Version changes whenever the column is mutated.
func (c *Column) Version() uint64 { return c.version }

// Append adds raw elements, given in storage form and a multiple of the
// element width, at the end of the column.
func (c *Column) Append(raw []byte) error {
	w := c.meta.Width
	if len(raw)%w != 0 {
		return errs.Mismatch("column %q: %d bytes is not a multiple of width %d", c.meta.Key, len(raw), w)
	}
	if c.meta.Temporal {
		if err := c.checkOrder(raw); err != nil {
			return err
		}
	}
	c.version++
	for len(raw) > 0 {
		path, err := c.tailWithRoom()
		if err != nil {
			return err
		}
		leaf := path[len(path)-1]

		frame, err := c.p.Write(leaf)
		if err != nil {
			return err
		}
		n := nodeLen(frame)
		k := min(c.leafCap-n, len(raw)/w)
		copy(frame[headerSize+n*w:], raw[:k*w])
		setNodeLen(frame, n+k)

		for _, id := range path[:len(path)-1] {
			node, err := c.p.Write(id)
			if err != nil {
				return err
			}
			last := nodeLen(node) - 1
			e := readEntry(node, last)
			e.count += int64(k)
			writeEntry(node, last, e)
		}

		c.meta.Count += int64(k)
		raw = raw[k*w:]
	}
	return nil
}

// checkOrder rejects raw if it would break the value order of a temporal
// column.
func (c *Column) checkOrder(raw []byte) error {
	w := c.meta.Width
	var prev any
	if c.meta.Count > 0 {
		buf := make([]byte, w)
		if err := c.Get(c.meta.Count-1, buf); err != nil {
			return err
		}
		prev = kind.Decode(buf, c.meta.Kind)
	}
	for off := 0; off < len(raw); off += w {
		v := kind.Decode(raw[off:off+w], c.meta.Kind)
		if prev != nil && compareValues(v, prev) < 0 {
			return errs.Invalid("column %q: value %v breaks the order after %v", c.meta.Key, v, prev)
		}
		prev = v
	}
	return nil
}

// rightPath returns the page ids from the root to the rightmost leaf.
func (c *Column) rightPath() ([]page.ID, error) {
	path := make([]page.ID, 0, c.meta.Height)
	id := c.meta.Root
	for level := 1; level <= c.meta.Height; level++ {
		path = append(path, id)
		if level == c.meta.Height {
			break
		}
		frame, err := c.p.Read(id)
		if err != nil {
			return nil, err
		}
		id = readEntry(frame, nodeLen(frame)-1).child
	}
	return path, nil
}

// tailWithRoom grows the tree until the rightmost leaf has a free slot and
// returns the rightmost path.
func (c *Column) tailWithRoom() ([]page.ID, error) {
	if c.meta.Height == 0 {
		leaf, err := c.newNode(typeLeaf)
		if err != nil {
			return nil, err
		}
		c.meta.Root, c.meta.Height = leaf, 1
		return []page.ID{leaf}, nil
	}

	path, err := c.rightPath()
	if err != nil {
		return nil, err
	}
	frame, err := c.p.Read(path[len(path)-1])
	if err != nil {
		return nil, err
	}
	if nodeLen(frame) < c.leafCap {
		return path, nil
	}

	child, err := c.newNode(typeLeaf)
	if err != nil {
		return nil, err
	}
	for level := len(path) - 2; level >= 0; level-- {
		node, err := c.p.Write(path[level])
		if err != nil {
			return nil, err
		}
		if n := nodeLen(node); n < c.nodeCap {
			writeEntry(node, n, entry{child: child})
			setNodeLen(node, n+1)
			return c.rightPath()
		}
		// full: start a new right sibling at this level
		if child, err = c.newInternal(entry{child: child}); err != nil {
			return nil, err
		}
	}

	root, err := c.newInternal(entry{child: c.meta.Root, count: c.meta.Count}, entry{child: child})
	if err != nil {
		return nil, err
	}
	c.meta.Root = root
	c.meta.Height++
	return c.rightPath()
}

func (c *Column) newNode(typ byte) (page.ID, error) {
	id, err := c.p.Alloc()
	if err != nil {
		return page.Nil, err
	}
	frame, err := c.p.Write(id)
	if err != nil {
		return page.Nil, err
	}
	initNode(frame, typ)
	return id, nil
}

func (c *Column) newInternal(ents ...entry) (page.ID, error) {
	id, err := c.newNode(typeInternal)
	if err != nil {
		return page.Nil, err
	}
	frame, err := c.p.Write(id)
	if err != nil {
		return page.Nil, err
	}
	writeEntries(frame, ents)
	return id, nil
}

// locate descends to the leaf holding pos and returns the leaf id, the
// offset within it and the internal path as (node, entry index) pairs.
func (c *Column) locate(pos int64) (page.ID, int, []step, error) {
	if pos < 0 || pos >= c.meta.Count {
		return page.Nil, 0, nil, errs.Invalid("position %d out of range [0, %d)", pos, c.meta.Count)
	}
	steps := make([]step, 0, c.meta.Height-1)
	id := c.meta.Root
	for level := 1; level < c.meta.Height; level++ {
		frame, err := c.p.Read(id)
		if err != nil {
			return page.Nil, 0, nil, err
		}
		n := nodeLen(frame)
		i := 0
		for ; i < n; i++ {
			e := readEntry(frame, i)
			if pos < e.count {
				break
			}
			pos -= e.count
		}
		if i == n {
			return page.Nil, 0, nil, fmt.Errorf("btree: column %q: subtree counts inconsistent", c.meta.Key)
		}
		steps = append(steps, step{node: id, idx: i})
		id = readEntry(frame, i).child
	}
	return id, int(pos), steps, nil
}

type step struct {
	node page.ID
	idx  int
}

// Get copies the element at pos into dst (Width bytes).
func (c *Column) Get(pos int64, dst []byte) error {
	leaf, off, _, err := c.locate(pos)
	if err != nil {
		return err
	}
	frame, err := c.p.Read(leaf)
	if err != nil {
		return err
	}
	w := c.meta.Width
	copy(dst, frame[headerSize+off*w:headerSize+(off+1)*w])
	return nil
}

// Truncate frees every page; the column stays defined with no elements.
func (c *Column) Truncate() error {
	c.version++
	if c.meta.Height > 0 {
		if err := c.freeSubtree(c.meta.Root, c.meta.Height); err != nil {
			return err
		}
	}
	c.meta.Root, c.meta.Height, c.meta.Count = page.Nil, 0, 0
	return nil
}

func (c *Column) freeSubtree(id page.ID, height int) error {
	if height > 1 {
		frame, err := c.p.Read(id)
		if err != nil {
			return err
		}
		for _, e := range readEntries(frame) {
			if err := c.freeSubtree(e.child, height-1); err != nil {
				return err
			}
		}
	}
	return c.p.Free(id)
}

// Pages returns the number of pages the column occupies.
func (c *Column) Pages() (int64, error) {
	if c.meta.Height == 0 {
		return 0, nil
	}
	return c.countPages(c.meta.Root, c.meta.Height)
}

func (c *Column) countPages(id page.ID, height int) (int64, error) {
	if height == 1 {
		return 1, nil
	}
	frame, err := c.p.Read(id)
	if err != nil {
		return 0, err
	}
	total := int64(1)
	for _, e := range readEntries(frame) {
		n, err := c.countPages(e.child, height-1)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Walk calls fn with the raw elements of every leaf in position order. raw
// is only valid during the call.
func (c *Column) Walk(fn func(raw []byte) error) error {
	if c.meta.Height == 0 {
		return nil
	}
	return c.walk(c.meta.Root, c.meta.Height, fn)
}

func (c *Column) walk(id page.ID, height int, fn func(raw []byte) error) error {
	frame, err := c.p.Read(id)
	if err != nil {
		return err
	}
	if height == 1 {
		return fn(leafElems(frame, c.meta.Width))
	}
	for _, e := range readEntries(frame) {
		if err := c.walk(e.child, height-1, fn); err != nil {
			return err
		}
	}
	return nil
}
