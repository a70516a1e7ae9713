package btree

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/page"
)

// Delete removes the elements at positions [from, till] (inclusive) and
// shifts the rest down. Pages of fully covered subtrees are freed, adjacent
// nodes that fit into one page are merged and a root with a single child is
// collapsed.
func (c *Column) Delete(from, till int64) error {
	if from < 0 || till >= c.meta.Count || from > till {
		return errs.Invalid("delete range [%d, %d] outside [0, %d)", from, till, c.meta.Count)
	}
	if from == 0 && till == c.meta.Count-1 {
		return c.Truncate()
	}
	c.version++

	if _, err := c.deleteRange(c.meta.Root, c.meta.Height, from, till); err != nil {
		return err
	}
	c.meta.Count -= till - from + 1
	return c.collapseRoot()
}

// deleteRange removes [lo, hi] relative to the subtree rooted at id and
// returns the number of elements left in it. An emptied node is freed.
func (c *Column) deleteRange(id page.ID, height int, lo, hi int64) (int64, error) {
	if height == 1 {
		return c.deleteInLeaf(id, int(lo), int(hi))
	}

	frame, err := c.p.Read(id)
	if err != nil {
		return 0, err
	}
	ents := readEntries(frame)

	kept := ents[:0:0]
	boundary := -1
	var start, total int64
	for _, e := range ents {
		end := start + e.count - 1
		switch {
		case end < lo || start > hi:
			kept = append(kept, e)
		case lo <= start && end <= hi:
			if err := c.freeSubtree(e.child, height-1); err != nil {
				return 0, err
			}
			if boundary < 0 {
				boundary = len(kept)
			}
		default:
			left, err := c.deleteRange(e.child, height-1, max(lo, start)-start, min(hi, end)-start)
			if err != nil {
				return 0, err
			}
			if boundary < 0 {
				boundary = len(kept)
			}
			if left > 0 {
				kept = append(kept, entry{child: e.child, count: left})
			}
		}
		start += e.count
	}

	if kept, err = c.mergeAround(kept, boundary, height-1); err != nil {
		return 0, err
	}
	for _, e := range kept {
		total += e.count
	}
	if len(kept) == 0 {
		return 0, c.p.Free(id)
	}

	frame, err = c.p.Write(id)
	if err != nil {
		return 0, err
	}
	writeEntries(frame, kept)
	return total, nil
}

func (c *Column) deleteInLeaf(id page.ID, lo, hi int) (int64, error) {
	frame, err := c.p.Write(id)
	if err != nil {
		return 0, err
	}
	w := c.meta.Width
	n := nodeLen(frame)
	copy(frame[headerSize+lo*w:], frame[headerSize+(hi+1)*w:headerSize+n*w])
	left := n - (hi - lo + 1)
	setNodeLen(frame, left)
	if left == 0 {
		return 0, c.p.Free(id)
	}
	return int64(left), nil
}

// mergeAround merges the children left and right of the deletion boundary
// when their contents fit into a single page.
func (c *Column) mergeAround(ents []entry, boundary, childHeight int) ([]entry, error) {
	if boundary < 0 {
		return ents, nil
	}
	for i := max(boundary-1, 0); i+1 < len(ents) && i <= boundary; {
		merged, err := c.tryMerge(ents[i], ents[i+1], childHeight)
		if err != nil {
			return nil, err
		}
		if !merged {
			i++
			continue
		}
		ents[i].count += ents[i+1].count
		ents = append(ents[:i+1], ents[i+2:]...)
	}
	return ents, nil
}

// tryMerge moves the contents of right into left if they fit and frees
// right.
func (c *Column) tryMerge(left, right entry, height int) (bool, error) {
	rf, err := c.p.Read(right.child)
	if err != nil {
		return false, err
	}
	rn := nodeLen(rf)
	unit, capacity := c.meta.Width, c.leafCap
	if height > 1 {
		unit, capacity = entrySize, c.nodeCap
	}
	lf, err := c.p.Read(left.child)
	if err != nil {
		return false, err
	}
	ln := nodeLen(lf)
	if ln+rn > capacity {
		return false, nil
	}

	moved := append([]byte(nil), rf[headerSize:headerSize+rn*unit]...)
	lf, err = c.p.Write(left.child)
	if err != nil {
		return false, err
	}
	copy(lf[headerSize+ln*unit:], moved)
	setNodeLen(lf, ln+rn)

	return true, c.p.Free(right.child)
}

func (c *Column) collapseRoot() error {
	for c.meta.Height > 1 {
		frame, err := c.p.Read(c.meta.Root)
		if err != nil {
			return err
		}
		if nodeLen(frame) != 1 {
			return nil
		}
		child := readEntry(frame, 0).child
		if err := c.p.Free(c.meta.Root); err != nil {
			return err
		}
		c.meta.Root = child
		c.meta.Height--
	}
	return nil
}
