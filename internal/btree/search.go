package btree

import (
	"cmp"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// BoundKind says how a search bound applies.
type BoundKind uint8

const (
	// Unbounded leaves the side open.
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one end of a value range.
type Bound struct {
	Kind  BoundKind
	Value any
}

// Search returns the positions [from, till] of a value-ordered column
// whose elements fall between low and high. At most limit positions are
// returned when limit > 0. An empty result has till == from-1.
func (c *Column) Search(low, high Bound, limit int64) (int64, int64, error) {
	if !c.meta.Temporal {
		return 0, 0, errs.Unsupported(c.meta.Kind, "search on a column that is not value ordered")
	}
	lo, err := c.bound(low)
	if err != nil {
		return 0, 0, err
	}
	hi, err := c.bound(high)
	if err != nil {
		return 0, 0, err
	}

	from := int64(0)
	if low.Kind != Unbounded {
		// first element >= low, or > low when exclusive
		from, err = c.partition(func(v any) bool {
			d := compareValues(v, lo)
			return d < 0 || (d == 0 && low.Kind == Exclusive)
		})
		if err != nil {
			return 0, 0, err
		}
	}
	end := c.meta.Count
	if high.Kind != Unbounded {
		end, err = c.partition(func(v any) bool {
			d := compareValues(v, hi)
			return d < 0 || (d == 0 && high.Kind == Inclusive)
		})
		if err != nil {
			return 0, 0, err
		}
	}
	end = max(end, from)
	if limit > 0 {
		end = min(end, from+limit)
	}
	return from, end - 1, nil
}

// bound converts a bound value to the column's physical representation.
func (c *Column) bound(b Bound) (any, error) {
	if b.Kind == Unbounded {
		return nil, nil
	}
	if b.Kind > Exclusive {
		return nil, errs.Invalid("bound kind %d", b.Kind)
	}
	buf := make([]byte, c.meta.Width)
	if err := kind.Encode(buf, c.meta.Kind, c.meta.Width, b.Value); err != nil {
		return nil, err
	}
	return kind.Decode(buf, c.meta.Kind), nil
}

// partition returns the first position whose element does not satisfy
// below, assuming below holds for a prefix of the column.
func (c *Column) partition(below func(v any) bool) (int64, error) {
	buf := make([]byte, c.meta.Width)
	lo, hi := int64(0), c.meta.Count
	for lo < hi {
		mid := lo + (hi-lo)/2
		if err := c.Get(mid, buf); err != nil {
			return 0, err
		}
		if below(kind.Decode(buf, c.meta.Kind)) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case int8:
		return cmp.Compare(x, b.(int8))
	case int16:
		return cmp.Compare(x, b.(int16))
	case int32:
		return cmp.Compare(x, b.(int32))
	case int64:
		return cmp.Compare(x, b.(int64))
	case float32:
		return cmp.Compare(x, b.(float32))
	case float64:
		return cmp.Compare(x, b.(float64))
	}
	return 0
}
