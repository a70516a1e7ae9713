package parallel

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/iterator"
)

// maxOperands is the number of operand slots the analyzer descends into.
const maxOperands = 2

// Interval returns the number of positions the random-access nodes under
// root share: the smallest bounded extent found. Unbounded means no
// bounded random-access node was reached. A node that is neither random
// access nor context free makes the tree unsplittable, except a compacting
// node that is its parent's only operand: the parent sees the surviving
// elements of each partition in order and never pairs them with another
// operand.
func Interval(root iterator.Iterator) (int64, error) {
	interval := iterator.Unbounded
	var walk func(it iterator.Iterator) error
	walk = func(it iterator.Iterator) error {
		ops := operands(it)
		for _, op := range ops {
			switch f := op.Flags(); {
			case f.Has(iterator.RandomAccess):
				if _, ok := op.(iterator.Seeker); !ok {
					return errs.Unsupported(op.Kind(), "parallel evaluation of a node without Seek")
				}
				interval = min(interval, iterator.Extent(op))
			case f.Has(iterator.ContextFree):
				if err := walk(op); err != nil {
					return err
				}
			case f.Has(iterator.Compacting):
				if len(ops) > 1 {
					return errs.Unsupported(op.Kind(), "parallel evaluation through a compacting node beside other operands")
				}
				if err := walk(op); err != nil {
					return err
				}
			default:
				return errs.Unsupported(op.Kind(), "parallel evaluation through a context dependent node")
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return 0, err
	}
	return interval, nil
}

func operands(it iterator.Iterator) []iterator.Iterator {
	ops := it.Operands()
	if len(ops) > maxOperands {
		ops = ops[:maxOperands]
	}
	out := ops[:0:0]
	for _, op := range ops {
		if op != nil {
			out = append(out, op)
		}
	}
	return out
}

// bind seeks every bounded random-access node under root to [lo, hi] of
// its own window. The walk mirrors Interval.
func bind(root iterator.Iterator, lo, hi int64) error {
	for _, op := range operands(root) {
		f := op.Flags()
		switch {
		case f.Has(iterator.RandomAccess):
			if op.Last() == iterator.Unbounded {
				continue
			}
			first := op.First()
			if err := op.(iterator.Seeker).Seek(first+lo, min(first+hi, op.Last())); err != nil {
				return err
			}
		case f.Has(iterator.ContextFree), f.Has(iterator.Compacting):
			if err := bind(op, lo, hi); err != nil {
				return err
			}
		}
	}
	return nil
}
