package parallel

import (
	"context"
	"sync"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

// reducible is what a root must implement to be evaluated in parallel.
type reducible interface {
	iterator.Iterator
	iterator.Preparer
	iterator.Merger
	iterator.Adopter
}

// Plan describes how a root is going to be evaluated.
type Plan struct {
	// Interval is the shared extent of the random-access leaves.
	Interval int64
	// Partitions is the number of clones evaluated concurrently; 0 means
	// the root runs sequentially.
	Partitions int
}

// Analyze decides whether root can be split across workers.
func Analyze(root iterator.Iterator, workers int) (Plan, error) {
	if _, ok := root.(reducible); !ok || workers < 2 {
		return Plan{}, nil
	}
	interval, err := Interval(root)
	if err != nil {
		return Plan{}, err
	}
	if interval == iterator.Unbounded || interval <= int64(workers) {
		return Plan{Interval: interval}, nil
	}
	chunk := ceilDiv(interval, int64(workers))
	return Plan{Interval: interval, Partitions: int(ceilDiv(interval, chunk))}, nil
}

func ceilDiv(a, b int64) int64 { return (a + b - 1) / b }

// Split wraps root in a node that evaluates it on pool the first time it is
// pulled. Roots that do not qualify are returned unchanged, as are trees
// the analyzer rejects.
func Split(ctx context.Context, pool *Pool, root iterator.Iterator) (iterator.Iterator, Plan, error) {
	if pool == nil {
		return root, Plan{}, nil
	}
	plan, err := Analyze(root, pool.Workers())
	if err != nil {
		if errs.CodeOf(err) == errs.CodeFeatureNotSupported {
			return root, Plan{}, nil
		}
		return nil, Plan{}, err
	}
	if plan.Partitions == 0 {
		return root, plan, nil
	}
	c := &coordinator{ctx: ctx, pool: pool, root: root.(reducible), plan: plan}
	switch root.Kind().Phys() {
	case kind.PhysInt8:
		return newSplit[int8](root, c), plan, nil
	case kind.PhysInt16:
		return newSplit[int16](root, c), plan, nil
	case kind.PhysInt32:
		return newSplit[int32](root, c), plan, nil
	case kind.PhysInt64:
		return newSplit[int64](root, c), plan, nil
	case kind.PhysFloat32:
		return newSplit[float32](root, c), plan, nil
	case kind.PhysFloat64:
		return newSplit[float64](root, c), plan, nil
	case kind.PhysString:
		return newSplit[string](root, c), plan, nil
	}
	return nil, Plan{}, errs.Unsupported(root.Kind(), "parallel evaluation")
}

// coordinator runs one fan-out of its root.
type coordinator struct {
	ctx  context.Context
	pool *Pool
	root reducible
	plan Plan
	done bool
}

func (c *coordinator) run() error {
	if c.done {
		return nil
	}
	n := c.plan.Partitions
	chunk := ceilDiv(c.plan.Interval, int64(n))

	clones := make([]reducible, n)
	for i := range clones {
		clone, ok := c.root.Clone().(reducible)
		if !ok {
			return errs.Unsupported(c.root.Kind(), "parallel evaluation of a clone")
		}
		lo := int64(i) * chunk
		hi := min(lo+chunk, c.plan.Interval) - 1
		if err := bind(clone, lo, hi); err != nil {
			return err
		}
		clones[i] = clone
	}

	var (
		mu  sync.Mutex
		acc reducible
	)
	jobs := make([]func() error, n)
	for i, clone := range clones {
		jobs[i] = func() error {
			if err := clone.Prepare(); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if acc == nil {
				acc = clone
				return nil
			}
			return acc.Merge(clone)
		}
	}
	if err := c.pool.Run(c.ctx, jobs); err != nil {
		return err
	}
	if err := c.root.Adopt(acc); err != nil {
		return err
	}
	c.done = true
	return nil
}

// split is the typed wrapper handed to consumers in place of the root.
type split[T kind.Elem] struct {
	iterator.Tiler[T]
	c *coordinator
}

func newSplit[T kind.Elem](root iterator.Iterator, c *coordinator) iterator.Iterator {
	return &split[T]{Tiler: root.(iterator.Tiler[T]), c: c}
}

func (s *split[T]) Next() (bool, error) {
	if err := s.c.run(); err != nil {
		return false, err
	}
	return s.Tiler.Next()
}

// Prepare evaluates in parallel without emitting.
func (s *split[T]) Prepare() error { return s.c.run() }

// Reset rewinds the root; the next pull evaluates again.
func (s *split[T]) Reset() {
	s.Tiler.Reset()
	s.c.done = false
}

func (s *split[T]) Clone() iterator.Iterator {
	root := s.Tiler.Clone()
	c := &coordinator{ctx: s.c.ctx, pool: s.c.pool, root: root.(reducible), plan: s.c.plan}
	return newSplit[T](root, c)
}
