package iterator

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Filter yields the elements of x whose cond is non-zero.
func Filter(cond, x Iterator) (Iterator, error) {
	if err := checkBool(cond, "filter"); err != nil {
		return nil, err
	}
	switch x.Kind().Phys() {
	case kind.PhysInt8:
		return newFilter[int8](cond, x)
	case kind.PhysInt16:
		return newFilter[int16](cond, x)
	case kind.PhysInt32:
		return newFilter[int32](cond, x)
	case kind.PhysInt64:
		return newFilter[int64](cond, x)
	case kind.PhysFloat32:
		return newFilter[float32](cond, x)
	case kind.PhysFloat64:
		return newFilter[float64](cond, x)
	case kind.PhysString:
		return newFilter[string](cond, x)
	}
	return nil, errs.Unsupported(x.Kind(), "filter")
}

type filter[T kind.Elem] struct {
	node
	tile[T]
	cond *reader[int8]
	x    *reader[T]
}

func newFilter[T kind.Elem](cond, x Iterator) (Iterator, error) {
	f := &filter[T]{node: newNode(x.Kind(), x.Width(), Compacting, Unbounded, scopeOf(x), cond, x)}
	if err := f.bind(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *filter[T]) bind() error {
	var err error
	if f.cond, err = newReader[int8](f.ops[0]); err != nil {
		return err
	}
	f.x, err = newReader[T](f.ops[1])
	return err
}

func (f *filter[T]) Next() (bool, error) {
	buf, err := f.buf(f.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		xc, err := f.cond.peek()
		if err != nil {
			return false, err
		}
		xv, err := f.x.peek()
		if err != nil {
			return false, err
		}
		n := min(len(xc), len(xv))
		if n == 0 {
			break
		}
		i := 0
		for ; i < n && out < len(buf); i++ {
			if xc[i] != 0 {
				buf[out] = xv[i]
				out++
			}
		}
		f.cond.skip(i)
		f.x.skip(i)
	}
	f.n = out
	return out > 0, nil
}

func (f *filter[T]) Reset() {
	f.resetOps()
	f.cond.reset()
	f.x.reset()
	f.n = 0
}

func (f *filter[T]) Clone() Iterator {
	c := &filter[T]{node: f.node}
	c.ops = f.cloneOps()
	if err := c.bind(); err != nil {
		panic(err)
	}
	return c
}

// PositionsBitmap rewinds cond and returns the positions where it is
// non-zero.
func PositionsBitmap(cond Iterator) (*roaring64.Bitmap, error) {
	if err := checkBool(cond, "positions"); err != nil {
		return nil, err
	}
	cond.Reset()
	bm := roaring64.New()
	pos := uint64(cond.First())
	err := each(cond, func(xs []int8) error {
		for _, v := range xs {
			if v != 0 {
				bm.Add(pos)
			}
			pos++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// Positions yields, in ascending order, the positions of cond's non-zero
// elements as 64-bit integers.
func Positions(cond Iterator) (Iterator, error) {
	if err := checkBool(cond, "positions"); err != nil {
		return nil, err
	}
	return &positions{node: newNode(kind.Int64, 0, 0, Unbounded, scopeOf(cond), cond)}, nil
}

type positions struct {
	node
	tile[int64]
	bm *roaring64.Bitmap
	it roaring64.IntIterable64
}

func (p *positions) Next() (bool, error) {
	if p.bm == nil {
		bm, err := PositionsBitmap(p.ops[0])
		if err != nil {
			return false, err
		}
		p.bm, p.it = bm, bm.Iterator()
	}
	buf, err := p.buf(p.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) && p.it.HasNext() {
		buf[out] = int64(p.it.Next())
		out++
	}
	p.n = out
	return out > 0, nil
}

// Bitmap materializes the positions.
func (p *positions) Bitmap() (*roaring64.Bitmap, error) {
	if p.bm == nil {
		bm, err := PositionsBitmap(p.ops[0])
		if err != nil {
			return nil, err
		}
		p.bm, p.it = bm, bm.Iterator()
	}
	return p.bm, nil
}

func (p *positions) Reset() {
	p.resetOps()
	p.bm, p.it, p.n = nil, nil, 0
}

func (p *positions) Clone() Iterator {
	c := &positions{node: p.node}
	c.ops = p.cloneOps()
	return c
}

// Take gathers the elements of x at the ascending positions yielded by pos.
// Random-access inputs are seeked across gaps longer than a tile.
func Take(x, pos Iterator) (Iterator, error) {
	if pos.Kind() != kind.Int64 {
		return nil, errs.Mismatch("take positions must be %s, got %s", kind.Int64, pos.Kind())
	}
	switch x.Kind().Phys() {
	case kind.PhysInt8:
		return newTake[int8](x, pos)
	case kind.PhysInt16:
		return newTake[int16](x, pos)
	case kind.PhysInt32:
		return newTake[int32](x, pos)
	case kind.PhysInt64:
		return newTake[int64](x, pos)
	case kind.PhysFloat32:
		return newTake[float32](x, pos)
	case kind.PhysFloat64:
		return newTake[float64](x, pos)
	case kind.PhysString:
		return newTake[string](x, pos)
	}
	return nil, errs.Unsupported(x.Kind(), "take")
}

type take[T kind.Elem] struct {
	node
	tile[T]
	x         *reader[T]
	pos       *reader[int64]
	cur       int64 // position of x's next unread element
	xFirst    int64
	xLast     int64
	seekable  bool
	repointed bool
}

func newTake[T kind.Elem](x, pos Iterator) (Iterator, error) {
	_, seekable := x.(Seeker)
	t := &take[T]{
		node:     newNode(x.Kind(), x.Width(), 0, Unbounded, scopeOf(x), x, pos),
		xFirst:   x.First(),
		xLast:    x.Last(),
		seekable: seekable && x.Flags().Has(RandomAccess),
	}
	if err := t.bind(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *take[T]) bind() error {
	var err error
	if t.x, err = newReader[T](t.ops[0]); err != nil {
		return err
	}
	t.pos, err = newReader[int64](t.ops[1])
	t.cur = t.xFirst
	return err
}

func (t *take[T]) Next() (bool, error) {
	buf, err := t.buf(t.scope)
	if err != nil {
		return false, err
	}
	out := 0
	for out < len(buf) {
		ps, err := t.pos.peek()
		if err != nil {
			return false, err
		}
		if len(ps) == 0 {
			break
		}
		p := ps[0]
		if p < t.cur {
			return false, errs.Invalid("take position %d is not ascending", p)
		}
		if err := t.advance(p); err != nil {
			return false, err
		}
		xs, err := t.x.peek()
		if err != nil {
			return false, err
		}
		if len(xs) == 0 {
			return false, errs.Invalid("take position %d out of range", p)
		}
		buf[out] = xs[0]
		out++
		t.pos.skip(1)
		t.x.skip(1)
		t.cur++
	}
	t.n = out
	return out > 0, nil
}

// advance moves x so that its next element is at position p.
func (t *take[T]) advance(p int64) error {
	if t.seekable && p-t.cur > int64(t.scope.TileSize()) {
		if err := t.ops[0].(Seeker).Seek(p, t.xLast); err != nil {
			return err
		}
		t.x.reset()
		t.cur = p
		t.repointed = true
		return nil
	}
	for t.cur < p {
		xs, err := t.x.peek()
		if err != nil {
			return err
		}
		if len(xs) == 0 {
			return errs.Invalid("take position %d out of range", p)
		}
		n := int(min(int64(len(xs)), p-t.cur))
		t.x.skip(n)
		t.cur += int64(n)
	}
	return nil
}

func (t *take[T]) Reset() {
	if t.repointed {
		_ = t.ops[0].(Seeker).Seek(t.xFirst, t.xLast)
		t.repointed = false
	}
	t.resetOps()
	t.x.reset()
	t.pos.reset()
	t.cur = t.xFirst
	t.n = 0
}

func (t *take[T]) Clone() Iterator {
	c := &take[T]{node: t.node, xFirst: t.xFirst, xLast: t.xLast, seekable: t.seekable}
	c.ops = t.cloneOps()
	if t.repointed {
		_ = c.ops[0].(Seeker).Seek(t.xFirst, t.xLast)
	}
	if err := c.bind(); err != nil {
		panic(err)
	}
	return c
}
