package iterator

import (
	"slices"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// Hash aggregates group x by arbitrary (unsorted) keys and emit one value
// per distinct key in ascending key order. Keys returns the matching keys.

// HashSum sums x per distinct by.
func HashSum(x, by Iterator) (Iterator, error) { return hashBy(groupSum, x, by) }

// HashMin yields the smallest x per distinct by.
func HashMin(x, by Iterator) (Iterator, error) { return hashBy(groupMin, x, by) }

// HashMax yields the largest x per distinct by.
func HashMax(x, by Iterator) (Iterator, error) { return hashBy(groupMax, x, by) }

// HashAvg averages x per distinct by.
func HashAvg(x, by Iterator) (Iterator, error) { return hashBy(groupAvg, x, by) }

// HashCount counts the occurrences of each distinct by.
func HashCount(by Iterator) (Iterator, error) { return hashBy(groupCount, nil, by) }

func hashBy(op groupOp, x, by Iterator) (Iterator, error) {
	switch by.Kind().Phys() {
	case kind.PhysInt8:
		return hashKeyed[int8](op, x, by)
	case kind.PhysInt16:
		return hashKeyed[int16](op, x, by)
	case kind.PhysInt32:
		return hashKeyed[int32](op, x, by)
	case kind.PhysInt64:
		return hashKeyed[int64](op, x, by)
	case kind.PhysFloat32:
		return hashKeyed[float32](op, x, by)
	case kind.PhysFloat64:
		return hashKeyed[float64](op, x, by)
	case kind.PhysString:
		return hashKeyed[string](op, x, by)
	}
	return nil, errs.Unsupported(by.Kind(), "hash "+groupNames[op])
}

func hashKeyed[K ordered](op groupOp, x, by Iterator) (Iterator, error) {
	name := "hash " + groupNames[op]
	if op == groupCount {
		st := &hashState[K, K, int64]{proto: &countAcc[K]{}, keyKind: by.Kind(), keyWidth: by.Width()}
		return newReducer[int64](name, kind.Int64, 0, st, by)
	}
	k := x.Kind()
	if !k.IsNumeric() {
		return nil, errs.Unsupported(k, name)
	}
	switch k.Phys() {
	case kind.PhysInt8:
		return hashFor[K, int8](op, x, by)
	case kind.PhysInt16:
		return hashFor[K, int16](op, x, by)
	case kind.PhysInt32:
		return hashFor[K, int32](op, x, by)
	case kind.PhysInt64:
		return hashFor[K, int64](op, x, by)
	case kind.PhysFloat32:
		return hashFor[K, float32](op, x, by)
	case kind.PhysFloat64:
		return hashFor[K, float64](op, x, by)
	}
	return nil, errs.Unsupported(k, name)
}

func hashFor[K ordered, T numeric](op groupOp, x, by Iterator) (Iterator, error) {
	name := "hash " + groupNames[op]
	k := x.Kind()
	switch op {
	case groupSum:
		sk, err := kind.SumKind(k)
		if err != nil {
			return nil, err
		}
		if sk.Phys() == kind.PhysFloat64 {
			return newHash[K, T, float64](name, sk, &sumAcc[T, float64]{}, x, by)
		}
		return newHash[K, T, int64](name, sk, &sumAcc[T, int64]{}, x, by)
	case groupMin, groupMax:
		return newHash[K, T, T](name, k, &extremeAcc[T]{greatest: op == groupMax}, x, by)
	}
	return newHash[K, T, float64](name, kind.Double, &avgAcc[T]{conv: kind.Converter[T, float64](k, kind.Double)}, x, by)
}

func newHash[K ordered, T, R kind.Elem](name string, k kind.Kind, proto acc[T, R], x, by Iterator) (Iterator, error) {
	st := &hashState[K, T, R]{proto: proto, keyKind: by.Kind(), keyWidth: by.Width()}
	return newReducer[R](name, k, 0, st, by, x)
}

type hashState[K ordered, T, R kind.Elem] struct {
	proto    acc[T, R]
	keyKind  kind.Kind
	keyWidth int
	groups   map[K]acc[T, R]
	order    []K
}

func (h *hashState[K, T, R]) group(key K) acc[T, R] {
	a, ok := h.groups[key]
	if !ok {
		a = h.proto.fresh()
		h.groups[key] = a
	}
	return a
}

func (h *hashState[K, T, R]) consume(ops []Iterator) error {
	if len(ops) == 1 {
		return each(ops[0], func(ks []K) error {
			for _, key := range ks {
				h.group(key).add(any(key).(T))
			}
			return nil
		})
	}
	by, err := newReader[K](ops[0])
	if err != nil {
		return err
	}
	vals, err := newReader[T](ops[1])
	if err != nil {
		return err
	}
	return zip(by, vals, func(ks []K, vs []T) error {
		for i, key := range ks {
			h.group(key).add(vs[i])
		}
		return nil
	})
}

func (h *hashState[K, T, R]) merge(src reduction[R]) error {
	o, err := sameState[*hashState[K, T, R]](src)
	if err != nil {
		return err
	}
	for key, a := range o.groups {
		if mine, ok := h.groups[key]; ok {
			mine.merge(a)
		} else {
			h.groups[key] = a
		}
	}
	return nil
}

func (h *hashState[K, T, R]) values() []R {
	h.order = h.order[:0]
	for key := range h.groups {
		h.order = append(h.order, key)
	}
	slices.Sort(h.order)
	out := make([]R, len(h.order))
	for i, key := range h.order {
		out[i] = h.groups[key].result()
	}
	return out
}

func (h *hashState[K, T, R]) empty() reduction[R] {
	return &hashState[K, T, R]{
		proto:    h.proto,
		keyKind:  h.keyKind,
		keyWidth: h.keyWidth,
		groups:   make(map[K]acc[T, R]),
	}
}

func (h *hashState[K, T, R]) keysOf(owner *reducer[R]) Iterator {
	fetch := func() ([]K, error) {
		if err := owner.Prepare(); err != nil {
			return nil, err
		}
		st, ok := owner.st.(*hashState[K, T, R])
		if !ok {
			return nil, errs.Mismatch("%s state replaced by %T", owner.name, owner.st)
		}
		return st.order, nil
	}
	return &keys[K]{
		node:  newNode(h.keyKind, h.keyWidth, 0, Unbounded, owner.scope),
		owner: owner,
		fetch: fetch,
	}
}

type keyed[R kind.Elem] interface {
	keysOf(owner *reducer[R]) Iterator
}

// Keys returns the distinct keys of a hash aggregate, aligned with its
// output. Evaluating either node evaluates the aggregate once.
func Keys(hash Iterator) (Iterator, error) {
	k, ok := hash.(interface{ keys() (Iterator, error) })
	if !ok {
		return nil, errs.Mismatch("%T is not a hash aggregate", hash)
	}
	return k.keys()
}

func (r *reducer[R]) keys() (Iterator, error) {
	k, ok := r.st.(keyed[R])
	if !ok {
		return nil, errs.Mismatch("%s is not a hash aggregate", r.name)
	}
	return k.keysOf(r), nil
}

type keys[K ordered] struct {
	node
	tile[K]
	owner Iterator
	fetch func() ([]K, error)
	pos   int
}

func (k *keys[K]) Next() (bool, error) {
	all, err := k.fetch()
	if err != nil {
		return false, err
	}
	if k.pos >= len(all) {
		k.n = 0
		return false, nil
	}
	buf, err := k.buf(k.scope)
	if err != nil {
		return false, err
	}
	k.n = copy(buf, all[k.pos:])
	k.pos += k.n
	return true, nil
}

func (k *keys[K]) Reset() { k.pos, k.n = 0, 0 }

func (k *keys[K]) Clone() Iterator {
	c, err := Keys(k.owner.Clone())
	if err != nil {
		panic(err)
	}
	return c
}
