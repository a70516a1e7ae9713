package imcs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/imcs/internal/arena"
	"github.com/hupe1980/imcs/internal/btree"
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/parallel"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

// queryChunkSize is the arena chunk size of a transaction scope.
const queryChunkSize = 256 << 10

// BoundKind says how a search bound applies.
type BoundKind = btree.BoundKind

// Bound is one end of a Search value range.
type Bound = btree.Bound

const (
	Unbounded = btree.Unbounded
	Inclusive = btree.Inclusive
	Exclusive = btree.Exclusive
)

// Tx is a transaction. Iterators created in a transaction allocate their
// tiles from its scope and must not be used after Commit or Rollback.
//
// A Tx is not safe for concurrent use; iterators returned by Parallel
// evaluate on the store's worker pool internally.
type Tx struct {
	s        *Store
	writable bool
	locked   bool
	done     bool
	dirty    bool

	arena *arena.Arena
	scope *iterator.Scope
	log   *Logger
}

// Begin starts a transaction. Under PerTransaction isolation it takes the
// store lock (shared for views) until Commit or Rollback.
func (s *Store) Begin(writable bool) (*Tx, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	tx := &Tx{
		s:        s,
		writable: writable,
		arena:    arena.New(queryChunkSize, arena.WithReserver(s.res)),
		log:      s.logger.WithTx(writable),
	}
	tx.scope = iterator.NewScope(s.cfg.TileSize, tx.arena)

	if s.cfg.Isolation == PerTransaction {
		if writable {
			s.mu.Lock()
		} else {
			s.mu.RLock()
		}
		tx.locked = true
	}
	return tx, nil
}

// Writable reports whether tx can modify the store.
func (tx *Tx) Writable() bool { return tx.writable }

// Scope returns the allocation scope for operators built in tx.
func (tx *Tx) Scope() *iterator.Scope { return tx.scope }

// Commit ends the transaction. Update transactions of a durable disk store
// flush dirty pages and the catalog first; a flush error is returned after
// the lock is released.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	var err error
	if tx.writable && tx.dirty && tx.s.cfg.Durable {
		err = tx.write(func() error { return tx.s.flushLocked(ctx) })
	}
	return errors.Join(err, tx.finish())
}

// Rollback ends the transaction. Changes already applied are kept: the
// store does not journal them.
func (tx *Tx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	return tx.finish()
}

func (tx *Tx) finish() error {
	tx.done = true
	if tx.locked {
		if tx.writable {
			tx.s.mu.Unlock()
		} else {
			tx.s.mu.RUnlock()
		}
		tx.locked = false
	}
	return tx.arena.Free()
}

func (tx *Tx) check(write bool) error {
	if tx.done {
		return ErrTxDone
	}
	if write && !tx.writable {
		return ErrTxReadOnly
	}
	return tx.s.checkOpen()
}

// read runs fn under the shared lock unless the transaction holds it.
func (tx *Tx) read(fn func() error) error {
	if !tx.locked {
		tx.s.mu.RLock()
		defer tx.s.mu.RUnlock()
	}
	return fn()
}

// write runs fn under the exclusive lock unless the transaction holds it.
func (tx *Tx) write(fn func() error) error {
	if !tx.locked {
		tx.s.mu.Lock()
		defer tx.s.mu.Unlock()
	}
	return fn()
}

// readLock is the lock column scans take around page reads.
func (tx *Tx) readLock() sync.Locker {
	if tx.locked {
		return nil
	}
	return tx.s.mu.RLocker()
}

// Append adds values to the column key, creating it from spec on first use.
// Every value is validated before the column changes.
func (tx *Tx) Append(ctx context.Context, key string, spec ColumnSpec, values ...any) error {
	if err := tx.check(true); err != nil {
		return err
	}
	start := time.Now()
	err := tx.write(func() error { return tx.appendLocked(key, spec, values) })
	err = columnError("append", key, err)

	tx.s.metrics.RecordAppend(len(values), time.Since(start), err)
	tx.log.LogAppend(ctx, key, len(values), err)
	return err
}

func (tx *Tx) appendLocked(key string, spec ColumnSpec, values []any) error {
	c, ok := tx.s.columns[key]
	meta := btree.Meta{Key: key}
	if ok {
		meta = c.Meta()
		if err := matchSpec(meta, spec); err != nil {
			return err
		}
	} else {
		w, err := specWidth(spec, tx.s.cfg.CodeWidth)
		if err != nil {
			return err
		}
		meta.Kind, meta.Width, meta.Temporal = spec.Kind, w, spec.Temporal
	}

	raw, err := tx.s.encode(c, meta.Kind, meta.Width, values)
	if err != nil {
		return err
	}
	if c == nil {
		if c, err = btree.New(tx.s.pager, key, meta.Kind, meta.Width, meta.Temporal); err != nil {
			return err
		}
		tx.s.columns[key] = c
	}
	if err := c.Append(raw); err != nil {
		return translateError(err)
	}
	tx.dirty = true
	return nil
}

func specWidth(spec ColumnSpec, codeWidth int) (int, error) {
	switch spec.Kind {
	case kind.Char:
		if spec.Width <= 0 {
			return 0, errs.Invalid("char column needs a positive width")
		}
		return spec.Width, nil
	case kind.Varchar:
		return codeWidth, nil
	}
	if spec.Kind.Phys() == kind.PhysInvalid {
		return 0, errs.Invalid("unknown kind %s", spec.Kind)
	}
	return spec.Kind.Width(), nil
}

func matchSpec(m btree.Meta, spec ColumnSpec) error {
	if m.Kind != spec.Kind || m.Temporal != spec.Temporal {
		return errs.Mismatch("column holds %s (temporal %t), not %s (temporal %t)", m.Kind, m.Temporal, spec.Kind, spec.Temporal)
	}
	if spec.Kind == kind.Char && spec.Width != 0 && spec.Width != m.Width {
		return errs.Mismatch("column width is %d, not %d", m.Width, spec.Width)
	}
	return nil
}

// encode converts values to storage form. c is the existing column, or nil.
func (s *Store) encode(c *btree.Column, k kind.Kind, w int, values []any) ([]byte, error) {
	raw := make([]byte, len(values)*w)
	for i, v := range values {
		dst := raw[i*w : (i+1)*w]
		if v == nil {
			if !s.cfg.SubstituteNulls {
				return nil, errs.New(errs.CodeNullNotAllowed, "value %d is null", i)
			}
			switch {
			case i > 0:
				copy(dst, raw[(i-1)*w:i*w])
			case c != nil && c.Count() > 0:
				if err := c.Get(c.Count()-1, dst); err != nil {
					return nil, err
				}
			}
			continue
		}
		if k == kind.Varchar {
			if err := s.encodeCode(dst, v); err != nil {
				return nil, err
			}
			continue
		}
		if err := kind.Encode(dst, k, w, v); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// encodeCode stores a dictionary code, interning text through the
// dictionary first.
func (s *Store) encodeCode(dst []byte, v any) error {
	d := s.opts.dictionary
	if text, ok := v.(string); ok {
		if d == nil {
			return errs.Mismatch("varchar text needs a dictionary")
		}
		code, err := d.Intern(text)
		if err != nil {
			return err
		}
		v = code
	}
	if err := kind.Encode(dst, kind.Varchar, len(dst), v); err != nil {
		return err
	}
	code := kind.Decode(dst, kind.Varchar).(int32)
	if code < 0 {
		return errs.New(errs.CodeDictionaryFull, "code %d is out of range", uint32(code))
	}
	if limit := s.cfg.DictionaryCapacity; limit > 0 && int64(code) >= limit {
		return errs.New(errs.CodeDictionaryFull, "code %d exceeds capacity %d", code, limit)
	}
	if d != nil {
		if _, err := d.Resolve(code); err != nil {
			return errs.Wrap(err, errs.CodeDictionaryCodeNotFound, "code %d", code)
		}
	}
	return nil
}

// autoload consults the Loader when key is missing.
func (tx *Tx) autoload(ctx context.Context, key string) error {
	if !tx.s.cfg.Autoload || tx.s.opts.loader == nil {
		return nil
	}
	var present bool
	_ = tx.read(func() error {
		_, present = tx.s.columns[key]
		return nil
	})
	if present {
		return nil
	}
	if tx.locked && !tx.writable {
		return errs.New(errs.CodeColumnNotFound, "%q: autoload needs an update transaction", key)
	}

	spec, values, err := tx.s.opts.loader.Load(ctx, key)
	if err != nil {
		return errs.Wrap(err, errs.CodeColumnNotFound, "autoload %q", key)
	}
	err = tx.write(func() error {
		if _, ok := tx.s.columns[key]; ok {
			return nil
		}
		return tx.appendLocked(key, spec, values)
	})
	tx.log.LogAppend(ctx, key, len(values), err)
	return err
}

// resolve normalizes a position range; negative positions count from the
// end, -1 being the last element.
func resolve(n, from, till int64) (int64, int64) {
	if from < 0 {
		from += n
	}
	if till < 0 {
		till += n
	}
	return from, till
}

// Subsequence returns a random-access iterator over positions [from, till]
// of key. Negative positions count from the end.
func (tx *Tx) Subsequence(ctx context.Context, key string, from, till int64) (iterator.Iterator, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	if err := tx.autoload(ctx, key); err != nil {
		return nil, columnError("subsequence", key, err)
	}
	var it iterator.Iterator
	err := tx.read(func() error {
		c, err := tx.s.column(key)
		if err != nil {
			return err
		}
		from, till := resolve(c.Count(), from, till)
		it, err = scan(tx.scope, c, from, till, tx.readLock())
		return err
	})
	return it, columnError("subsequence", key, err)
}

// Scan returns an iterator over the whole column key.
func (tx *Tx) Scan(ctx context.Context, key string) (iterator.Iterator, error) {
	return tx.Subsequence(ctx, key, 0, -1)
}

func scan(s *iterator.Scope, c *btree.Column, from, till int64, lock sync.Locker) (iterator.Iterator, error) {
	switch c.Kind().Phys() {
	case kind.PhysInt8:
		return leaf[int8](s, c, from, till, lock)
	case kind.PhysInt16:
		return leaf[int16](s, c, from, till, lock)
	case kind.PhysInt32:
		return leaf[int32](s, c, from, till, lock)
	case kind.PhysInt64:
		return leaf[int64](s, c, from, till, lock)
	case kind.PhysFloat32:
		return leaf[float32](s, c, from, till, lock)
	case kind.PhysFloat64:
		return leaf[float64](s, c, from, till, lock)
	case kind.PhysString:
		return leaf[string](s, c, from, till, lock)
	}
	return nil, errs.Unsupported(c.Kind(), "scan")
}

func leaf[T kind.Elem](s *iterator.Scope, c *btree.Column, from, till int64, lock sync.Locker) (iterator.Iterator, error) {
	r, err := btree.NewReader[T](c, from, till, lock)
	if err != nil {
		return nil, err
	}
	return iterator.FromSource[T](s, c.Kind(), c.Width(), r)
}

// Search returns the positions [from, till] of the temporal column key
// whose values lie between low and high, at most limit of them when
// limit > 0. An empty result has till == from-1.
func (tx *Tx) Search(ctx context.Context, key string, low, high Bound, limit int64) (int64, int64, error) {
	if err := tx.check(false); err != nil {
		return 0, 0, err
	}
	if err := tx.autoload(ctx, key); err != nil {
		return 0, 0, columnError("search", key, err)
	}
	var from, till int64
	err := tx.read(func() error {
		c, err := tx.s.column(key)
		if err != nil {
			return err
		}
		from, till, err = c.Search(low, high, limit)
		return translateError(err)
	})
	return from, till, columnError("search", key, err)
}

// Delete removes positions [from, till] of key. Negative positions count
// from the end.
func (tx *Tx) Delete(ctx context.Context, key string, from, till int64) error {
	if err := tx.check(true); err != nil {
		return err
	}
	start := time.Now()
	var n int64
	err := tx.write(func() error {
		c, err := tx.s.column(key)
		if err != nil {
			return err
		}
		from, till = resolve(c.Count(), from, till)
		if err := c.Delete(from, till); err != nil {
			return translateError(err)
		}
		n = till - from + 1
		tx.dirty = true
		return nil
	})
	err = columnError("delete", key, err)

	tx.s.metrics.RecordDelete(n, time.Since(start), err)
	tx.log.LogDelete(ctx, key, from, till, err)
	return err
}

// Truncate removes every element of key and returns its pages to the free
// list. The column keeps its kind and width.
func (tx *Tx) Truncate(ctx context.Context, key string) error {
	if err := tx.check(true); err != nil {
		return err
	}
	start := time.Now()
	var n int64
	err := tx.write(func() error {
		c, err := tx.s.column(key)
		if err != nil {
			return err
		}
		n = c.Count()
		tx.dirty = true
		return translateError(c.Truncate())
	})
	err = columnError("truncate", key, err)

	tx.s.metrics.RecordDelete(n, time.Since(start), err)
	tx.log.LogDelete(ctx, key, 0, -1, err)
	return err
}

// DeleteAll destroys every column.
func (tx *Tx) DeleteAll(ctx context.Context) error {
	if err := tx.check(true); err != nil {
		return err
	}
	start := time.Now()
	var n int64
	err := tx.write(func() error {
		tx.dirty = true
		return tx.s.dropAllLocked(&n)
	})
	tx.s.metrics.RecordDelete(n, time.Since(start), err)
	tx.log.LogDelete(ctx, "*", 0, -1, err)
	return err
}

func (s *Store) dropAllLocked(n *int64) error {
	for _, key := range s.keys() {
		c := s.columns[key]
		*n += c.Count()
		if err := c.Truncate(); err != nil {
			return columnError("truncate", key, translateError(err))
		}
		delete(s.columns, key)
	}
	return nil
}

// Count returns the number of elements of key.
func (tx *Tx) Count(ctx context.Context, key string) (int64, error) {
	if err := tx.check(false); err != nil {
		return 0, err
	}
	if err := tx.autoload(ctx, key); err != nil {
		return 0, columnError("count", key, err)
	}
	var n int64
	err := tx.read(func() error {
		c, err := tx.s.column(key)
		if err != nil {
			return err
		}
		n = c.Count()
		return nil
	})
	return n, columnError("count", key, err)
}

// Columns lists the stored columns sorted by key.
func (tx *Tx) Columns() ([]ColumnInfo, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	var out []ColumnInfo
	err := tx.read(func() error {
		for _, key := range tx.s.keys() {
			m := tx.s.columns[key].Meta()
			out = append(out, ColumnInfo{Key: key, Kind: m.Kind, Width: m.Width, Temporal: m.Temporal, Count: m.Count})
		}
		return nil
	})
	return out, err
}

// Parallel wraps root so that its first pull evaluates it on the store's
// worker pool. Trees that cannot be split are returned unchanged and
// evaluate single-threaded.
func (tx *Tx) Parallel(ctx context.Context, root iterator.Iterator) (iterator.Iterator, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	pool, err := tx.s.workerPool()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, plan, err := parallel.Split(ctx, pool, root)

	tx.s.metrics.RecordParallel(plan.Partitions, time.Since(start), err)
	tx.log.LogParallel(ctx, plan.Interval, plan.Partitions, err)
	return out, err
}
