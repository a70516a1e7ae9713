package imcs

import (
	"context"
	"sort"
	"time"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

// ExportSlice copies the whole column key into a slice; index i holds
// position i. T must be the column's physical type.
func ExportSlice[T kind.Elem](ctx context.Context, tx *Tx, key string) ([]T, error) {
	it, err := tx.Scan(ctx, key)
	if err != nil {
		return nil, err
	}
	out, err := iterator.Drain[T](it)
	if err != nil {
		return nil, columnError("export", key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// ImportSlice appends values to the column key, creating it from spec.
func ImportSlice[T kind.Elem](ctx context.Context, tx *Tx, key string, spec ColumnSpec, values []T) error {
	if kind.PhysOf[T]() != spec.Kind.Phys() {
		return columnError("import", key, errs.Mismatch("%s column from %T values", spec.Kind, *new(T)))
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return tx.Append(ctx, key, spec, vals...)
}

// Triple is one row of a bulk load.
type Triple struct {
	Value     any
	Timestamp any // time.Time or microseconds since kind.Epoch
	ID        string
}

// timestampSpec is the column every bulk load writes timestamps to.
var timestampSpec = ColumnSpec{Kind: kind.Timestamp, Temporal: true}

// LoadTriples appends triples to <table>-<column>[-<id>] and their
// timestamps to <table>-timestamp[-<id>]. Unless sorted is set the triples
// are stably ordered by timestamp first. The whole load runs under one
// exclusive lock.
func (tx *Tx) LoadTriples(ctx context.Context, table, column string, spec ColumnSpec, triples []Triple, sorted bool) error {
	if err := tx.check(true); err != nil {
		return err
	}
	if table == "" || column == "" {
		return errs.New(errs.CodeSyntaxError, "bulk load needs a table and a column")
	}
	start := time.Now()

	stamps := make([]int64, len(triples))
	buf := make([]byte, 8)
	for i, t := range triples {
		if t.Timestamp == nil {
			return errs.New(errs.CodeNullNotAllowed, "triple %d has no timestamp", i)
		}
		if err := kind.Encode(buf, kind.Timestamp, 8, t.Timestamp); err != nil {
			return err
		}
		stamps[i] = kind.Decode(buf, kind.Timestamp).(int64)
	}
	order := make([]int, len(triples))
	for i := range order {
		order[i] = i
	}
	if !sorted {
		sort.SliceStable(order, func(a, b int) bool { return stamps[order[a]] < stamps[order[b]] })
	}

	// group by id, keeping first-seen order of ids
	type group struct {
		values []any
		stamps []any
	}
	var ids []string
	groups := make(map[string]*group)
	for _, i := range order {
		id := triples[i].ID
		g, ok := groups[id]
		if !ok {
			g = &group{}
			groups[id] = g
			ids = append(ids, id)
		}
		g.values = append(g.values, triples[i].Value)
		g.stamps = append(g.stamps, stamps[i])
	}

	err := tx.write(func() error {
		for _, id := range ids {
			g := groups[id]
			valueKey := ColumnKey{Table: table, Column: column, ID: id}.String()
			if err := tx.appendLocked(valueKey, spec, g.values); err != nil {
				return columnError("load", valueKey, err)
			}
			stampKey := ColumnKey{Table: table, Column: "timestamp", ID: id}.String()
			if err := tx.appendLocked(stampKey, timestampSpec, g.stamps); err != nil {
				return columnError("load", stampKey, err)
			}
		}
		return nil
	})

	tx.s.metrics.RecordAppend(len(triples), time.Since(start), err)
	tx.log.LogAppend(ctx, table+"-"+column, len(triples), err)
	return err
}
