package imcs

import (
	"bufio"
	"context"
	"io"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/wire"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

// EncodeWire drains it and writes its elements to w as one column in the
// wire format. Varchar codes travel as text resolved through the store's
// dictionary.
func (tx *Tx) EncodeWire(ctx context.Context, w io.Writer, it iterator.Iterator) error {
	if err := tx.check(false); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	vals, err := iterator.DrainAll(it)
	if err == nil {
		err = tx.s.encodeWire(w, it.Kind(), wireWidth(it, vals, tx.s.cfg.CodeWidth), vals)
	}
	err = translateError(err)

	tx.log.LogWire(ctx, "encode", it.Kind(), len(vals), err)
	return err
}

// wireWidth is the element width of a drained iterator. Varchar without a
// width uses codeWidth; Char without one takes its longest value.
func wireWidth(it iterator.Iterator, vals []any, codeWidth int) int {
	k, w := it.Kind(), it.Width()
	switch {
	case k == kind.Varchar && w == 0:
		return codeWidth
	case k == kind.Char && w == 0:
		w = 1
		for _, v := range vals {
			w = max(w, len(v.(string)))
		}
		return w
	}
	return kind.ElemWidth(k, w)
}

func (s *Store) encodeWire(w io.Writer, k kind.Kind, width int, vals []any) error {
	var res wire.Resolver
	if k == kind.Varchar {
		if s.opts.dictionary == nil {
			return errs.Invalid("varchar column needs a dictionary")
		}
		res = s.opts.dictionary
	}
	enc, err := wire.NewEncoder(w, wire.Header{
		Width: uint16(width),
		Kind:  k,
		Count: uint64(len(vals)),
	}, res)
	if err != nil {
		return err
	}
	elem := make([]byte, width)
	for _, v := range vals {
		if err := kind.Encode(elem, k, width, v); err != nil {
			return err
		}
		if err := enc.WriteElem(elem); err != nil {
			return err
		}
	}
	return enc.Close()
}

// DecodeWire reads one column in the wire format from r and returns a
// random-access leaf over its elements in the transaction's scope. Varchar
// text is interned through the store's dictionary.
func (tx *Tx) DecodeWire(ctx context.Context, r io.Reader) (iterator.Iterator, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var in wire.Interner
	if tx.s.opts.dictionary != nil {
		in = tx.s.opts.dictionary
	}

	var (
		it  iterator.Iterator
		n   int
		k   kind.Kind
		err error
	)
	dec, err := wire.NewDecoder(bufio.NewReader(r), in)
	if err == nil {
		h := dec.Header()
		k, n = h.Kind, int(h.Count)
		it, err = decodeLeaf(tx.scope, dec)
	}
	err = translateError(err)

	tx.log.LogWire(ctx, "decode", k, n, err)
	return it, err
}

func decodeLeaf(s *iterator.Scope, dec *wire.Decoder) (iterator.Iterator, error) {
	h := dec.Header()
	w := int(h.Width)
	var raw []byte
	for dec.More() {
		raw = append(raw, make([]byte, w)...)
		if err := dec.ReadElem(raw[len(raw)-w:]); err != nil {
			return nil, err
		}
	}
	switch h.Kind.Phys() {
	case kind.PhysInt8:
		return wireLeaf[int8](s, h, raw)
	case kind.PhysInt16:
		return wireLeaf[int16](s, h, raw)
	case kind.PhysInt32:
		return wireLeaf[int32](s, h, raw)
	case kind.PhysInt64:
		return wireLeaf[int64](s, h, raw)
	case kind.PhysFloat32:
		return wireLeaf[float32](s, h, raw)
	case kind.PhysFloat64:
		return wireLeaf[float64](s, h, raw)
	case kind.PhysString:
		return wireLeaf[string](s, h, raw)
	}
	return nil, errs.Unsupported(h.Kind, "wire decode")
}

func wireLeaf[T kind.Elem](s *iterator.Scope, h wire.Header, raw []byte) (iterator.Iterator, error) {
	vals := make([]T, h.Count)
	kind.DecodeInto(vals, raw, int(h.Width))
	return iterator.FromSource[T](s, h.Kind, int(h.Width), iterator.SliceSource[T](vals))
}
