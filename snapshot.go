package imcs

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/imcs/blobstore"
	"github.com/hupe1980/imcs/internal/btree"
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/hash"
	"github.com/hupe1980/imcs/internal/wire"
	"github.com/hupe1980/imcs/kind"
)

// Snapshot layout, big endian:
//
//	[8 magic][u32 columns]
//	per column: [u16 key len][key][u8 flags][u8 compression][u32 raw len][u32 block len][block]
//	[u32 crc32c of everything before]
//
// A block is one column in the wire format, compressed when that helps.
var snapshotMagic = [8]byte{'I', 'M', 'C', 'S', 'S', 'N', 'P', '1'}

const (
	flagTemporal = 1 << 0

	// restoreBatch is the number of elements appended per page walk on restore.
	restoreBatch = 4096
)

// Snapshot writes every column to bs under name. It holds the store lock
// shared while encoding.
func (s *Store) Snapshot(ctx context.Context, bs blobstore.BlobStore, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()

	s.mu.RLock()
	data, columns, err := s.encodeSnapshot()
	s.mu.RUnlock()

	if err == nil {
		err = writeBlob(ctx, bs, name, data)
	}
	err = translateError(err)

	s.metrics.RecordSnapshot(int64(len(data)), time.Since(start), err)
	s.logger.LogSnapshot(ctx, name, columns, err)
	return err
}

func writeBlob(ctx context.Context, bs blobstore.BlobStore, name string, data []byte) error {
	w, err := bs.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = blobstore.Abort(w)
		return err
	}
	if err := w.Sync(); err != nil {
		_ = blobstore.Abort(w)
		return err
	}
	return w.Close()
}

func (s *Store) encodeSnapshot() ([]byte, int, error) {
	var out bytes.Buffer
	out.Write(snapshotMagic[:])
	keys := s.keys()
	out.Write(binary.BigEndian.AppendUint32(nil, uint32(len(keys))))

	var block bytes.Buffer
	for _, key := range keys {
		c := s.columns[key]
		block.Reset()
		if err := s.encodeColumn(&block, c); err != nil {
			return nil, 0, columnError("snapshot", key, err)
		}
		comp, stored, err := wire.Compress(wire.CompressionZSTD, block.Bytes(), block.Len())
		if err != nil {
			return nil, 0, columnError("snapshot", key, err)
		}

		var flags byte
		if c.Meta().Temporal {
			flags |= flagTemporal
		}
		hdr := binary.BigEndian.AppendUint16(nil, uint16(len(key)))
		hdr = append(hdr, key...)
		hdr = append(hdr, flags, byte(comp))
		hdr = binary.BigEndian.AppendUint32(hdr, uint32(block.Len()))
		hdr = binary.BigEndian.AppendUint32(hdr, uint32(len(stored)))
		out.Write(hdr)
		out.Write(stored)
	}
	out.Write(binary.BigEndian.AppendUint32(nil, hash.CRC32C(out.Bytes())))
	return out.Bytes(), len(keys), nil
}

func (s *Store) encodeColumn(w io.Writer, c *btree.Column) error {
	var res wire.Resolver
	if c.Kind() == kind.Varchar {
		if s.opts.dictionary == nil {
			return errs.Invalid("varchar column needs a dictionary")
		}
		res = s.opts.dictionary
	}
	enc, err := wire.NewEncoder(w, wire.Header{
		Width: uint16(c.Width()),
		Kind:  c.Kind(),
		Count: uint64(c.Count()),
	}, res)
	if err != nil {
		return err
	}
	width := c.Width()
	err = c.Walk(func(raw []byte) error {
		for off := 0; off < len(raw); off += width {
			if err := enc.WriteElem(raw[off : off+width]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return enc.Close()
}

// Restore replaces every column with the content of the snapshot name in
// bs. It holds the store lock exclusively; a failed restore leaves the
// columns decoded so far.
func (s *Store) Restore(ctx context.Context, bs blobstore.BlobStore, name string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()

	data, err := blobstore.ReadAll(ctx, bs, name)
	var columns int
	if err == nil {
		s.mu.Lock()
		columns, err = s.restoreLocked(data)
		if err == nil && s.cfg.Durable {
			err = s.flushLocked(ctx)
		}
		s.mu.Unlock()
	}
	err = translateError(err)

	s.metrics.RecordSnapshot(int64(len(data)), time.Since(start), err)
	s.logger.LogRestore(ctx, name, columns, err)
	return err
}

func (s *Store) restoreLocked(data []byte) (int, error) {
	if len(data) < len(snapshotMagic)+8 || !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic[:]) {
		return 0, fmt.Errorf("%w: not a snapshot", ErrCorrupt)
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if hash.CRC32C(body) != binary.BigEndian.Uint32(trailer) {
		return 0, fmt.Errorf("%w: snapshot checksum mismatch", ErrCorrupt)
	}

	r := &snapshotReader{b: body[len(snapshotMagic):]}
	n := int(r.u32())

	var dropped int64
	if err := s.dropAllLocked(&dropped); err != nil {
		return 0, err
	}
	for i := range n {
		key := string(r.bytes(int(r.u16())))
		flags := r.u8()
		comp := wire.Compression(r.u8())
		rawLen := r.u32()
		stored := r.bytes(int(r.u32()))
		if r.err != nil {
			return i, r.err
		}

		block := make([]byte, rawLen)
		if err := wire.Decompress(comp, stored, block); err != nil {
			return i, columnError("restore", key, err)
		}
		if err := s.decodeColumn(key, flags&flagTemporal != 0, block); err != nil {
			return i, columnError("restore", key, err)
		}
	}
	return n, nil
}

func (s *Store) decodeColumn(key string, temporal bool, block []byte) error {
	var in wire.Interner
	if s.opts.dictionary != nil {
		in = s.opts.dictionary
	}
	dec, err := wire.NewDecoder(bytes.NewReader(block), in)
	if err != nil {
		return err
	}
	h := dec.Header()
	c, err := btree.New(s.pager, key, h.Kind, int(h.Width), temporal)
	if err != nil {
		return err
	}
	s.columns[key] = c

	w := int(h.Width)
	buf := make([]byte, 0, restoreBatch*w)
	for dec.More() {
		buf = buf[:len(buf)+w]
		if err := dec.ReadElem(buf[len(buf)-w:]); err != nil {
			return err
		}
		if len(buf) == cap(buf) {
			if err := c.Append(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		return c.Append(buf)
	}
	return nil
}

// snapshotReader walks a snapshot body, remembering the first short read.
type snapshotReader struct {
	b   []byte
	err error
}

func (r *snapshotReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.b) {
		r.err = fmt.Errorf("%w: truncated snapshot", ErrCorrupt)
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *snapshotReader) u8() byte {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *snapshotReader) u16() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *snapshotReader) u32() uint32 {
	if b := r.bytes(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}
