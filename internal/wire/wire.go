// Package wire implements the column wire format and block compression.
//
// A column travels as a header followed by its elements, all in network
// (big-endian) byte order:
//
//	[u16 width][u8 kind][u64 count] element*
//
// Fixed-width kinds write count elements of width bytes each. Varchar
// elements are dictionary codes in storage; on the wire each becomes
// [u32 len][bytes] resolved through a Resolver, and is interned back into a
// code through an Interner when decoded.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// HeaderSize is the encoded size of a Header.
const HeaderSize = 2 + 1 + 8

// maxText bounds a decoded varchar element.
const maxText = 1 << 24

// Header describes one encoded column.
type Header struct {
	Width uint16
	Kind  kind.Kind
	Count uint64
}

// Resolver maps a dictionary code to its text.
type Resolver interface {
	Resolve(code int32) (string, error)
}

// Interner maps text to a dictionary code.
type Interner interface {
	Intern(s string) (int32, error)
}

func (h Header) validate() error {
	if h.Kind == kind.Invalid || h.Kind.Phys() == kind.PhysInvalid {
		return errs.New(errs.CodeSyntaxError, "wire: unknown kind %d", uint8(h.Kind))
	}
	switch h.Kind {
	case kind.Char:
		if h.Width == 0 {
			return errs.New(errs.CodeSyntaxError, "wire: char without width")
		}
	case kind.Varchar:
		if h.Width != 2 && h.Width != 4 {
			return errs.New(errs.CodeSyntaxError, "wire: varchar code width %d", h.Width)
		}
	default:
		if int(h.Width) != h.Kind.Width() {
			return errs.New(errs.CodeSyntaxError, "wire: width %d does not match %s", h.Width, h.Kind)
		}
	}
	return nil
}

// Encoder writes one column.
type Encoder struct {
	w       *bufio.Writer
	h       Header
	res     Resolver
	written uint64
	buf     [8]byte
}

// NewEncoder writes the header and returns an encoder for its elements.
// res is required for varchar columns.
func NewEncoder(w io.Writer, h Header, res Resolver) (*Encoder, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if h.Kind == kind.Varchar && res == nil {
		return nil, errs.Invalid("wire: varchar column needs a resolver")
	}
	e := &Encoder{w: bufio.NewWriter(w), h: h, res: res}
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint16(hdr[0:], h.Width)
	hdr[2] = byte(h.Kind)
	binary.BigEndian.PutUint64(hdr[3:], h.Count)
	if _, err := e.w.Write(hdr[:]); err != nil {
		return nil, err
	}
	return e, nil
}

// WriteElem writes one element given in its little-endian storage form.
func (e *Encoder) WriteElem(elem []byte) error {
	if e.written == e.h.Count {
		return errs.Invalid("wire: more than %d elements", e.h.Count)
	}
	e.written++

	switch {
	case e.h.Kind == kind.Char:
		_, err := e.w.Write(elem)
		return err
	case e.h.Kind == kind.Varchar:
		code, ok := kind.Decode(elem, kind.Varchar).(int32)
		if !ok {
			return errs.Mismatch("wire: bad varchar element")
		}
		s, err := e.res.Resolve(code)
		if err != nil {
			return err
		}
		binary.BigEndian.PutUint32(e.buf[:4], uint32(len(s)))
		if _, err := e.w.Write(e.buf[:4]); err != nil {
			return err
		}
		_, err = e.w.WriteString(s)
		return err
	}
	n := len(elem)
	for i := range n {
		e.buf[i] = elem[n-1-i]
	}
	_, err := e.w.Write(e.buf[:n])
	return err
}

// Close checks the element count and flushes buffered output.
func (e *Encoder) Close() error {
	if e.written != e.h.Count {
		return errs.Invalid("wire: wrote %d of %d elements", e.written, e.h.Count)
	}
	return e.w.Flush()
}

// Decoder reads one column.
type Decoder struct {
	r    io.Reader
	h    Header
	in   Interner
	read uint64
	buf  []byte
}

// NewDecoder reads and validates a header. in is required for varchar.
// r should be buffered; the decoder reads it in element-sized pieces.
func NewDecoder(r io.Reader, in Interner) (*Decoder, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	h := Header{
		Width: binary.BigEndian.Uint16(hdr[0:]),
		Kind:  kind.Kind(hdr[2]),
		Count: binary.BigEndian.Uint64(hdr[3:]),
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	if h.Kind == kind.Varchar && in == nil {
		return nil, errs.Invalid("wire: varchar column needs an interner")
	}
	return &Decoder{r: r, h: h, in: in, buf: make([]byte, max(8, int(h.Width)))}, nil
}

// Header returns the decoded header.
func (d *Decoder) Header() Header { return d.h }

// More reports whether elements remain.
func (d *Decoder) More() bool { return d.read < d.h.Count }

// ReadElem decodes the next element into dst in little-endian storage form.
// dst must be Header().Width bytes long.
func (d *Decoder) ReadElem(dst []byte) error {
	if !d.More() {
		return io.EOF
	}
	d.read++

	switch d.h.Kind {
	case kind.Char:
		_, err := io.ReadFull(d.r, dst)
		return unexpected(err)
	case kind.Varchar:
		if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
			return unexpected(err)
		}
		n := binary.BigEndian.Uint32(d.buf[:4])
		if n > maxText {
			return errs.New(errs.CodeStringTooLong, "wire: text of %d bytes", n)
		}
		text := make([]byte, n)
		if _, err := io.ReadFull(d.r, text); err != nil {
			return unexpected(err)
		}
		code, err := d.in.Intern(string(text))
		if err != nil {
			return err
		}
		if len(dst) == 2 && code > math.MaxUint16 {
			return errs.New(errs.CodeDictionaryFull, "code %d does not fit 16-bit codes", code)
		}
		return kind.Encode(dst, kind.Varchar, len(dst), code)
	}
	n := len(dst)
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		return unexpected(err)
	}
	for i := range n {
		dst[i] = d.buf[n-1-i]
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
