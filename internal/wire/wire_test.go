package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

type dict struct {
	codes map[string]int32
	texts []string
}

func (d *dict) Resolve(code int32) (string, error) {
	if int(code) >= len(d.texts) {
		return "", errs.ErrDictionaryCodeNotFound
	}
	return d.texts[code], nil
}

func (d *dict) Intern(s string) (int32, error) {
	if c, ok := d.codes[s]; ok {
		return c, nil
	}
	if d.codes == nil {
		d.codes = map[string]int32{}
	}
	c := int32(len(d.texts))
	d.codes[s] = c
	d.texts = append(d.texts, s)
	return c, nil
}

func elem(t *testing.T, k kind.Kind, width int, v any) []byte {
	t.Helper()
	b := make([]byte, kind.ElemWidth(k, width))
	require.NoError(t, kind.Encode(b, k, width, v))
	return b
}

func TestHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, Header{Width: 4, Kind: kind.Int32, Count: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, enc.WriteElem(elem(t, kind.Int32, 0, 1)))
	require.NoError(t, enc.WriteElem(elem(t, kind.Int32, 0, 0x01020304)))
	require.NoError(t, enc.Close())

	want := []byte{
		0x00, 0x04, // width
		byte(kind.Int32),
		0, 0, 0, 0, 0, 0, 0, 2, // count
		0, 0, 0, 1,
		1, 2, 3, 4,
	}
	assert.Equal(t, want, buf.Bytes())
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		k      kind.Kind
		width  int
		values []any
	}{
		{"int8", kind.Int8, 1, []any{int8(-1), int8(7)}},
		{"int64", kind.Int64, 8, []any{int64(-5), int64(1 << 40)}},
		{"double", kind.Double, 8, []any{1.5, -0.25}},
		{"float", kind.Float, 4, []any{float32(3.5)}},
		{"money", kind.Money, 8, []any{int64(1999)}},
		{"char", kind.Char, 6, []any{"ab", "abcdef", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc, err := NewEncoder(&buf, Header{Width: uint16(tt.width), Kind: tt.k, Count: uint64(len(tt.values))}, nil)
			require.NoError(t, err)
			for _, v := range tt.values {
				require.NoError(t, enc.WriteElem(elem(t, tt.k, tt.width, v)))
			}
			require.NoError(t, enc.Close())

			dec, err := NewDecoder(&buf, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.k, dec.Header().Kind)

			dst := make([]byte, tt.width)
			for _, v := range tt.values {
				require.NoError(t, dec.ReadElem(dst))
				assert.Equal(t, kind.Decode(elem(t, tt.k, tt.width, v), tt.k), kind.Decode(dst, tt.k))
			}
			assert.False(t, dec.More())
			assert.Equal(t, io.EOF, dec.ReadElem(dst))
		})
	}
}

func TestVarchar(t *testing.T) {
	src := &dict{}
	a, _ := src.Intern("alpha")
	b, _ := src.Intern("be")

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, Header{Width: 2, Kind: kind.Varchar, Count: 3}, src)
	require.NoError(t, err)
	for _, c := range []int32{b, a, b} {
		require.NoError(t, enc.WriteElem(elem(t, kind.Varchar, 2, c)))
	}
	require.NoError(t, enc.Close())
	assert.Equal(t, HeaderSize+3*4+2+5+2, buf.Len())

	dst := &dict{}
	dec, err := NewDecoder(&buf, dst)
	require.NoError(t, err)
	code := make([]byte, 2)
	var got []string
	for dec.More() {
		require.NoError(t, dec.ReadElem(code))
		s, err := dst.Resolve(kind.Decode(code, kind.Varchar).(int32))
		require.NoError(t, err)
		got = append(got, s)
	}
	assert.Equal(t, []string{"be", "alpha", "be"}, got)
}

func TestMalformed(t *testing.T) {
	_, err := NewDecoder(bytes.NewReader([]byte{0, 4, 99, 0, 0, 0, 0, 0, 0, 0, 1}), nil)
	assert.ErrorIs(t, err, errs.ErrSyntaxError)

	_, err = NewDecoder(bytes.NewReader([]byte{0, 3, byte(kind.Int32), 0, 0, 0, 0, 0, 0, 0, 1}), nil)
	assert.ErrorIs(t, err, errs.ErrSyntaxError)

	dec, err := NewDecoder(bytes.NewReader([]byte{0, 4, byte(kind.Int32), 0, 0, 0, 0, 0, 0, 0, 1, 0, 0}), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, dec.ReadElem(make([]byte, 4)), io.ErrUnexpectedEOF)

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, Header{Width: 8, Kind: kind.Int64, Count: 2}, nil)
	require.NoError(t, err)
	require.NoError(t, enc.WriteElem(make([]byte, 8)))
	assert.ErrorIs(t, enc.Close(), errs.ErrInvalidParameter)
}

func TestCompression(t *testing.T) {
	src := bytes.Repeat([]byte("tile"), 1024)

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			used, out, err := Compress(c, src, len(src))
			require.NoError(t, err)
			assert.Equal(t, c, used)
			assert.Less(t, len(out), len(src))

			dst := make([]byte, len(src))
			require.NoError(t, Decompress(used, out, dst))
			assert.Equal(t, src, dst)

			assert.ErrorIs(t, Decompress(used, out[:len(out)/2], dst), ErrCorrupt)
		})
	}

	used, out, err := Compress(CompressionZSTD, []byte{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, used)
	assert.Equal(t, []byte{1, 2, 3}, out)

	c, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, CompressionZSTD, c)
	_, err = ParseCompression("brotli")
	assert.ErrorIs(t, err, errs.ErrSyntaxError)
}
