package kind

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/hupe1980/imcs/internal/errs"
)

// Epoch is the origin of Date and Timestamp values (2000-01-01 UTC).
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// ElemWidth returns the storage width of one element of k. Char uses the
// column width; Varchar uses the dictionary code width (2 or 4).
func ElemWidth(k Kind, width int) int {
	if k == Char || k == Varchar {
		return width
	}
	return k.Width()
}

// Encode writes v as an element of kind k into dst, which must be exactly
// ElemWidth(k, width) bytes long. Multi-byte values are little endian.
//
// Money is stored as an int64 count of 1/MoneyScale currency units. Go
// integers are taken as that stored count unchanged, so a value drained
// from a money column encodes back to itself. Floats are currency units
// and are scaled by MoneyScale and rounded, the same as casting a double
// to money.
func Encode(dst []byte, k Kind, width int, v any) error {
	switch k.Phys() {
	case PhysString:
		s, err := asString(v)
		if err != nil {
			return err
		}
		if len(s) > len(dst) {
			return errs.New(errs.CodeStringTooLong, "%d bytes exceed width %d", len(s), len(dst))
		}
		n := copy(dst, s)
		clear(dst[n:])
		return nil
	case PhysFloat32, PhysFloat64:
		f, err := asFloat(k, v)
		if err != nil {
			return err
		}
		if k == Float {
			binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
		} else {
			binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
		}
		return nil
	}
	i, err := asInt(k, v)
	if err != nil {
		return err
	}
	if k == Varchar {
		limit := int64(math.MaxUint32)
		if len(dst) == 2 {
			limit = math.MaxUint16
		}
		if i < 0 || i > limit {
			return errs.New(errs.CodeDictionaryFull, "code %d does not fit %d-bit codes", i, len(dst)*8)
		}
	} else if lo, hi := intRange(k); i < lo || i > hi {
		return errs.Invalid("value %d out of range for %s", i, k)
	}
	putInt(dst, i)
	return nil
}

// Decode reads one element of kind k from src and returns it as its physical
// Go type (int8 ... float64, string).
func Decode(src []byte, k Kind) any {
	switch k.Phys() {
	case PhysInt8:
		return int8(src[0])
	case PhysInt16:
		return int16(binary.LittleEndian.Uint16(src))
	case PhysInt32:
		if k == Varchar {
			return int32(readUint(src))
		}
		return int32(binary.LittleEndian.Uint32(src))
	case PhysInt64:
		return int64(binary.LittleEndian.Uint64(src))
	case PhysFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(src))
	case PhysFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	case PhysString:
		return TrimChar(src)
	}
	return nil
}

// TrimChar strips the zero padding of a fixed-width text element.
func TrimChar(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func readUint(src []byte) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	}
	return binary.LittleEndian.Uint64(src)
}

func putInt(dst []byte, i int64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(i)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(i))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(i))
	default:
		binary.LittleEndian.PutUint64(dst, uint64(i))
	}
}

func intRange(k Kind) (int64, int64) {
	switch k.Phys() {
	case PhysInt8:
		return math.MinInt8, math.MaxInt8
	case PhysInt16:
		return math.MinInt16, math.MaxInt16
	case PhysInt32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return "", errs.Mismatch("%T is not a text value", v)
}

func asFloat(k Kind, v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	}
	i, err := asInt(k, v)
	return float64(i), err
}

// asInt converts v to the stored integer of k. Money integers are already
// scaled; see Encode.
func asInt(k Kind, v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if k == Money {
			return int64(math.Round(x * MoneyScale)), nil
		}
	case float32:
		if k == Money {
			return int64(math.Round(float64(x) * MoneyScale)), nil
		}
	case time.Time:
		switch k {
		case Timestamp:
			return x.Sub(Epoch).Microseconds(), nil
		case Date:
			return FloorDiv(x.Sub(Epoch).Microseconds(), MicrosPerDay), nil
		case Time:
			return FloorMod(x.Sub(Epoch).Microseconds(), MicrosPerDay), nil
		}
	case time.Duration:
		if k == Time || k == Int64 {
			return x.Microseconds(), nil
		}
	}
	return 0, errs.Mismatch("cannot store %T as %s", v, k)
}

// DecodeInto fills dst from consecutive storage elements of w bytes each.
func DecodeInto[T Elem](dst []T, raw []byte, w int) {
	switch d := any(dst).(type) {
	case []int8:
		for i := range d {
			d[i] = int8(raw[i])
		}
	case []int16:
		for i := range d {
			d[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case []int32:
		if w == 2 {
			// 16-bit dictionary codes
			for i := range d {
				d[i] = int32(binary.LittleEndian.Uint16(raw[i*2:]))
			}
			return
		}
		for i := range d {
			d[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case []int64:
		for i := range d {
			d[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case []string:
		for i := range d {
			d[i] = TrimChar(raw[i*w : (i+1)*w])
		}
	}
}

// PhysOf returns the physical type T stands for.
func PhysOf[T Elem]() Phys {
	var zero T
	switch any(zero).(type) {
	case int8:
		return PhysInt8
	case int16:
		return PhysInt16
	case int32:
		return PhysInt32
	case int64:
		return PhysInt64
	case float32:
		return PhysFloat32
	case float64:
		return PhysFloat64
	case string:
		return PhysString
	}
	return PhysInvalid
}
