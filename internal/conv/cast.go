package conv

import (
	"github.com/hupe1980/imcs/internal/errs"
)

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// To converts v to D and fails with errs.ErrInvalidParameter if the value
// does not survive the conversion.
func To[D, S Integer](v S) (D, error) {
	d := D(v)
	if S(d) != v || (v < 0) != (d < 0) {
		var zero D
		return zero, errs.Invalid("integer overflow: %d does not fit %T", v, zero)
	}
	return d, nil
}

// Must is To for values whose range is guaranteed by an earlier check; it
// panics on overflow.
func Must[D, S Integer](v S) D {
	d, err := To[D](v)
	if err != nil {
		panic(err)
	}
	return d
}
