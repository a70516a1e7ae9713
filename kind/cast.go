package kind

import "math"

// Number is the set of physical types arithmetic is defined on.
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// Integer is the integral subset of Number.
type Integer interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// Ordered is the set of physical types comparisons are defined on.
type Ordered interface {
	Number | ~string
}

// Elem is the exact set of Go types a tile can hold.
type Elem interface {
	int8 | int16 | int32 | int64 | float32 | float64 | string
}

// Converter returns the element conversion applied when a value of kind
// from is cast to kind to. Most pairs are plain numeric conversions; the
// temporal and money pairs rescale.
func Converter[S, D Number](from, to Kind) func(S) D {
	switch {
	case from == to:
		return func(s S) D { return D(s) }
	case from == Date && to == Timestamp:
		return func(s S) D { return D(int64(s) * MicrosPerDay) }
	case from == Date && to == Time:
		return func(S) D { return 0 }
	case from == Timestamp && to == Date:
		return func(s S) D { return D(FloorDiv(int64(s), MicrosPerDay)) }
	case from == Timestamp && to == Time:
		return func(s S) D { return D(FloorMod(int64(s), MicrosPerDay)) }
	case from == Money && to.IsFloat():
		return func(s S) D { return D(float64(s) / MoneyScale) }
	case from.IsFloat() && to == Money:
		return func(s S) D { return D(math.Round(float64(s) * MoneyScale)) }
	case from.IsFloat() && !to.IsFloat():
		return func(s S) D { return D(math.Round(float64(s))) }
	}
	return func(s S) D { return D(s) }
}

// FloorDiv divides rounding towards negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod is the non-negative remainder matching FloorDiv.
func FloorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
