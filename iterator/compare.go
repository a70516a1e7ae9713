package iterator

import (
	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

type cmpOp uint8

const (
	opEq cmpOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
)

var cmpNames = [...]string{opEq: "eq", opNe: "ne", opLt: "lt", opLe: "le", opGt: "gt", opGe: "ge"}

// Comparisons and logical operators produce int8 booleans (0 or 1).

// Eq returns a == b.
func Eq(a, b Iterator) (Iterator, error) { return compare(opEq, a, b) }

// Ne returns a != b.
func Ne(a, b Iterator) (Iterator, error) { return compare(opNe, a, b) }

// Lt returns a < b.
func Lt(a, b Iterator) (Iterator, error) { return compare(opLt, a, b) }

// Le returns a <= b.
func Le(a, b Iterator) (Iterator, error) { return compare(opLe, a, b) }

// Gt returns a > b.
func Gt(a, b Iterator) (Iterator, error) { return compare(opGt, a, b) }

// Ge returns a >= b.
func Ge(a, b Iterator) (Iterator, error) { return compare(opGe, a, b) }

func compare(op cmpOp, a, b Iterator) (Iterator, error) {
	a, b, err := unify(a, b)
	if err != nil {
		return nil, err
	}
	k := a.Kind()
	if k == kind.Varchar && op != opEq && op != opNe {
		// dictionary codes carry no order
		return nil, errs.Unsupported(k, cmpNames[op])
	}
	switch k.Phys() {
	case kind.PhysInt8:
		return newMapper(kind.Int8, 0, cmpKernel[int8](op), a, b)
	case kind.PhysInt16:
		return newMapper(kind.Int8, 0, cmpKernel[int16](op), a, b)
	case kind.PhysInt32:
		return newMapper(kind.Int8, 0, cmpKernel[int32](op), a, b)
	case kind.PhysInt64:
		return newMapper(kind.Int8, 0, cmpKernel[int64](op), a, b)
	case kind.PhysFloat32:
		return newMapper(kind.Int8, 0, cmpKernel[float32](op), a, b)
	case kind.PhysFloat64:
		return newMapper(kind.Int8, 0, cmpKernel[float64](op), a, b)
	case kind.PhysString:
		return newMapper(kind.Int8, 0, cmpKernel[string](op), a, b)
	}
	return nil, errs.Unsupported(k, cmpNames[op])
}

func cmpKernel[T ordered](op cmpOp) func([]int8, [][]T) error {
	var test func(a, b T) bool
	switch op {
	case opEq:
		test = func(a, b T) bool { return a == b }
	case opNe:
		test = func(a, b T) bool { return a != b }
	case opLt:
		test = func(a, b T) bool { return a < b }
	case opLe:
		test = func(a, b T) bool { return a <= b }
	case opGt:
		test = func(a, b T) bool { return a > b }
	default:
		test = func(a, b T) bool { return a >= b }
	}
	return func(dst []int8, args [][]T) error {
		a, b := args[0], args[1]
		for i := range dst {
			dst[i] = boolean(test(a[i], b[i]))
		}
		return nil
	}
}

func boolean(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func checkBool(x Iterator, op string) error {
	if x.Kind() != kind.Int8 {
		return errs.Mismatch("%s expects int1 booleans, got %s", op, x.Kind())
	}
	return nil
}

// Not returns the logical negation of an int1 boolean.
func Not(x Iterator) (Iterator, error) {
	if err := checkBool(x, "not"); err != nil {
		return nil, err
	}
	return newMapper(kind.Int8, 0, func(dst []int8, args [][]int8) error {
		for i, v := range args[0] {
			dst[i] = boolean(v == 0)
		}
		return nil
	}, x)
}

// And returns a && b.
func And(a, b Iterator) (Iterator, error) { return logical(a, b, true) }

// Or returns a || b.
func Or(a, b Iterator) (Iterator, error) { return logical(a, b, false) }

func logical(a, b Iterator, and bool) (Iterator, error) {
	for _, x := range []Iterator{a, b} {
		if err := checkBool(x, "logical operator"); err != nil {
			return nil, err
		}
	}
	return newMapper(kind.Int8, 0, func(dst []int8, args [][]int8) error {
		x, y := args[0], args[1]
		for i := range dst {
			if and {
				dst[i] = boolean(x[i] != 0 && y[i] != 0)
			} else {
				dst[i] = boolean(x[i] != 0 || y[i] != 0)
			}
		}
		return nil
	}, a, b)
}
