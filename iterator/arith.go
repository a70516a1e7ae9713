package iterator

import (
	"math"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

type arithOp uint8

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opMod
)

var arithNames = [...]string{opAdd: "add", opSub: "sub", opMul: "mul", opDiv: "div", opMod: "mod"}

// Add returns a + b element-wise.
func Add(a, b Iterator) (Iterator, error) { return arithmetic(opAdd, a, b) }

// Sub returns a - b element-wise.
func Sub(a, b Iterator) (Iterator, error) { return arithmetic(opSub, a, b) }

// Mul returns a * b element-wise.
func Mul(a, b Iterator) (Iterator, error) { return arithmetic(opMul, a, b) }

// Div returns a / b element-wise. A zero divisor fails the Next that meets
// it with InvalidParameter.
func Div(a, b Iterator) (Iterator, error) { return arithmetic(opDiv, a, b) }

// Mod returns the remainder of a / b element-wise, with the sign of a.
func Mod(a, b Iterator) (Iterator, error) { return arithmetic(opMod, a, b) }

func arithmetic(op arithOp, a, b Iterator) (Iterator, error) {
	a, b, err := unify(a, b)
	if err != nil {
		return nil, err
	}
	k := a.Kind()
	switch k.Phys() {
	case kind.PhysInt8:
		return newMapper(k, 0, arithKernel[int8](op), a, b)
	case kind.PhysInt16:
		return newMapper(k, 0, arithKernel[int16](op), a, b)
	case kind.PhysInt32:
		if k == kind.Varchar {
			break
		}
		return newMapper(k, 0, arithKernel[int32](op), a, b)
	case kind.PhysInt64:
		return newMapper(k, 0, arithKernel[int64](op), a, b)
	case kind.PhysFloat32:
		return newMapper(k, 0, arithKernel[float32](op), a, b)
	case kind.PhysFloat64:
		return newMapper(k, 0, arithKernel[float64](op), a, b)
	}
	return nil, errs.Unsupported(k, arithNames[op])
}

func arithKernel[T numeric](op arithOp) func([]T, [][]T) error {
	switch op {
	case opAdd:
		return func(dst []T, args [][]T) error {
			a, b := args[0], args[1]
			for i := range dst {
				dst[i] = a[i] + b[i]
			}
			return nil
		}
	case opSub:
		return func(dst []T, args [][]T) error {
			a, b := args[0], args[1]
			for i := range dst {
				dst[i] = a[i] - b[i]
			}
			return nil
		}
	case opMul:
		return func(dst []T, args [][]T) error {
			a, b := args[0], args[1]
			for i := range dst {
				dst[i] = a[i] * b[i]
			}
			return nil
		}
	case opDiv:
		return func(dst []T, args [][]T) error {
			a, b := args[0], args[1]
			for i := range dst {
				if b[i] == 0 {
					return errs.Invalid("division by zero")
				}
				dst[i] = a[i] / b[i]
			}
			return nil
		}
	}
	float := isFloat[T]()
	return func(dst []T, args [][]T) error {
		a, b := args[0], args[1]
		for i := range dst {
			if b[i] == 0 {
				return errs.Invalid("division by zero")
			}
			if float {
				dst[i] = T(math.Mod(float64(a[i]), float64(b[i])))
			} else {
				dst[i] = T(int64(a[i]) % int64(b[i]))
			}
		}
		return nil
	}
}

func isFloat[T kind.Elem]() bool {
	p := kind.PhysOf[T]()
	return p == kind.PhysFloat32 || p == kind.PhysFloat64
}

// Neg returns -x.
func Neg(x Iterator) (Iterator, error) { return sign(x, false) }

// Abs returns |x|.
func Abs(x Iterator) (Iterator, error) { return sign(x, true) }

func sign(x Iterator, abs bool) (Iterator, error) {
	k := x.Kind()
	switch k.Phys() {
	case kind.PhysInt8:
		return newMapper(k, 0, signKernel[int8](abs), x)
	case kind.PhysInt16:
		return newMapper(k, 0, signKernel[int16](abs), x)
	case kind.PhysInt32:
		if k == kind.Varchar {
			break
		}
		return newMapper(k, 0, signKernel[int32](abs), x)
	case kind.PhysInt64:
		return newMapper(k, 0, signKernel[int64](abs), x)
	case kind.PhysFloat32:
		return newMapper(k, 0, signKernel[float32](abs), x)
	case kind.PhysFloat64:
		return newMapper(k, 0, signKernel[float64](abs), x)
	}
	if abs {
		return nil, errs.Unsupported(k, "abs")
	}
	return nil, errs.Unsupported(k, "neg")
}

func signKernel[T numeric](abs bool) func([]T, [][]T) error {
	return func(dst []T, args [][]T) error {
		for i, v := range args[0] {
			if !abs || v < 0 {
				v = -v
			}
			dst[i] = v
		}
		return nil
	}
}
