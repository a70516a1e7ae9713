// Package kind defines the closed set of element kinds a column or an
// operator node can carry, together with their storage widths, the implicit
// cast rank and the semantic conversions between them.
//
// Every kind maps onto one Go physical type. Operators are written once per
// physical type and instantiated by switching on Kind.Phys:
//
//	Int8                      -> int8
//	Int16                     -> int16
//	Int32, Date, Varchar      -> int32
//	Int64, Time, Timestamp,
//	Money                     -> int64
//	Float                     -> float32
//	Double                    -> float64
//	Char                      -> string (fixed width, zero padded on disk)
package kind

import (
	"fmt"
	"strings"

	"github.com/hupe1980/imcs/internal/errs"
)

// Kind is the runtime element-kind discriminant carried by columns and nodes.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Int16
	Int32
	Date
	Int64
	Time
	Timestamp
	Money
	Float
	Double
	Char
	Varchar
)

// Phys is the Go physical representation of a kind.
type Phys uint8

const (
	PhysInvalid Phys = iota
	PhysInt8
	PhysInt16
	PhysInt32
	PhysInt64
	PhysFloat32
	PhysFloat64
	PhysString
)

const (
	// MicrosPerDay converts between Date (days) and Timestamp (microseconds).
	MicrosPerDay int64 = 86_400_000_000
	// MoneyScale is the number of money units per currency unit.
	MoneyScale = 100
)

type info struct {
	name  string
	phys  Phys
	width int
	rank  int
}

var infos = [...]info{
	Invalid:   {"invalid", PhysInvalid, 0, -1},
	Int8:      {"int1", PhysInt8, 1, 0},
	Int16:     {"int2", PhysInt16, 2, 1},
	Int32:     {"int4", PhysInt32, 4, 2},
	Date:      {"date", PhysInt32, 4, 3},
	Int64:     {"int8", PhysInt64, 8, 4},
	Time:      {"time", PhysInt64, 8, 5},
	Timestamp: {"timestamp", PhysInt64, 8, 6},
	Money:     {"money", PhysInt64, 8, 7},
	Float:     {"float4", PhysFloat32, 4, 8},
	Double:    {"float8", PhysFloat64, 8, 9},
	Char:      {"char", PhysString, 0, -1},
	Varchar:   {"varchar", PhysInt32, 4, -1},
}

func (k Kind) valid() bool { return k > Invalid && int(k) < len(infos) }

func (k Kind) String() string {
	if !k.valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return infos[k].name
}

// Phys returns the Go physical type used for k in tiles.
func (k Kind) Phys() Phys {
	if !k.valid() {
		return PhysInvalid
	}
	return infos[k].phys
}

// Width returns the fixed storage width of k in bytes, or 0 for Char whose
// width is a column attribute.
func (k Kind) Width() int {
	if !k.valid() {
		return 0
	}
	return infos[k].width
}

// Rank is the position of k in the implicit cast ordering, -1 if k never
// takes part in implicit casts.
func (k Kind) Rank() int {
	if !k.valid() {
		return -1
	}
	return infos[k].rank
}

// IsNumeric reports whether arithmetic is defined on k.
func (k Kind) IsNumeric() bool { return k.Rank() >= 0 }

// IsInteger reports whether k is stored as a plain integer quantity.
func (k Kind) IsInteger() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	}
	return false
}

// IsFloat reports whether k is a floating point kind.
func (k Kind) IsFloat() bool { return k == Float || k == Double }

// IsTemporal reports whether k encodes a point or span in time.
func (k Kind) IsTemporal() bool { return k == Date || k == Time || k == Timestamp }

// Ordered reports whether values of k can be compared.
func (k Kind) Ordered() bool { return k.valid() }

// Higher returns the kind both a and b are implicitly cast to, and false if
// no implicit cast exists between them.
func Higher(a, b Kind) (Kind, bool) {
	if a == b {
		return a, true
	}
	if a.Rank() < 0 || b.Rank() < 0 {
		return Invalid, false
	}
	if a.Rank() > b.Rank() {
		return a, true
	}
	return b, true
}

// SumKind is the result kind of a running or total sum over k.
func SumKind(k Kind) (Kind, error) {
	switch {
	case k.IsInteger():
		return Int64, nil
	case k == Money || k == Time:
		return k, nil
	case k.IsFloat():
		return Double, nil
	}
	return Invalid, errs.Unsupported(k, "sum")
}

var aliases = map[string]Kind{
	"int1":      Int8,
	"int8":      Int64,
	"tinyint":   Int8,
	"int2":      Int16,
	"smallint":  Int16,
	"int4":      Int32,
	"int":       Int32,
	"integer":   Int32,
	"bigint":    Int64,
	"date":      Date,
	"time":      Time,
	"timestamp": Timestamp,
	"money":     Money,
	"float4":    Float,
	"real":      Float,
	"float":     Float,
	"float8":    Double,
	"double":    Double,
	"char":      Char,
	"bpchar":    Char,
	"varchar":   Varchar,
	"text":      Varchar,
}

// Parse returns the kind named by s (SQL-style names are accepted).
func Parse(s string) (Kind, error) {
	if k, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return Invalid, errs.New(errs.CodeSyntaxError, "unknown element kind %q", s)
}
