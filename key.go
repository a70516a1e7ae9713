package imcs

import (
	"strings"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/kind"
)

// ColumnKey is the parsed form of a column key
// <table>-<column>[-<row-id>].
type ColumnKey struct {
	Table  string
	Column string
	ID     string // empty for a column of the whole table
}

// ParseColumnKey splits key into its parts.
func ParseColumnKey(key string) (ColumnKey, error) {
	parts := strings.Split(key, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return ColumnKey{}, errs.New(errs.CodeSyntaxError, "column key %q: want <table>-<column>[-<id>]", key)
	}
	for _, p := range parts {
		if p == "" {
			return ColumnKey{}, errs.New(errs.CodeSyntaxError, "column key %q has an empty part", key)
		}
	}
	k := ColumnKey{Table: parts[0], Column: parts[1]}
	if len(parts) == 3 {
		k.ID = parts[2]
	}
	return k, nil
}

func (k ColumnKey) String() string {
	if k.ID == "" {
		return k.Table + "-" + k.Column
	}
	return k.Table + "-" + k.Column + "-" + k.ID
}

// ColumnSpec describes the column an Append creates or must match.
type ColumnSpec struct {
	Kind kind.Kind
	// Width is the maximum text length of a char column. Other kinds
	// ignore it.
	Width int
	// Temporal marks a value-ordered column that supports Search.
	Temporal bool
}

// ColumnInfo describes a stored column.
type ColumnInfo struct {
	Key      string
	Kind     kind.Kind
	Width    int
	Temporal bool
	Count    int64
}
