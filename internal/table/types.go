// Package table provides the in-memory tabular model passed between the
// pipeline stages.
//
// A Table is column-oriented. Every column carries a FieldType and a slice of
// nullable pgtype values, so a cell that failed to parse is simply a value
// with Valid=false and flows through arithmetic, CSV rendering and database
// loading as NULL without sentinel checks.
package table

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// FieldType represents the data type held by a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldTimestamp
	FieldInteger
)

// String returns the lowercase name of the field type.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldNumeric:
		return "numeric"
	case FieldTimestamp:
		return "timestamp"
	case FieldInteger:
		return "integer"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// FieldSpec names a column the transform stage knows how to coerce.
type FieldSpec struct {
	Name string    // Normalized column name
	Type FieldType // Target type after coercion
}

var (
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column")

	// ErrLengthMismatch is returned when a column's length differs from the table's row count.
	ErrLengthMismatch = errors.New("column length mismatch")
)

// Column is a named, typed sequence of nullable cells.
// Exactly one of the value slices is populated, selected by Type.
type Column struct {
	Name string
	Type FieldType

	Text      []pgtype.Text
	Numeric   []pgtype.Float8
	Timestamp []pgtype.Timestamp
	Integer   []pgtype.Int4
}

// NewTextColumn creates a text column.
func NewTextColumn(name string, values []pgtype.Text) *Column {
	return &Column{Name: name, Type: FieldText, Text: values}
}

// NewNumericColumn creates a floating point column.
func NewNumericColumn(name string, values []pgtype.Float8) *Column {
	return &Column{Name: name, Type: FieldNumeric, Numeric: values}
}

// NewTimestampColumn creates a temporal column.
func NewTimestampColumn(name string, values []pgtype.Timestamp) *Column {
	return &Column{Name: name, Type: FieldTimestamp, Timestamp: values}
}

// NewIntegerColumn creates an integer column.
func NewIntegerColumn(name string, values []pgtype.Int4) *Column {
	return &Column{Name: name, Type: FieldInteger, Integer: values}
}
