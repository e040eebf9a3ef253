package table

import (
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgtype"
)

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Type {
	case FieldNumeric:
		return len(c.Numeric)
	case FieldTimestamp:
		return len(c.Timestamp)
	case FieldInteger:
		return len(c.Integer)
	default:
		return len(c.Text)
	}
}

// IsNull reports whether the i-th cell is missing.
func (c *Column) IsNull(i int) bool {
	switch c.Type {
	case FieldNumeric:
		return !c.Numeric[i].Valid
	case FieldTimestamp:
		return !c.Timestamp[i].Valid
	case FieldInteger:
		return !c.Integer[i].Valid
	default:
		return !c.Text[i].Valid
	}
}

// Value returns the i-th cell as its pgtype value.
// The result implements driver.Valuer and is accepted by pgx CopyFrom.
func (c *Column) Value(i int) any {
	switch c.Type {
	case FieldNumeric:
		return c.Numeric[i]
	case FieldTimestamp:
		return c.Timestamp[i]
	case FieldInteger:
		return c.Integer[i]
	default:
		return c.Text[i]
	}
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	return &Column{
		Name:      c.Name,
		Type:      c.Type,
		Text:      slices.Clone(c.Text),
		Numeric:   slices.Clone(c.Numeric),
		Timestamp: slices.Clone(c.Timestamp),
		Integer:   slices.Clone(c.Integer),
	}
}

// filter keeps the cells whose index is true in keep.
func (c *Column) filter(keep []bool) {
	switch c.Type {
	case FieldNumeric:
		c.Numeric = keepMasked(c.Numeric, keep)
	case FieldTimestamp:
		c.Timestamp = keepMasked(c.Timestamp, keep)
	case FieldInteger:
		c.Integer = keepMasked(c.Integer, keep)
	default:
		c.Text = keepMasked(c.Text, keep)
	}
}

func keepMasked[T pgtype.Text | pgtype.Float8 | pgtype.Timestamp | pgtype.Int4](values []T, keep []bool) []T {
	out := make([]T, 0, len(values))
	for i, v := range values {
		if keep[i] {
			out = append(out, v)
		}
	}
	return out
}

// Table is an ordered set of equal-length, uniquely named columns.
type Table struct {
	columns []*Column
	rows    int
}

// New builds a table from columns. All columns must have the same length
// and distinct names.
func New(columns ...*Column) (*Table, error) {
	t := &Table{}
	for _, col := range columns {
		if t.Has(col.Name) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
		}
		if err := t.Set(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return t.rows
}

// NumColumns returns the column count.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Columns returns the columns in order. Callers must not modify the slice.
func (t *Table) Columns() []*Column {
	return t.columns
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, col := range t.columns {
		if col.Name == name {
			return col, true
		}
	}
	return nil, false
}

// Has reports whether a column with the given name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Set replaces the column with the same name, or appends it when no such
// column exists.
func (t *Table) Set(col *Column) error {
	if len(t.columns) > 0 && col.Len() != t.rows {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrLengthMismatch, col.Name, col.Len(), t.rows)
	}
	if len(t.columns) == 0 {
		t.rows = col.Len()
	}
	for i, existing := range t.columns {
		if existing.Name == col.Name {
			t.columns[i] = col
			return nil
		}
	}
	t.columns = append(t.columns, col)
	return nil
}

// Rename assigns new names to all columns, in order.
// Returns ErrDuplicateColumn if two columns would share a name.
func (t *Table) Rename(names []string) error {
	if len(names) != len(t.columns) {
		return fmt.Errorf("rename: got %d names for %d columns", len(names), len(t.columns))
	}
	seen := make(map[string]int, len(names))
	for i, name := range names {
		if j, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q and %q both become %q", ErrDuplicateColumn, t.columns[j].Name, t.columns[i].Name, name)
		}
		seen[name] = i
	}
	for i, name := range names {
		t.columns[i].Name = name
	}
	return nil
}

// Filter keeps the rows whose index is true in keep.
func (t *Table) Filter(keep []bool) error {
	if len(keep) != t.rows {
		return fmt.Errorf("%w: filter mask has %d entries, table has %d rows", ErrLengthMismatch, len(keep), t.rows)
	}
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	for _, col := range t.columns {
		col.filter(keep)
	}
	t.rows = kept
	return nil
}

// Row returns the i-th row as pgtype values in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for j, col := range t.columns {
		row[j] = col.Value(i)
	}
	return row
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{rows: t.rows, columns: make([]*Column, len(t.columns))}
	for i, col := range t.columns {
		out.columns[i] = col.Clone()
	}
	return out
}
