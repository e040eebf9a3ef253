// Package output writes the transformed table to files.
package output

import (
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/salesetl/internal/table"
)

// Layouts used when rendering timestamps.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// FormatCell renders a cell for text output. Missing values render as "".
func FormatCell(col *table.Column, i int) string {
	switch val := col.Value(i).(type) {
	case pgtype.Text:
		if !val.Valid {
			return ""
		}
		return val.String

	case pgtype.Float8:
		if !val.Valid || math.IsNaN(val.Float64) || math.IsInf(val.Float64, 0) {
			return ""
		}
		return strconv.FormatFloat(val.Float64, 'f', -1, 64)

	case pgtype.Timestamp:
		if !val.Valid {
			return ""
		}
		return FormatTime(val.Time)

	case pgtype.Int4:
		if !val.Valid {
			return ""
		}
		return strconv.Itoa(int(val.Int32))

	default:
		return ""
	}
}

// FormatTime renders midnight as a bare date and anything else with seconds.
func FormatTime(t time.Time) string {
	h, m, s := t.Clock()
	if h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format(DateLayout)
	}
	return t.Format(DateTimeLayout)
}

// Header returns the column names of t.
func Header(t *table.Table) []string {
	return t.Names()
}

// Records renders every row of t as strings in column order.
func Records(t *table.Table) [][]string {
	cols := t.Columns()
	out := make([][]string, t.NumRows())
	for i := range out {
		record := make([]string, len(cols))
		for j, col := range cols {
			record[j] = FormatCell(col, i)
		}
		out[i] = record
	}
	return out
}
