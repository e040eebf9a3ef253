package table

// convert.go turns raw CSV strings into nullable cell values.
//
// Parsing is tolerant: anything that does not parse becomes a value with
// Valid=false rather than an error. Dates may be US, EU or ISO, with or
// without a time part. Numbers must be plain decimals; "$3", "1,234" and
// "(5)" are not numbers.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a plain decimal number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years more than this many years in the future are moved to the previous century.
var TwoDigitYearPivot = 20

var (
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "1-2-2006", "1.2.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02-Jan-2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "1-2-06", "1.2.06",
	}
)

// ToText converts a raw cell to pgtype.Text. Empty cells are missing;
// anything else, whitespace included, is kept verbatim.
func ToText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToTimestamp converts a raw cell to pgtype.Timestamp.
// A UTC offset is dropped and the wall clock kept, so the calendar date is
// the one written in the cell. Unparseable input yields Valid=false.
func ToTimestamp(s string) pgtype.Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamp{}
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamp{Time: wallClock(t), Valid: true}
		}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamp{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Timestamp{Time: t, Valid: true}
		}
	}

	return pgtype.Timestamp{}
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ToFloat8 converts a raw cell to pgtype.Float8. Only plain decimal numbers,
// optionally signed and in exponent form, are accepted; surrounding
// whitespace is ignored. Unparseable input yields Valid=false.
func ToFloat8(s string) pgtype.Float8 {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return pgtype.Float8{}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// TextValues converts raw cells to text values.
func TextValues(raw []string) []pgtype.Text {
	out := make([]pgtype.Text, len(raw))
	for i, s := range raw {
		out[i] = ToText(s)
	}
	return out
}

// CoerceNumeric returns a numeric copy of col. Text columns are parsed with
// ToFloat8; temporal columns become all-missing.
func CoerceNumeric(col *Column) *Column {
	switch col.Type {
	case FieldNumeric:
		return col.Clone()
	case FieldInteger:
		values := make([]pgtype.Float8, len(col.Integer))
		for i, v := range col.Integer {
			values[i] = pgtype.Float8{Float64: float64(v.Int32), Valid: v.Valid}
		}
		return NewNumericColumn(col.Name, values)
	case FieldText:
		values := make([]pgtype.Float8, len(col.Text))
		for i, v := range col.Text {
			if v.Valid {
				values[i] = ToFloat8(v.String)
			}
		}
		return NewNumericColumn(col.Name, values)
	default:
		return NewNumericColumn(col.Name, make([]pgtype.Float8, col.Len()))
	}
}

// CoerceTimestamp returns a temporal copy of col. Text columns are parsed
// with ToTimestamp; other non-temporal types become all-missing.
func CoerceTimestamp(col *Column) *Column {
	switch col.Type {
	case FieldTimestamp:
		return col.Clone()
	case FieldText:
		values := make([]pgtype.Timestamp, len(col.Text))
		for i, v := range col.Text {
			if v.Valid {
				values[i] = ToTimestamp(v.String)
			}
		}
		return NewTimestampColumn(col.Name, values)
	default:
		return NewTimestampColumn(col.Name, make([]pgtype.Timestamp, col.Len()))
	}
}
