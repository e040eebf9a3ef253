// Package transform cleans and enriches an extracted sales table.
//
// The steps run in a fixed order, each depending on the previous one:
//
//  1. Normalize column names (trim, lowercase, " -." to "_")
//  2. Resolve the order-date column from DateColumnAliases
//  3. Coerce the date column to timestamps (unparseable -> missing)
//  4. Coerce sales, profit, quantity and discount to numbers when present
//  5. Drop rows with a missing sales value when sales is present
//  6. Derive profit_margin = round(profit/sales, 2) when both are present
//  7. Derive order_year and order_month from the date column
//
// Coercion never fails: bad cells become missing values. The only failures
// are schema problems (no date column, colliding names), which abort the
// whole transform.
package transform

import (
	"math"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/table"
)

// Column names read or produced by the transform.
const (
	ColSales        = "sales"
	ColProfit       = "profit"
	ColQuantity     = "quantity"
	ColDiscount     = "discount"
	ColProfitMargin = "profit_margin"
	ColOrderYear    = "order_year"
	ColOrderMonth   = "order_month"
)

// MarginPlaces is the number of decimal places profit_margin is rounded to.
const MarginPlaces = 2

// NumericFields are coerced to numbers when present. Absent ones are skipped.
var NumericFields = []table.FieldSpec{
	{Name: ColSales, Type: table.FieldNumeric},
	{Name: ColProfit, Type: table.FieldNumeric},
	{Name: ColQuantity, Type: table.FieldNumeric},
	{Name: ColDiscount, Type: table.FieldNumeric},
}

// Transformer runs Apply and reports progress.
type Transformer struct {
	progress *progress.Reporter
}

// New creates a Transformer.
func New(p *progress.Reporter) *Transformer {
	return &Transformer{progress: p}
}

// Transform returns a cleaned copy of in. On failure no table is returned.
func (t *Transformer) Transform(in *table.Table) (*table.Table, error) {
	t.progress.Info("Starting data transformation")

	out, err := Apply(in)
	if err != nil {
		t.progress.Error("Data transformation failed: %v", err)
		return nil, err
	}

	t.progress.Info("Data transformation completed. Rows: %d", out.NumRows())
	return out, nil
}

// Apply runs the transformation steps on a copy of in. in is not modified.
func Apply(in *table.Table) (*table.Table, error) {
	out := in.Clone()

	if err := out.Rename(NormalizeColumnNames(out.Names())); err != nil {
		return nil, etl.Wrap(etl.StageTransform, etl.ErrSchema, err)
	}

	dateName, err := ResolveDateColumn(out.Names())
	if err != nil {
		return nil, err
	}

	dateCol, _ := out.Column(dateName)
	dates := table.CoerceTimestamp(dateCol)
	if err := out.Set(dates); err != nil {
		return nil, etl.Wrap(etl.StageTransform, etl.ErrSchema, err)
	}

	for _, spec := range NumericFields {
		col, ok := out.Column(spec.Name)
		if !ok {
			continue
		}
		if err := out.Set(table.CoerceNumeric(col)); err != nil {
			return nil, etl.Wrap(etl.StageTransform, etl.ErrSchema, err)
		}
	}

	if sales, ok := out.Column(ColSales); ok {
		keep := make([]bool, sales.Len())
		for i := range keep {
			keep[i] = !sales.IsNull(i)
		}
		if err := out.Filter(keep); err != nil {
			return nil, etl.Wrap(etl.StageTransform, etl.ErrSchema, err)
		}
	}

	sales, hasSales := out.Column(ColSales)
	profit, hasProfit := out.Column(ColProfit)
	if hasSales && hasProfit {
		if err := out.Set(profitMarginColumn(profit, sales)); err != nil {
			return nil, etl.Wrap(etl.StageTransform, etl.ErrSchema, err)
		}
	}

	// Re-fetch: filtering replaced the date cells
	dates, _ = out.Column(dateName)
	year, month := calendarColumns(dates)
	for _, col := range []*table.Column{year, month} {
		if err := out.Set(col); err != nil {
			return nil, etl.Wrap(etl.StageTransform, etl.ErrSchema, err)
		}
	}

	return out, nil
}

func profitMarginColumn(profit, sales *table.Column) *table.Column {
	values := make([]pgtype.Float8, sales.Len())
	for i := range values {
		values[i] = ProfitMargin(profit.Numeric[i], sales.Numeric[i])
	}
	return table.NewNumericColumn(ColProfitMargin, values)
}

// ProfitMargin returns profit/sales rounded half-to-even to MarginPlaces.
// The float64 quotient is scaled before rounding, so 2.85/10, which is
// 0.28500000000000003, becomes 0.29 while 1/8 becomes 0.12.
// The result is missing when either input is missing or sales is zero.
func ProfitMargin(profit, sales pgtype.Float8) pgtype.Float8 {
	if !profit.Valid || !sales.Valid || sales.Float64 == 0 {
		return pgtype.Float8{}
	}
	if !isFinite(profit.Float64) || !isFinite(sales.Float64) {
		return pgtype.Float8{}
	}

	scaled := profit.Float64 / sales.Float64 * math.Pow10(MarginPlaces)
	if !isFinite(scaled) {
		return pgtype.Float8{}
	}
	m := decimal.NewFromFloat(scaled).RoundBank(0).Shift(-MarginPlaces)
	return pgtype.Float8{Float64: m.InexactFloat64(), Valid: true}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func calendarColumns(dates *table.Column) (year, month *table.Column) {
	years := make([]pgtype.Int4, dates.Len())
	months := make([]pgtype.Int4, dates.Len())
	for i, ts := range dates.Timestamp {
		if !ts.Valid {
			continue
		}
		years[i] = pgtype.Int4{Int32: int32(ts.Time.Year()), Valid: true}
		months[i] = pgtype.Int4{Int32: int32(ts.Time.Month()), Valid: true}
	}
	return table.NewIntegerColumn(ColOrderYear, years), table.NewIntegerColumn(ColOrderMonth, months)
}
