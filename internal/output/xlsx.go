package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/table"
)

// maxSheetNameLen is Excel's limit on worksheet names.
const maxSheetNameLen = 31

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// XLSXWriter writes a table to a single-sheet Excel workbook.
type XLSXWriter struct {
	progress *progress.Reporter
}

// NewXLSXWriter creates an XLSXWriter reporting to p.
func NewXLSXWriter(p *progress.Reporter) *XLSXWriter {
	return &XLSXWriter{progress: p}
}

// Write saves t to path on a sheet named sheet, replacing any existing file.
// Failures return etl.ErrIO.
func (w *XLSXWriter) Write(ctx context.Context, t *table.Table, path, sheet string) error {
	w.progress.Info("Starting XLSX export")

	if err := w.write(ctx, t, path, sheet); err != nil {
		w.progress.Error("XLSX export failed: %v", err)
		return err
	}

	w.progress.Info("XLSX saved successfully")
	return nil
}

func (w *XLSXWriter) write(ctx context.Context, t *table.Table, path, sheet string) error {
	if err := ctx.Err(); err != nil {
		return etl.Wrap(etl.StageWriteXLSX, etl.ErrIO, err)
	}
	err := writeFileAtomic(path, func(out io.Writer) error {
		return WriteXLSX(out, t, sheet)
	})
	return etl.Wrap(etl.StageWriteXLSX, etl.ErrIO, err)
}

// WriteXLSX encodes t as a workbook to out. Numbers are stored as numeric
// cells, timestamps as text in the CSV layout, missing values as empty cells.
func WriteXLSX(out io.Writer, t *table.Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return fmt.Errorf("name sheet %q: %w", name, err)
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("open sheet %q: %w", name, err)
	}

	header := make([]any, t.NumColumns())
	for j, n := range Header(t) {
		header[j] = n
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	cols := t.Columns()
	for i := 0; i < t.NumRows(); i++ {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = cellValue(col, i)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// cellValue returns the workbook value for a cell, or nil when missing.
func cellValue(col *table.Column, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch val := col.Value(i).(type) {
	case pgtype.Float8:
		s := FormatCell(col, i)
		if s == "" {
			return nil
		}
		return val.Float64
	case pgtype.Int4:
		return int(val.Int32)
	default:
		return FormatCell(col, i)
	}
}

// SheetName turns a table name into a valid worksheet name.
func SheetName(name string) string {
	name = sheetNameReplacer.Replace(strings.Trim(name, "'"))
	if name == "" {
		return "Sheet1"
	}
	if utf8.RuneCountInString(name) > maxSheetNameLen {
		name = string([]rune(name)[:maxSheetNameLen])
	}
	return name
}
