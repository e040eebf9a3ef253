package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/table"
)

// CSVWriter writes a table as comma-separated text with a header row.
type CSVWriter struct {
	progress *progress.Reporter
}

// NewCSVWriter creates a CSVWriter reporting to p.
func NewCSVWriter(p *progress.Reporter) *CSVWriter {
	return &CSVWriter{progress: p}
}

// Write saves t to path, replacing any existing file. Failures return etl.ErrIO.
func (w *CSVWriter) Write(ctx context.Context, t *table.Table, path string) error {
	w.progress.Info("Starting CSV load")

	if err := w.write(ctx, t, path); err != nil {
		w.progress.Error("CSV load failed: %v", err)
		return err
	}

	w.progress.Info("CSV saved successfully")
	return nil
}

func (w *CSVWriter) write(ctx context.Context, t *table.Table, path string) error {
	if err := ctx.Err(); err != nil {
		return etl.Wrap(etl.StageWriteCSV, etl.ErrIO, err)
	}
	err := writeFileAtomic(path, func(out io.Writer) error {
		return WriteCSV(out, t)
	})
	return etl.Wrap(etl.StageWriteCSV, etl.ErrIO, err)
}

// WriteCSV encodes t to out. No index column is written.
func WriteCSV(out io.Writer, t *table.Table) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(Header(t)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(Records(t)); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
