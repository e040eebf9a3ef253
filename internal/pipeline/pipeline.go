// Package pipeline runs the sales ETL end to end.
//
// A run opens the storage connection, then extracts the source CSV,
// transforms it, writes the output file(s) and replaces the database table.
// Stages run strictly in order; the first failure stops the run. Every
// outcome is recorded in the progress log, and "ETL process ended" is always
// the last event.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/extract"
	"github.com/JonMunkholm/salesetl/internal/logging"
	"github.com/JonMunkholm/salesetl/internal/output"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/storage"
	"github.com/JonMunkholm/salesetl/internal/transform"
)

// Config holds the per-run inputs.
type Config struct {
	SourceURL  string // CSV to download
	OutputPath string // Cleaned CSV destination
	XLSXPath   string // Optional workbook destination; empty disables it
	TableName  string // Database table to replace
}

// OpenFunc opens the storage backend for a run.
type OpenFunc func(ctx context.Context) (storage.Store, error)

// Pipeline wires the stages together.
type Pipeline struct {
	cfg         Config
	open        OpenFunc
	progress    *progress.Reporter
	extractor   *extract.Extractor
	transformer *transform.Transformer
	csv         *output.CSVWriter
	xlsx        *output.XLSXWriter
	loader      *storage.TableLoader
}

// New creates a pipeline. All stages report to p.
func New(cfg Config, extractOpts extract.Options, open OpenFunc, p *progress.Reporter) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		open:        open,
		progress:    p,
		extractor:   extract.New(extractOpts, p),
		transformer: transform.New(p),
		csv:         output.NewCSVWriter(p),
		xlsx:        output.NewXLSXWriter(p),
		loader:      storage.NewTableLoader(p),
	}
}

// Run executes one ETL run. The returned error is a *etl.StageError.
func (p *Pipeline) Run(ctx context.Context) error {
	p.progress.Info("Preliminaries complete. Initiating ETL process")
	defer p.progress.Info("ETL process ended")

	if err := p.run(ctx); err != nil {
		reportFailure(ctx, p.progress, err)
		return err
	}

	p.progress.Info("ETL process completed successfully")
	return nil
}

// Abort records a run that could not start, typically because the
// configuration failed to load. The progress log gets the same failure and
// end events a failed Run writes. The returned error is a *etl.StageError.
func Abort(ctx context.Context, p *progress.Reporter, err error) error {
	defer p.Info("ETL process ended")

	err = etl.Wrap(etl.StageConfig, etl.ErrConfig, err)
	reportFailure(ctx, p, err)
	return err
}

func reportFailure(ctx context.Context, p *progress.Reporter, err error) {
	msg := etl.MapError(err)
	// One progress log line per event, even for multi-line validation errors
	p.Error("ETL process failed: %s [%s]", strings.Join(strings.Fields(err.Error()), " "), msg.Code)
	logging.FromContext(ctx).Error("etl run failed",
		"code", msg.Code,
		"message", msg.Message,
		"action", msg.Action,
		"error", err,
	)
}

func (p *Pipeline) run(ctx context.Context) error {
	logger := logging.WithFields(ctx, "table", p.cfg.TableName)

	store, err := p.open(ctx)
	if err != nil {
		return etl.Wrap(etl.StageConnect, etl.ErrStorage, err)
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to close database connection", "error", err)
		}
	}()
	p.progress.Info("%s connection created", store.Driver())

	raw, err := p.extractor.Extract(ctx, p.cfg.SourceURL)
	if err != nil {
		return err
	}
	logger.Debug("extracted", "rows", raw.NumRows(), "columns", raw.NumColumns())

	clean, err := p.transformer.Transform(raw)
	if err != nil {
		return err
	}

	if err := p.csv.Write(ctx, clean, p.cfg.OutputPath); err != nil {
		return err
	}

	if p.cfg.XLSXPath != "" {
		if err := p.xlsx.Write(ctx, clean, p.cfg.XLSXPath, p.cfg.TableName); err != nil {
			return err
		}
	}

	if err := p.loader.Load(ctx, clean, p.cfg.TableName, store); err != nil {
		return err
	}

	logger.Info("run finished", "rows", clean.NumRows(), "output", p.cfg.OutputPath)
	return nil
}

// Opener returns an OpenFunc for opts.
func Opener(opts storage.Options) OpenFunc {
	return func(ctx context.Context) (storage.Store, error) {
		store, err := storage.Open(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opts.Driver, err)
		}
		return store, nil
	}
}
