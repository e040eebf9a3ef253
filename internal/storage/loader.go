package storage

import (
	"context"
	"errors"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/table"
)

// TableLoader replaces a database table with the transformed rows.
type TableLoader struct {
	progress *progress.Reporter
}

// NewTableLoader creates a TableLoader reporting to p.
func NewTableLoader(p *progress.Reporter) *TableLoader {
	return &TableLoader{progress: p}
}

// Load replaces tableName in store with t. Failures return etl.ErrStorage.
func (l *TableLoader) Load(ctx context.Context, t *table.Table, tableName string, store Store) error {
	l.progress.Info("Starting database load into table '%s'", tableName)

	if err := l.load(ctx, t, tableName, store); err != nil {
		l.progress.Error("Database load failed: %v", err)
		return err
	}

	l.progress.Info("Database load completed successfully")
	return nil
}

func (l *TableLoader) load(ctx context.Context, t *table.Table, tableName string, store Store) error {
	if tableName == "" {
		return etl.Wrap(etl.StageLoad, etl.ErrStorage, errors.New("table name is empty"))
	}
	if t.NumColumns() == 0 {
		return etl.Wrap(etl.StageLoad, etl.ErrStorage, errors.New("table has no columns"))
	}
	return etl.Wrap(etl.StageLoad, etl.ErrStorage, store.ReplaceTable(ctx, tableName, t))
}
