// Package storage loads tables into a relational database.
//
// A Store owns a single connection for the whole run. ReplaceTable drops any
// existing table of the same name, recreates it from the column types and
// inserts every row, all inside one transaction.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/salesetl/internal/table"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a database that can hold the output table.
type Store interface {
	// Driver returns a display name for log messages, e.g. "PostgreSQL".
	Driver() string

	// ReplaceTable drops name if it exists, creates it from t's columns and
	// inserts all rows atomically.
	ReplaceTable(ctx context.Context, name string, t *table.Table) error

	Close(ctx context.Context) error
}

// Options selects and configures the backend.
type Options struct {
	Driver     string // DriverPostgres or DriverSQLite
	DSN        string // PostgreSQL connection string
	SQLitePath string // SQLite database file
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(opts.Driver) {
	case DriverPostgres, "postgresql", "":
		store, err = ConnectPostgres(ctx, opts.DSN)
	case DriverSQLite, "sqlite3":
		store, err = OpenSQLite(ctx, opts.SQLitePath)
	default:
		err = fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// quoteIdentifier quotes a table or column name for SQL.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// createTableSQL builds a CREATE TABLE statement using types to map each
// column's FieldType to a SQL type.
func createTableSQL(name string, cols []*table.Column, types map[table.FieldType]string) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		sqlType, ok := types[col.Type]
		if !ok {
			sqlType = types[table.FieldText]
		}
		defs[i] = quoteIdentifier(col.Name) + " " + sqlType
	}
	return "CREATE TABLE " + quoteIdentifier(name) + " (" + strings.Join(defs, ", ") + ")"
}

func dropTableSQL(name string) string {
	return "DROP TABLE IF EXISTS " + quoteIdentifier(name)
}
