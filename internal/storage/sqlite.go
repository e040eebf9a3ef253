package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/salesetl/internal/table"
)

// sqliteTimestampLayout is how timestamps are stored in SQLite TEXT affinity.
const sqliteTimestampLayout = "2006-01-02 15:04:05"

// sqliteTypes maps column types to SQLite column types.
var sqliteTypes = map[table.FieldType]string{
	table.FieldText:      "TEXT",
	table.FieldNumeric:   "REAL",
	table.FieldTimestamp: "TIMESTAMP",
	table.FieldInteger:   "INTEGER",
}

// SQLiteStore loads tables into a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection per run, matching the PostgreSQL store
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Driver returns "SQLite".
func (s *SQLiteStore) Driver() string {
	return "SQLite"
}

// DB exposes the underlying handle for inspection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// ReplaceTable recreates name and inserts t with a prepared statement.
func (s *SQLiteStore) ReplaceTable(ctx context.Context, name string, t *table.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op after commit

	if _, err := tx.ExecContext(ctx, dropTableSQL(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(name, t.Columns(), sqliteTypes)); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(name, t.Names()))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	cols := t.Columns()
	args := make([]any, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		for j, col := range cols {
			args[j] = sqliteValue(col.Value(i))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func insertSQL(name string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdentifier(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + quoteIdentifier(name) + " (" + strings.Join(quoted, ", ") + ") VALUES (" + placeholders + ")"
}

// sqliteValue converts a cell to a value the sqlite driver stores natively.
func sqliteValue(v any) any {
	switch val := v.(type) {
	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		return val.String
	case pgtype.Float8:
		if !val.Valid {
			return nil
		}
		return val.Float64
	case pgtype.Timestamp:
		if !val.Valid {
			return nil
		}
		return val.Time.Format(sqliteTimestampLayout)
	case pgtype.Int4:
		if !val.Valid {
			return nil
		}
		return int64(val.Int32)
	default:
		return v
	}
}
