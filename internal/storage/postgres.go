package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/salesetl/internal/table"
)

// postgresTypes maps column types to PostgreSQL column types.
var postgresTypes = map[table.FieldType]string{
	table.FieldText:      "TEXT",
	table.FieldNumeric:   "DOUBLE PRECISION",
	table.FieldTimestamp: "TIMESTAMP",
	table.FieldInteger:   "INTEGER",
}

// DBTX is the subset of pgx used to replace a table.
// Satisfied by both *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresStore loads tables over a single pgx connection.
type PostgresStore struct {
	conn *pgx.Conn
}

// ConnectPostgres opens and verifies a connection to dsn.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{conn: conn}, nil
}

// Driver returns "PostgreSQL".
func (s *PostgresStore) Driver() string {
	return "PostgreSQL"
}

// ReplaceTable recreates name and bulk loads t with the COPY protocol.
func (s *PostgresStore) ReplaceTable(ctx context.Context, name string, t *table.Table) error {
	return pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		return replacePostgresTable(ctx, tx, name, t)
	})
}

// Close closes the connection.
func (s *PostgresStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func replacePostgresTable(ctx context.Context, db DBTX, name string, t *table.Table) error {
	if _, err := db.Exec(ctx, dropTableSQL(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := db.Exec(ctx, createTableSQL(name, t.Columns(), postgresTypes)); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	rows := pgx.CopyFromSlice(t.NumRows(), func(i int) ([]any, error) {
		return t.Row(i), nil
	})
	n, err := db.CopyFrom(ctx, pgx.Identifier{name}, t.Names(), rows)
	if err != nil {
		return fmt.Errorf("copy into %s: %w", name, err)
	}
	if n != int64(t.NumRows()) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", name, n, t.NumRows())
	}
	return nil
}
