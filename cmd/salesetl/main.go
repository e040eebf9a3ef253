// Package main provides the CLI entry point for salesetl.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salesetl/internal/config"
	"github.com/JonMunkholm/salesetl/internal/extract"
	"github.com/JonMunkholm/salesetl/internal/logging"
	"github.com/JonMunkholm/salesetl/internal/pipeline"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/storage"
)

// flags holds command-line overrides. Only flags the user actually set are
// applied on top of the environment configuration.
type flags struct {
	sourceURL   string
	output      string
	xlsx        string
	table       string
	progressLog string
	dbDriver    string
	dbHost      string
	dbPort      int
	dbUser      string
	dbPassword  string
	dbName      string
	sqlitePath  string
	envFile     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "salesetl",
		Short: "Extract, clean and load the sales dataset",
		Long: `salesetl downloads a sales CSV, normalizes its columns, derives
profit margin and order year/month, writes the cleaned rows to a CSV file
and replaces a database table with them.

Settings come from environment variables (optionally loaded from a .env
file); flags override them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.sourceURL, "source-url", "", "CSV to download (env SOURCE_URL)")
	fs.StringVarP(&f.output, "output", "o", "", "Cleaned CSV path (env OUTPUT_PATH)")
	fs.StringVar(&f.xlsx, "xlsx", "", "Also write an Excel workbook to this path (env OUTPUT_XLSX_PATH)")
	fs.StringVarP(&f.table, "table", "t", "", "Database table to replace (env TABLE_NAME)")
	fs.StringVar(&f.progressLog, "progress-log", "", "Progress log file (env PROGRESS_LOG)")
	fs.StringVar(&f.dbDriver, "db-driver", "", "Database driver: postgres, sqlite (env DB_DRIVER)")
	fs.StringVar(&f.dbHost, "db-host", "", "PostgreSQL host (env DB_HOST)")
	fs.IntVar(&f.dbPort, "db-port", 0, "PostgreSQL port (env DB_PORT)")
	fs.StringVar(&f.dbUser, "db-user", "", "PostgreSQL user (env DB_USER)")
	fs.StringVar(&f.dbPassword, "db-password", "", "PostgreSQL password (env DB_PASSWORD)")
	fs.StringVar(&f.dbName, "db-name", "", "PostgreSQL database (env DB_NAME)")
	fs.StringVar(&f.sqlitePath, "sqlite-path", "", "SQLite database file (env SQLITE_PATH)")
	fs.StringVar(&f.envFile, "env-file", ".env", "Environment file loaded before reading settings")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	// Overload overwrites existing env vars so the file is authoritative
	if err := godotenv.Overload(f.envFile); err != nil {
		slog.Debug("no env file loaded, using environment variables", "path", f.envFile)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return reportStartup(progressLogPath(cmd, f, nil), err)
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return reportStartup(progressLogPath(cmd, f, cfg), fmt.Errorf("config validation: %w", err))
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRun(ctx, uuid.NewString())

	logger := logging.FromContext(ctx)
	logger.Debug("configuration loaded", "config", cfg.String())

	reporter := progress.NewReporter(progress.NewFileSink(cfg.Output.ProgressLog), logger)

	p := pipeline.New(
		pipeline.Config{
			SourceURL:  cfg.Source.URL,
			OutputPath: cfg.Output.CSVPath,
			XLSXPath:   cfg.Output.XLSXPath,
			TableName:  cfg.Output.TableName,
		},
		extract.Options{
			Timeout:     cfg.Source.Timeout,
			UserAgent:   cfg.Source.UserAgent,
			MaxBodySize: cfg.Source.MaxBodySize,
		},
		pipeline.Opener(storage.Options{
			Driver:     cfg.Database.Driver,
			DSN:        cfg.Database.DSN(),
			SQLitePath: cfg.Database.SQLitePath,
		}),
		reporter,
	)

	// The pipeline has already logged the failure with its support code
	return p.Run(ctx)
}

// applyFlags copies explicitly set flags over the environment configuration.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	set := cmd.Flags().Changed

	if set("source-url") {
		cfg.Source.URL = f.sourceURL
	}
	if set("output") {
		cfg.Output.CSVPath = f.output
	}
	if set("xlsx") {
		cfg.Output.XLSXPath = f.xlsx
	}
	if set("table") {
		cfg.Output.TableName = f.table
	}
	if set("progress-log") {
		cfg.Output.ProgressLog = f.progressLog
	}
	if set("db-driver") {
		cfg.Database.Driver = f.dbDriver
	}
	if set("db-host") {
		cfg.Database.Host = f.dbHost
	}
	if set("db-port") {
		cfg.Database.Port = f.dbPort
	}
	if set("db-user") {
		cfg.Database.User = f.dbUser
	}
	if set("db-password") {
		cfg.Database.Password = f.dbPassword
	}
	if set("db-name") {
		cfg.Database.Name = f.dbName
	}
	if set("sqlite-path") {
		cfg.Database.SQLitePath = f.sqlitePath
	}
}

// progressLogPath picks the progress log for a run whose configuration may
// not have loaded. cfg is nil when loading failed.
func progressLogPath(cmd *cobra.Command, f *flags, cfg *config.Config) string {
	if cmd.Flags().Changed("progress-log") && f.progressLog != "" {
		return f.progressLog
	}
	if cfg != nil && cfg.Output.ProgressLog != "" {
		return cfg.Output.ProgressLog
	}
	if v := strings.TrimSpace(os.Getenv("PROGRESS_LOG")); v != "" {
		return v
	}
	return config.DefaultProgressLog
}

// reportStartup records a failure that happened before the pipeline started,
// both on stderr and in the progress log at path.
func reportStartup(path string, err error) error {
	fmt.Fprintln(os.Stderr, "salesetl:", err)
	reporter := progress.NewReporter(progress.NewFileSink(path), nil)
	return pipeline.Abort(context.Background(), reporter, err)
}
