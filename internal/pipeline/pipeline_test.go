package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/extract"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/storage"
)

const salesCSV = `Order Date,Sales,Profit
11/8/2016,261.96,41.9136
6/12/2016,not-a-number,5
2015-10-11,957.5775,-383.031
`

const noDateCSV = `Region,Sales,Profit
West,261.96,41.9136
`

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/sales.csv", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, salesCSV)
	})
	r.Get("/no-date.csv", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, noDateCSV)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	dir    string
	dbPath string
	sink   *progress.MemorySink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		dir:    dir,
		dbPath: filepath.Join(dir, "sales.db"),
		sink:   progress.NewMemorySink(),
	}
}

func (e *testEnv) pipeline(cfg Config, open OpenFunc) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if open == nil {
		open = Opener(storage.Options{Driver: storage.DriverSQLite, SQLitePath: e.dbPath})
	}
	return New(cfg, extract.Options{}, open, progress.NewReporter(e.sink, logger))
}

func (e *testEnv) tableExists(t *testing.T, name string) bool {
	t.Helper()
	if _, err := os.Stat(e.dbPath); os.IsNotExist(err) {
		return false
	}
	db, err := sql.Open("sqlite", e.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	return n == 1
}

func TestRun_EndToEnd(t *testing.T) {
	srv := newSourceServer(t)
	env := newTestEnv(t)
	cfg := Config{
		SourceURL:  srv.URL + "/sales.csv",
		OutputPath: filepath.Join(env.dir, "clean_sales_data.csv"),
		TableName:  "sales_data",
	}

	if err := env.pipeline(cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	wantLines := []string{
		"order_date,sales,profit,profit_margin,order_year,order_month",
		"2016-11-08,261.96,41.9136,0.16,2016,11",
		"2015-10-11,957.5775,-383.031,-0.4,2015,10",
	}
	if !slices.Equal(lines, wantLines) {
		t.Errorf("csv =\n%s\nwant\n%s", strings.Join(lines, "\n"), strings.Join(wantLines, "\n"))
	}

	db, err := sql.Open("sqlite", env.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sales_data`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("table rows = %d, want 2", count)
	}
	var discarded int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sales_data WHERE profit = 5`).Scan(&discarded); err != nil {
		t.Fatal(err)
	}
	if discarded != 0 {
		t.Error("row with non-numeric sales was loaded")
	}

	want := []string{
		"Preliminaries complete. Initiating ETL process",
		"SQLite connection created",
		"Starting data extraction",
		"Data extraction completed. Rows: 3",
		"Starting data transformation",
		"Data transformation completed. Rows: 2",
		"Starting CSV load",
		"CSV saved successfully",
		"Starting database load into table 'sales_data'",
		"Database load completed successfully",
		"ETL process completed successfully",
		"ETL process ended",
	}
	if got := env.sink.Messages(); !slices.Equal(got, want) {
		t.Errorf("messages =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestRun_WithXLSX(t *testing.T) {
	srv := newSourceServer(t)
	env := newTestEnv(t)
	cfg := Config{
		SourceURL:  srv.URL + "/sales.csv",
		OutputPath: filepath.Join(env.dir, "clean_sales_data.csv"),
		XLSXPath:   filepath.Join(env.dir, "clean_sales_data.xlsx"),
		TableName:  "sales_data",
	}

	if err := env.pipeline(cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	f, err := excelize.OpenFile(cfg.XLSXPath)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("sales_data")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("workbook rows = %d, want header + 2", len(rows))
	}
	if !slices.Contains(env.sink.Messages(), "XLSX saved successfully") {
		t.Errorf("messages = %v", env.sink.Messages())
	}
}

func TestRun_NoDateColumn(t *testing.T) {
	srv := newSourceServer(t)
	env := newTestEnv(t)
	cfg := Config{
		SourceURL:  srv.URL + "/no-date.csv",
		OutputPath: filepath.Join(env.dir, "clean_sales_data.csv"),
		TableName:  "sales_data",
	}

	err := env.pipeline(cfg, nil).Run(context.Background())
	if !errors.Is(err, etl.ErrSchema) {
		t.Fatalf("Run() error = %v, want ErrSchema", err)
	}

	if _, statErr := os.Stat(cfg.OutputPath); !os.IsNotExist(statErr) {
		t.Error("CSV written despite schema failure")
	}
	if env.tableExists(t, "sales_data") {
		t.Error("table written despite schema failure")
	}

	events := env.sink.Events()
	var failed *progress.Event
	for i := range events {
		if strings.HasPrefix(events[i].Message, "ETL process failed: ") {
			failed = &events[i]
		}
	}
	if failed == nil || failed.Level != progress.LevelError {
		t.Fatalf("no ERROR event for failed run: %v", env.sink.Messages())
	}
	if !strings.HasSuffix(failed.Message, "[SCHEMA001]") {
		t.Errorf("failure event = %q, want SCHEMA001 code", failed.Message)
	}
	if last := events[len(events)-1]; last.Message != "ETL process ended" {
		t.Errorf("last event = %q, want ETL process ended", last.Message)
	}
}

func TestRun_ConnectFailure(t *testing.T) {
	srv := newSourceServer(t)
	env := newTestEnv(t)
	cfg := Config{
		SourceURL:  srv.URL + "/sales.csv",
		OutputPath: filepath.Join(env.dir, "clean_sales_data.csv"),
		TableName:  "sales_data",
	}
	open := func(context.Context) (storage.Store, error) {
		return nil, errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	}

	err := env.pipeline(cfg, open).Run(context.Background())
	if !errors.Is(err, etl.ErrStorage) {
		t.Fatalf("Run() error = %v, want ErrStorage", err)
	}

	msgs := env.sink.Messages()
	if slices.Contains(msgs, "Starting data extraction") {
		t.Error("extraction started without a connection")
	}
	if len(msgs) != 3 || !strings.HasSuffix(msgs[1], "[STORE001]") || msgs[2] != "ETL process ended" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestAbort_RecordsStartupFailure(t *testing.T) {
	env := newTestEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reporter := progress.NewReporter(env.sink, logger)

	err := Abort(context.Background(), reporter, errors.New("config validation: DB_HOST is required for the postgres driver"))
	if !errors.Is(err, etl.ErrConfig) {
		t.Fatalf("Abort() error = %v, want ErrConfig", err)
	}

	events := env.sink.Events()
	if len(events) != 2 {
		t.Fatalf("events = %v, want failure and end", env.sink.Messages())
	}
	if events[0].Level != progress.LevelError ||
		!strings.HasPrefix(events[0].Message, "ETL process failed: ") ||
		!strings.Contains(events[0].Message, "DB_HOST is required") ||
		!strings.HasSuffix(events[0].Message, "[CONFIG001]") {
		t.Errorf("failure event = %v", events[0])
	}
	if events[1].Level != progress.LevelInfo || events[1].Message != "ETL process ended" {
		t.Errorf("last event = %v, want ETL process ended", events[1])
	}
}

func TestRun_LoadFailureAfterCSV(t *testing.T) {
	srv := newSourceServer(t)
	env := newTestEnv(t)
	cfg := Config{
		SourceURL:  srv.URL + "/sales.csv",
		OutputPath: filepath.Join(env.dir, "clean_sales_data.csv"),
		TableName:  "",
	}

	err := env.pipeline(cfg, nil).Run(context.Background())
	if !errors.Is(err, etl.ErrStorage) {
		t.Fatalf("Run() error = %v, want ErrStorage", err)
	}
	if _, statErr := os.Stat(cfg.OutputPath); statErr != nil {
		t.Errorf("CSV should be written before the load step: %v", statErr)
	}
	if !slices.Contains(env.sink.Messages(), "Database load failed: storage error: table name is empty") {
		t.Errorf("messages = %v", env.sink.Messages())
	}
}
