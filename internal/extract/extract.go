// Package extract downloads the source CSV and parses it into a table.
package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/salesetl/internal/etl"
	"github.com/JonMunkholm/salesetl/internal/progress"
	"github.com/JonMunkholm/salesetl/internal/table"
)

// Defaults applied to zero Options fields.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultUserAgent   = "Mozilla/5.0"
	DefaultMaxBodySize = 256 << 20
)

// Options configures the HTTP fetch.
type Options struct {
	Timeout     time.Duration // Whole-request timeout
	UserAgent   string        // Sent as the User-Agent header
	MaxBodySize int64         // Maximum bytes accepted from the source
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = DefaultMaxBodySize
	}
	return o
}

// Extractor fetches a CSV over HTTP. It makes a single attempt per call.
type Extractor struct {
	client   *http.Client
	opts     Options
	progress *progress.Reporter
}

// New creates an Extractor with its own http.Client.
func New(opts Options, p *progress.Reporter) *Extractor {
	opts = opts.withDefaults()
	return &Extractor{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		progress: p,
	}
}

// Extract downloads sourceURL and parses it as CSV with a header row.
// Transport failures and non-2xx statuses return etl.ErrFetch; malformed
// text returns etl.ErrParse.
func (e *Extractor) Extract(ctx context.Context, sourceURL string) (*table.Table, error) {
	e.progress.Info("Starting data extraction")

	t, err := e.extract(ctx, sourceURL)
	if err != nil {
		e.progress.Error("Data extraction failed: %v", err)
		return nil, err
	}

	e.progress.Info("Data extraction completed. Rows: %d", t.NumRows())
	return t, nil
}

func (e *Extractor) extract(ctx context.Context, sourceURL string) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, etl.Wrap(etl.StageExtract, etl.ErrFetch, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, etl.Wrap(etl.StageExtract, etl.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, etl.Errorf(etl.StageExtract, etl.ErrFetch,
			"unexpected HTTP status %s for url %s", resp.Status, sourceURL)
	}

	body := wrapBody(resp.Body, e.opts.MaxBodySize)
	t, err := Parse(body)
	if err != nil {
		var perr *csv.ParseError
		var serr *etl.StageError
		switch {
		case errors.As(err, &perr), errors.As(err, &serr):
			return nil, etl.Wrap(etl.StageExtract, etl.ErrParse, err)
		default:
			// Body read failed mid-stream (size limit, timeout, reset)
			return nil, etl.Wrap(etl.StageExtract, etl.ErrFetch, err)
		}
	}
	return t, nil
}

// Parse reads CSV text with a header row into a table of text columns.
// Blank cells become missing values. Blank header names become
// "Unnamed: N" and repeated names get a ".N" suffix, so every column has a
// distinct name.
func Parse(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, etl.Errorf(etl.StageExtract, etl.ErrParse, "no columns to parse from empty input")
	}
	if err != nil {
		return nil, err
	}

	raw := make([][]string, len(header))
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for j, cell := range record {
			raw[j] = append(raw[j], cell)
		}
	}

	names := headerNames(header)
	cols := make([]*table.Column, len(names))
	for j, name := range names {
		cols[j] = table.NewTextColumn(name, table.TextValues(raw[j]))
	}

	t, err := table.New(cols...)
	if err != nil {
		return nil, etl.Wrap(etl.StageExtract, etl.ErrParse, err)
	}
	return t, nil
}

// headerNames fills blank names and disambiguates repeats.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if seen[name] {
			base := name
			for n := 1; seen[name]; n++ {
				name = base + "." + strconv.Itoa(n)
			}
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
