package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Writer is the sink a pipeline flushes batches to.
//
// Satisfied by *influxdb.Client; tests substitute a recording fake.
type Writer interface {
	WritePoints(ctx context.Context, points ...*write.Point) error
}

// Logger is the optional logging interface for the pipeline.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Options configures one pipeline run.
type Options struct {
	// CSVDir is the directory scanned (non-recursively) for *.csv files.
	CSVDir string

	// Measurement is the measurement name used for every point.
	Measurement string

	// TimestampLayout is the Go time layout for the timestamp column,
	// e.g. "2006-01-02 15:04:05".
	TimestampLayout string

	// Timezone is the IANA zone naive timestamps are interpreted in,
	// or config.TimezoneNaive to pass them through unconverted.
	Timezone string

	// BatchSize is the number of points per write call.
	BatchSize int

	// TagColumns lists columns written as tags instead of fields.
	// The source_file tag is always added regardless.
	TagColumns []string
}

// timestampColumn is the required column holding each row's timestamp.
const timestampColumn = "timestamp"

// sourceFileTag is the tag carrying the originating CSV file name.
const sourceFileTag = "source_file"

// Pipeline converts a directory of CSV files into batched InfluxDB points.
//
// Processing is strictly sequential: files in sorted order, rows in file
// order, batches flushed synchronously before the next one accumulates.
// A Pipeline is single-use; create a new one per run.
type Pipeline struct {
	opts   Options
	writer Writer
	logger Logger

	loc     *time.Location // nil means NAIVE (no conversion)
	tagCols map[string]bool
	schema  schema

	batch []*write.Point
	stats *Stats
}

// New creates a pipeline for a single run.
//
// Parameters:
//   - opts: Run options; measurement, layout, and batch size are required
//   - writer: The store the batches are flushed to
//
// Returns:
//   - *Pipeline: Ready to Run
//   - error: If options are invalid (bad zone, missing measurement, ...)
func New(opts Options, writer Writer) (*Pipeline, error) {
	if writer == nil {
		return nil, fmt.Errorf("ingest: writer is required")
	}
	if opts.Measurement == "" {
		return nil, fmt.Errorf("ingest: measurement is required")
	}
	if opts.TimestampLayout == "" {
		return nil, fmt.Errorf("ingest: timestamp layout is required")
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("ingest: batch size must be positive, got %d", opts.BatchSize)
	}

	loc, err := resolveLocation(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	tagCols := make(map[string]bool, len(opts.TagColumns))
	for _, col := range opts.TagColumns {
		tagCols[col] = true
	}

	return &Pipeline{
		opts:    opts,
		writer:  writer,
		loc:     loc,
		tagCols: tagCols,
		schema:  make(schema),
		batch:   make([]*write.Point, 0, opts.BatchSize),
		stats:   newStats(),
	}, nil
}

// SetLogger sets an optional logger for per-file progress and skip warnings.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// Run executes the pipeline: scan, parse, coerce, batch, flush.
//
// Fatal failures (missing directory, no CSV files, a failed flush) abort
// the run and are returned; per-row and per-cell problems are counted in
// the returned Stats and the run continues.
//
// Parameters:
//   - ctx: Context for cancellation; checked between rows
//
// Returns:
//   - *Stats: Counters for the run. Non-nil even on error, reflecting
//     exactly what was written before any abort.
//   - error: nil on success
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	files, err := locateCSVFiles(p.opts.CSVDir)
	if err != nil {
		return p.stats, err
	}

	for _, path := range files {
		if err := p.processFile(ctx, path); err != nil {
			return p.stats, err
		}
		p.stats.FilesProcessed++
	}

	// Final partial batch
	if err := p.flush(ctx); err != nil {
		return p.stats, err
	}

	return p.stats, nil
}

// locateCSVFiles returns the sorted *.csv files in dir.
//
// A missing directory and an empty match set are both fatal preconditions:
// running against nothing is almost always a misconfigured path, and
// silently writing zero points would mask it.
func locateCSVFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingDirectory, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMissingDirectory, dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMissingDirectory, dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCSVFiles, dir)
	}

	sort.Strings(matches)
	return matches, nil
}

// processFile reads one CSV file and feeds its rows through the pipeline.
func (p *Pipeline) processFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ingest: opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: nothing to ingest, not an error.
			return nil
		}
		return fmt.Errorf("ingest: reading header of %s: %w", path, err)
	}

	tsIndex := -1
	for i, name := range header {
		if name == timestampColumn {
			tsIndex = i
			break
		}
	}
	if tsIndex == -1 {
		if p.logger != nil {
			p.logger.Warn("csv file has no timestamp column, skipping rows", "file", path)
		}
	}

	fileName := filepath.Base(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.stats.skipRow(ReasonMalformedRow)
			continue
		}

		if tsIndex == -1 || tsIndex >= len(row) {
			p.stats.skipRow(ReasonBadTimestamp)
			continue
		}

		point, ok := p.rowToPoint(header, row, tsIndex, fileName)
		if !ok {
			continue // counted inside rowToPoint
		}

		p.batch = append(p.batch, point)
		if len(p.batch) >= p.opts.BatchSize {
			if err := p.flush(ctx); err != nil {
				return err
			}
		}
	}

	if p.logger != nil {
		p.logger.Info("csv file processed", "file", fileName)
	}

	return nil
}

// rowToPoint converts one CSV row into a point, or counts why it couldn't.
func (p *Pipeline) rowToPoint(header, row []string, tsIndex int, fileName string) (*write.Point, bool) {
	ts, err := parseTimestamp(row[tsIndex], p.opts.TimestampLayout, p.loc)
	if err != nil {
		p.stats.skipRow(ReasonBadTimestamp)
		return nil, false
	}

	tags := map[string]string{sourceFileTag: fileName}
	fields := make(map[string]interface{})

	for i, column := range header {
		if i == tsIndex || i >= len(row) {
			continue
		}
		raw := row[i]

		if p.tagCols[column] {
			if raw != "" {
				tags[column] = raw
			}
			continue
		}

		if strings.TrimSpace(raw) == "" {
			p.stats.skipValue(ReasonEmpty)
			continue
		}

		value, decided, ok := p.schema.coerce(column, raw)
		if !ok {
			if decided == kindBool {
				p.stats.skipValue(ReasonNonBoolean)
			} else {
				p.stats.skipValue(ReasonNonNumeric)
			}
			continue
		}
		fields[column] = value
	}

	// A point must carry at least one field; drop the row otherwise.
	if len(fields) == 0 {
		p.stats.skipRow(ReasonNoFields)
		return nil, false
	}

	return write.NewPoint(p.opts.Measurement, tags, fields, ts), true
}

// flush submits the current batch in one write call and resets it.
// A failed flush is fatal: the error is returned and the run stops with
// PointsWritten reflecting only acknowledged batches.
func (p *Pipeline) flush(ctx context.Context) error {
	if len(p.batch) == 0 {
		return nil
	}

	if err := p.writer.WritePoints(ctx, p.batch...); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailed, err)
	}

	p.stats.PointsWritten += len(p.batch)
	p.stats.Flushes++
	p.batch = p.batch[:0]

	return nil
}
