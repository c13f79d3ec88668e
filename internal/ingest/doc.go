// Package ingest implements the CSV-to-InfluxDB ingestion pipeline.
//
// The pipeline scans a directory for CSV files, converts each row into one
// timestamped point, accumulates points into fixed-size batches, and flushes
// each batch to the store in a single synchronous write call.
//
// # Processing model
//
// Strictly sequential: one file at a time, one row at a time, one batch in
// flight. There is no shared mutable state beyond the in-progress batch,
// which the pipeline owns exclusively for the run. This is a one-shot batch
// job; nothing persists between runs and nothing is retried.
//
// # Error classes
//
// Recoverable per-item errors — a cell that won't coerce, a timestamp that
// won't parse, a malformed CSV row — are counted in Stats and skipped.
// Fatal run errors — missing directory, no CSV files, a failed flush — abort
// immediately with a wrapped sentinel error from errors.go.
//
// # Column typing
//
// Field columns are typed first-seen-wins: the first coercible cell fixes
// the column's type (bool, float, or string) for the run, and later cells
// of a different kind are counted as skipped values. See coerce.go.
//
// # Usage
//
//	pipe, err := ingest.New(ingest.Options{
//	    CSVDir:          "data/experiment_opc_log",
//	    Measurement:     "experiment_opc",
//	    TimestampLayout: "2006-01-02 15:04:05",
//	    Timezone:        "Europe/Berlin",
//	    BatchSize:       500,
//	}, influxClient)
//	if err != nil {
//	    return err
//	}
//	stats, err := pipe.Run(ctx)
//	fmt.Println(stats.Summary())
package ingest
