package ingest

import "errors"

// Sentinel errors for pipeline preconditions and fatal failures.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMissingDirectory is returned when the CSV directory does not exist
	// or cannot be read.
	ErrMissingDirectory = errors.New("ingest: csv directory missing")

	// ErrNoCSVFiles is returned when the directory contains no *.csv files.
	ErrNoCSVFiles = errors.New("ingest: no csv files found")

	// ErrFlushFailed is returned when a batch write to the store fails.
	// The run aborts immediately; there is no retry.
	ErrFlushFailed = errors.New("ingest: batch flush failed")
)
