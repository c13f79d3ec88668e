// Package runlog keeps a local history of ingestion runs.
//
// Each completed (or aborted) run is recorded as one row in a SQLite
// ledger: when it ran, what directory it read, and the summary counters.
// This is operational history only — the ledger never stores points and
// never feeds back into the pipeline (no retries, no resumability).
//
// The run log is optional and disabled by default (runlog.enabled in
// config.yaml).
package runlog
