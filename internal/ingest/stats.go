package ingest

import (
	"fmt"
	"sort"
	"strings"
)

// Skip reason labels reported in the run summary.
//
// Row reasons apply to whole rows (no point produced); value reasons apply
// to individual cells (the row's point may still be written without them).
const (
	// ReasonBadTimestamp: the timestamp cell was missing, empty, or failed
	// to parse with the configured layout. Skips the whole row.
	ReasonBadTimestamp = "bad_timestamp"

	// ReasonMalformedRow: the CSV reader could not parse the row at all
	// (quote errors, wrong column count). Skips the whole row.
	ReasonMalformedRow = "malformed_row"

	// ReasonNoFields: every field cell in the row was skipped, leaving a
	// point with zero fields, which is invalid. Skips the whole row.
	ReasonNoFields = "no_fields"

	// ReasonEmpty: a field cell was empty. Skips the cell.
	ReasonEmpty = "empty"

	// ReasonNonNumeric: a cell in a numeric column did not coerce to a
	// number. Skips the cell.
	ReasonNonNumeric = "non-numeric"

	// ReasonNonBoolean: a cell in a boolean column did not coerce to a
	// boolean. Skips the cell.
	ReasonNonBoolean = "non-boolean"
)

// Stats accumulates counters over one pipeline run.
//
// When a run aborts on a write failure, the counters reflect exactly what
// was written before the abort — PointsWritten only advances after a flush
// is acknowledged.
type Stats struct {
	FilesProcessed int
	PointsWritten  int
	Flushes        int
	RowsSkipped    int
	ValuesSkipped  int

	// Reasons counts skips by reason label (see Reason* constants).
	Reasons map[string]int
}

func newStats() *Stats {
	return &Stats{Reasons: make(map[string]int)}
}

// skipRow records a whole-row skip under the given reason.
func (s *Stats) skipRow(reason string) {
	s.RowsSkipped++
	s.Reasons[reason]++
}

// skipValue records a single-cell skip under the given reason.
func (s *Stats) skipValue(reason string) {
	s.ValuesSkipped++
	s.Reasons[reason]++
}

// Summary renders the counters as a single human-readable line,
// printed to stdout at the end of a run.
func (s *Stats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "files=%d points_written=%d flushes=%d rows_skipped=%d values_skipped=%d",
		s.FilesProcessed, s.PointsWritten, s.Flushes, s.RowsSkipped, s.ValuesSkipped)

	if len(s.Reasons) > 0 {
		reasons := make([]string, 0, len(s.Reasons))
		for reason := range s.Reasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(&b, " skipped[%s]=%d", reason, s.Reasons[reason])
		}
	}

	return b.String()
}
