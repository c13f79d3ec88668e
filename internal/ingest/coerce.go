package ingest

import (
	"strconv"
	"strings"
)

// columnKind is the decided value type of a CSV column.
//
// The first successfully coerced value fixes a column's kind for the rest of
// the run. Later values that coerce to a different kind are counted as
// skipped, never silently reinterpreted — this keeps each InfluxDB field a
// single type within a run, which the store requires within a shard anyway.
type columnKind int

const (
	kindUnknown columnKind = iota
	kindBool
	kindFloat
	kindString
)

// String returns the kind name for log output.
func (k columnKind) String() string {
	switch k {
	case kindBool:
		return "bool"
	case kindFloat:
		return "float"
	case kindString:
		return "string"
	default:
		return "unknown"
	}
}

// coerceValue converts a raw CSV cell into a typed field value.
//
// Coercion order matches the original data this tool was built for:
// "true"/"false" (any case) become bool, anything parseable as a float
// becomes float64, everything else stays a string. Empty cells return
// ok=false and are skipped by the caller.
func coerceValue(raw string) (value interface{}, kind columnKind, ok bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, kindUnknown, false
	}

	switch strings.ToLower(text) {
	case "true":
		return true, kindBool, true
	case "false":
		return false, kindBool, true
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, kindFloat, true
	}

	return text, kindString, true
}

// schema tracks the decided kind of each field column across a run.
type schema map[string]columnKind

// coerce applies first-seen-wins typing to a non-empty cell of the named
// column.
//
// Returns the typed value and true when the cell fits the column's kind.
// A mismatch returns the column's decided kind and false so the caller can
// count the skip under the right reason. Callers filter out empty cells
// before calling.
func (s schema) coerce(column, raw string) (value interface{}, decided columnKind, ok bool) {
	v, k, ok := coerceValue(raw)
	if !ok {
		return nil, s[column], false
	}

	switch s[column] {
	case kindUnknown:
		s[column] = k
		return v, k, true
	case k:
		return v, k, true
	case kindString:
		// A string column accepts any cell verbatim; "12.5" is a fine string.
		return strings.TrimSpace(raw), kindString, true
	default:
		return nil, s[column], false
	}
}
