package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/fluxline/fluxline/internal/infrastructure/config"
)

// resolveLocation maps a configured timezone name to a *time.Location.
//
// The sentinel config.TimezoneNaive returns nil, meaning "do not convert":
// naive timestamps are taken at face value (parsed as UTC wall-clock time).
//
// Returns:
//   - *time.Location: The zone naive timestamps are interpreted in, or nil
//   - error: If the name is not a loadable IANA zone
func resolveLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, config.TimezoneNaive) {
		return nil, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// parseTimestamp parses a naive timestamp string with the configured layout.
//
// With a location, the wall-clock time is interpreted in that zone and
// converted to UTC, so the nanosecond value attached to the point is the
// true instant. Without one (NAIVE), the string is parsed as-is with no
// offset applied.
func parseTimestamp(raw, layout string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		return time.Parse(layout, raw)
	}
	ts, err := time.ParseInLocation(layout, raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
