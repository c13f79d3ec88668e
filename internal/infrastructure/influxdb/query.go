package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RangeQuery describes a simple "latest N values of one field" Flux query.
//
// It covers the read path fluxline offers: fetch recent datapoints for one
// measurement/field pair, newest first. Arbitrary Flux stays out of scope;
// callers needing more reach for the influx CLI or Grafana directly.
type RangeQuery struct {
	Bucket      string
	Measurement string
	Field       string
	Start       string // Flux duration expression, e.g. "-1h"
	Limit       int
}

// Flux renders the query as a Flux script.
func (q RangeQuery) Flux() string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == %q)
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)`,
		q.Bucket, q.Start, q.Measurement, q.Field, q.Limit)
}

// Validate checks the query for missing or malformed parts.
func (q RangeQuery) Validate() error {
	var errs []string
	if q.Bucket == "" {
		errs = append(errs, "bucket is required")
	}
	if q.Measurement == "" {
		errs = append(errs, "measurement is required")
	}
	if q.Field == "" {
		errs = append(errs, "field is required")
	}
	if q.Start == "" {
		errs = append(errs, "start is required")
	}
	if q.Limit < 1 {
		errs = append(errs, "limit must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(errs, "; "))
	}
	return nil
}

// Record is one datapoint returned by a query, flattened for display.
type Record struct {
	Time  time.Time
	Value interface{}
	Tags  map[string]string
}

// QueryRecords executes a RangeQuery and collects the matching records.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - q: The query to run; validated before execution
//
// Returns:
//   - []Record: Matching records, newest first; empty slice when no data
//   - error: Validation or query failure
func (c *Client) QueryRecords(ctx context.Context, q RangeQuery) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result, err := c.queryAPI.Query(ctx, q.Flux())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	records := []Record{}
	for result.Next() {
		rec := result.Record()
		records = append(records, Record{
			Time:  rec.Time(),
			Value: rec.Value(),
			Tags:  extractTags(rec.Values()),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return records, nil
}

// extractTags filters a Flux record's value map down to user tags,
// dropping Flux system columns (underscore-prefixed, result, table).
func extractTags(values map[string]interface{}) map[string]string {
	tags := make(map[string]string)
	for key, value := range values {
		if strings.HasPrefix(key, "_") || key == "result" || key == "table" {
			continue
		}
		if s, ok := value.(string); ok {
			tags[key] = s
		}
	}
	return tags
}
