package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Telemetry is the JSON payload the feed accepts on its topic.
//
// Example:
//
//	{
//	  "measurement": "cpu",
//	  "tags": {"host": "server01"},
//	  "fields": {"usage_user": 42.5, "online": true},
//	  "timestamp": "2024-06-01T12:00:00Z"
//	}
//
// measurement and timestamp are optional: the configured default
// measurement and the arrival time are used when absent.
type Telemetry struct {
	Measurement string                 `json:"measurement,omitempty"`
	Tags        map[string]string      `json:"tags,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
	Timestamp   string                 `json:"timestamp,omitempty"`
}

// decodePayload converts a telemetry payload into a point.
//
// The same point invariant as the CSV pipeline applies: a non-empty
// measurement and at least one field. Field values must be JSON scalars
// (number, bool, string); nested structures are rejected rather than
// flattened.
//
// Parameters:
//   - payload: Raw JSON message body
//   - defaultMeasurement: Used when the payload names none
//   - received: Timestamp used when the payload carries none
//
// Returns:
//   - *write.Point: The decoded point
//   - error: Wrapped ErrBadPayload describing what was wrong
func decodePayload(payload []byte, defaultMeasurement string, received time.Time) (*write.Point, error) {
	var t Telemetry
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	measurement := t.Measurement
	if measurement == "" {
		measurement = defaultMeasurement
	}
	if measurement == "" {
		return nil, fmt.Errorf("%w: no measurement", ErrBadPayload)
	}

	if len(t.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrBadPayload)
	}
	for key, value := range t.Fields {
		switch value.(type) {
		case float64, bool, string:
		default:
			return nil, fmt.Errorf("%w: field %q is not a scalar", ErrBadPayload, key)
		}
	}

	ts := received
	if t.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q: %w", ErrBadPayload, t.Timestamp, err)
		}
		ts = parsed
	}

	tags := t.Tags
	if tags == nil {
		tags = map[string]string{}
	}

	return write.NewPoint(measurement, tags, t.Fields, ts), nil
}
