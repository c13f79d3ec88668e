package influxdb_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/fluxline/fluxline/internal/infrastructure/config"
	"github.com/fluxline/fluxline/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match the docker-compose sandbox.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		URL:    "http://127.0.0.1:8086",
		Token:  "demo-token",
		Org:    "demo-org",
		Bucket: "demo-bucket",
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := influxdb.Connect(ctx, testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

// =============================================================================
// Connection Tests (integration)
// =============================================================================

func TestConnect(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v after Connect()", err)
	}

	if client.Bucket() != "demo-bucket" {
		t.Errorf("Bucket() = %q, want %q", client.Bucket(), "demo-bucket")
	}
}

func TestConnect_UnreachableServer(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1" // nothing listens here

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, cfg)
	if err == nil {
		t.Fatal("Connect() should fail against an unreachable server")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// Write Tests (integration)
// =============================================================================

func TestWritePoints_RoundTrip(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	point := write.NewPoint(
		"fluxline_test",
		map[string]string{"host": "test-host"},
		map[string]interface{}{"value": 42.5},
		now,
	)
	if err := client.WritePoints(ctx, point); err != nil {
		t.Fatalf("WritePoints() error = %v", err)
	}

	records, err := client.QueryRecords(ctx, influxdb.RangeQuery{
		Bucket:      client.Bucket(),
		Measurement: "fluxline_test",
		Field:       "value",
		Start:       "-5m",
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("QueryRecords() error = %v", err)
	}
	if len(records) == 0 {
		t.Fatal("QueryRecords() returned no records for freshly written point")
	}
	if records[0].Tags["host"] != "test-host" {
		t.Errorf("Tags[host] = %q, want %q", records[0].Tags["host"], "test-host")
	}
}

func TestWritePoints_EmptyBatchIsNoOp(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	if err := client.WritePoints(context.Background()); err != nil {
		t.Errorf("WritePoints() with no points error = %v, want nil", err)
	}
}

// =============================================================================
// Query Building Tests (no server required)
// =============================================================================

func TestRangeQuery_Flux(t *testing.T) {
	q := influxdb.RangeQuery{
		Bucket:      "metrics",
		Measurement: "cpu",
		Field:       "usage_user",
		Start:       "-1h",
		Limit:       10,
	}

	flux := q.Flux()

	for _, want := range []string{
		`from(bucket: "metrics")`,
		`range(start: -1h)`,
		`r._measurement == "cpu"`,
		`r._field == "usage_user"`,
		`limit(n: 10)`,
	} {
		if !strings.Contains(flux, want) {
			t.Errorf("Flux() missing %q in:\n%s", want, flux)
		}
	}
}

func TestRangeQuery_Validate(t *testing.T) {
	valid := influxdb.RangeQuery{
		Bucket:      "metrics",
		Measurement: "cpu",
		Field:       "usage_user",
		Start:       "-1h",
		Limit:       10,
	}

	tests := []struct {
		name    string
		mutate  func(*influxdb.RangeQuery)
		wantErr bool
	}{
		{name: "valid", mutate: func(q *influxdb.RangeQuery) {}},
		{name: "missing bucket", mutate: func(q *influxdb.RangeQuery) { q.Bucket = "" }, wantErr: true},
		{name: "missing measurement", mutate: func(q *influxdb.RangeQuery) { q.Measurement = "" }, wantErr: true},
		{name: "missing field", mutate: func(q *influxdb.RangeQuery) { q.Field = "" }, wantErr: true},
		{name: "missing start", mutate: func(q *influxdb.RangeQuery) { q.Start = "" }, wantErr: true},
		{name: "zero limit", mutate: func(q *influxdb.RangeQuery) { q.Limit = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.mutate(&q)

			err := q.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, influxdb.ErrInvalidQuery) {
				t.Errorf("Validate() error = %v, want ErrInvalidQuery", err)
			}
		})
	}
}
