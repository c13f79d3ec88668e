// Package influxdb provides InfluxDB v2 connectivity for fluxline.
//
// It wraps the official influxdb-client-go v2 library with fluxline-specific
// patterns for connection management, batch writing, and querying.
//
// # Purpose
//
// This package is the single gateway to the time-series store:
//   - Batched point writes for the CSV ingestion pipeline and MQTT feed
//   - Single-point writes for the sample writer
//   - Flux range queries for the read command
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "demo-token",
//	    Org:    "demo-org",
//	    Bucket: "demo-bucket",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.WritePoints(ctx, points...)
//
// # Error Handling
//
// Writes use the blocking API: every flush returns its error directly, so
// the ingestion pipeline can abort on the first failure with exact counts
// of what was written. There is no buffering and no automatic retry here.
package influxdb
