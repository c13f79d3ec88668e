// fluxline - CSV and live metric ingestion for InfluxDB v2.
//
// fluxline populates an InfluxDB instance (typically the local
// InfluxDB + Grafana sandbox) with metrics from three sources:
//
//	ingest  CSV files batched into points
//	write   a single sample point
//	feed    live MQTT telemetry
//
// and reads back recent datapoints with the query command.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/fluxline/fluxline/internal/feed"
	"github.com/fluxline/fluxline/internal/infrastructure/config"
	"github.com/fluxline/fluxline/internal/infrastructure/database"
	"github.com/fluxline/fluxline/internal/infrastructure/influxdb"
	"github.com/fluxline/fluxline/internal/infrastructure/logging"
	"github.com/fluxline/fluxline/internal/infrastructure/mqtt"
	"github.com/fluxline/fluxline/internal/ingest"
	"github.com/fluxline/fluxline/internal/runlog"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM); the feed command
	// relies on this for graceful shutdown, ingest for early abort.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, args []string) error {
	app := kingpin.New("fluxline", "CSV and live metric ingestion for InfluxDB v2.")
	app.Version(fmt.Sprintf("%s (commit %s, built %s)", version, commit, date))
	app.HelpFlag.Short('h')

	configPath := app.Flag("config", "Path to optional YAML config file.").
		Envar("FLUXLINE_CONFIG").String()

	// Store connection flags, shared by every command. Empty means
	// "use the config file value (or its default)".
	urlFlag := app.Flag("url", "InfluxDB URL.").Envar("FLUXLINE_INFLUXDB_URL").String()
	tokenFlag := app.Flag("token", "InfluxDB API token.").Envar("FLUXLINE_INFLUXDB_TOKEN").String()
	orgFlag := app.Flag("org", "InfluxDB organization.").Envar("FLUXLINE_INFLUXDB_ORG").String()
	bucketFlag := app.Flag("bucket", "InfluxDB bucket.").Envar("FLUXLINE_INFLUXDB_BUCKET").String()

	// ingest
	ingestCmd := app.Command("ingest", "Ingest a directory of CSV files into InfluxDB.")
	csvDir := ingestCmd.Flag("csv-dir", "Directory containing CSV files.").
		Envar("FLUXLINE_CSV_DIR").String()
	ingestMeasurement := ingestCmd.Flag("measurement", "Measurement name used for all points.").
		Envar("FLUXLINE_MEASUREMENT").String()
	timestampLayout := ingestCmd.Flag("timestamp-layout", "Go time layout for the timestamp column.").
		Envar("FLUXLINE_TIMESTAMP_LAYOUT").String()
	timezone := ingestCmd.Flag("timezone", "Timezone applied to naive timestamps; NAIVE keeps them as-is.").
		Envar("FLUXLINE_TIMEZONE").String()
	batchSize := ingestCmd.Flag("batch-size", "Number of points per write batch.").
		Envar("FLUXLINE_BATCH_SIZE").Int()
	tagColumns := ingestCmd.Flag("tag", "Column to write as a tag instead of a field (repeatable).").
		Envar("FLUXLINE_TAG_COLUMNS").Strings()

	// write
	writeCmd := app.Command("write", "Write a single sample point.")
	writeMeasurement := writeCmd.Flag("measurement", "Measurement name.").
		Envar("FLUXLINE_MEASUREMENT").Default("cpu").String()
	writeHost := writeCmd.Flag("host", "Value for the host tag.").
		Envar("FLUXLINE_HOST").Default("server01").String()
	writeField := writeCmd.Flag("field", "Field name.").
		Envar("FLUXLINE_FIELD").Default("usage_user").String()
	writeValue := writeCmd.Flag("value", "Field value; random 0-100 when omitted.").
		Envar("FLUXLINE_VALUE").String()

	// query
	queryCmd := app.Command("query", "Fetch recent datapoints with Flux.")
	queryMeasurement := queryCmd.Flag("measurement", "Measurement to filter on.").
		Envar("FLUXLINE_MEASUREMENT").Default("cpu").String()
	queryField := queryCmd.Flag("field", "Field to filter on.").
		Envar("FLUXLINE_FIELD").Default("usage_user").String()
	queryRange := queryCmd.Flag("range", "Flux range start, e.g. -1h.").
		Envar("FLUXLINE_RANGE").Default("-1h").String()
	queryLimit := queryCmd.Flag("limit", "Maximum number of datapoints.").
		Envar("FLUXLINE_LIMIT").Default("10").Int()

	// feed
	feedCmd := app.Command("feed", "Consume MQTT telemetry and write it to InfluxDB.")
	feedTopic := feedCmd.Flag("topic", "MQTT topic to subscribe to.").
		Envar("FLUXLINE_MQTT_TOPIC").String()
	feedMeasurement := feedCmd.Flag("measurement", "Default measurement for payloads that name none.").
		Envar("FLUXLINE_MEASUREMENT").Default("telemetry").String()
	feedBatchSize := feedCmd.Flag("batch-size", "Number of points per write batch.").
		Envar("FLUXLINE_BATCH_SIZE").Default("100").Int()
	feedFlushInterval := feedCmd.Flag("flush-interval", "Maximum time a partial batch waits.").
		Envar("FLUXLINE_FLUSH_INTERVAL").Default("5s").Duration()

	// runs
	runsCmd := app.Command("runs", "List recent ingestion runs from the run log.")
	runsLimit := runsCmd.Flag("limit", "Maximum number of runs.").Default("20").Int()

	command, err := app.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Explicit flags (and their env vars) win over the config file.
	if *urlFlag != "" {
		cfg.InfluxDB.URL = *urlFlag
	}
	if *tokenFlag != "" {
		cfg.InfluxDB.Token = *tokenFlag
	}
	if *orgFlag != "" {
		cfg.InfluxDB.Org = *orgFlag
	}
	if *bucketFlag != "" {
		cfg.InfluxDB.Bucket = *bucketFlag
	}

	log := logging.New(cfg.Logging, version)

	switch command {
	case ingestCmd.FullCommand():
		opts := ingest.Options{
			CSVDir:          cfg.Ingest.CSVDir,
			Measurement:     cfg.Ingest.Measurement,
			TimestampLayout: cfg.Ingest.TimestampLayout,
			Timezone:        cfg.Ingest.Timezone,
			BatchSize:       cfg.Ingest.BatchSize,
			TagColumns:      cfg.Ingest.TagColumns,
		}
		if *csvDir != "" {
			opts.CSVDir = *csvDir
		}
		if *ingestMeasurement != "" {
			opts.Measurement = *ingestMeasurement
		}
		if *timestampLayout != "" {
			opts.TimestampLayout = *timestampLayout
		}
		if *timezone != "" {
			opts.Timezone = *timezone
		}
		if *batchSize > 0 {
			opts.BatchSize = *batchSize
		}
		if len(*tagColumns) > 0 {
			opts.TagColumns = *tagColumns
		}
		return runIngest(ctx, cfg, log, opts)

	case writeCmd.FullCommand():
		return runWrite(ctx, cfg, log, *writeMeasurement, *writeHost, *writeField, *writeValue)

	case queryCmd.FullCommand():
		return runQuery(ctx, cfg, influxdb.RangeQuery{
			Bucket:      cfg.InfluxDB.Bucket,
			Measurement: *queryMeasurement,
			Field:       *queryField,
			Start:       *queryRange,
			Limit:       *queryLimit,
		})

	case feedCmd.FullCommand():
		topic := cfg.MQTT.Topic
		if *feedTopic != "" {
			topic = *feedTopic
		}
		return runFeed(ctx, cfg, log, topic, feed.Options{
			Measurement:   *feedMeasurement,
			BatchSize:     *feedBatchSize,
			FlushInterval: *feedFlushInterval,
		})

	case runsCmd.FullCommand():
		return runRuns(ctx, cfg, *runsLimit)
	}

	return fmt.Errorf("unknown command %q", command)
}

// runIngest executes the CSV ingestion pipeline and prints the summary.
//
// The summary always reflects exactly what was written, including when the
// run aborts on a write failure after one or more successful flushes.
func runIngest(ctx context.Context, cfg *config.Config, log *logging.Logger, opts ingest.Options) error {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer client.Close()
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	pipe, err := ingest.New(opts, client)
	if err != nil {
		return err
	}
	pipe.SetLogger(log.With("component", "ingest"))

	started := time.Now().UTC()
	stats, runErr := pipe.Run(ctx)
	finished := time.Now().UTC()

	if recordErr := recordRun(ctx, cfg, log, opts, started, finished, stats, runErr); recordErr != nil {
		// The run log is best-effort bookkeeping; never fail a run over it.
		log.Warn("recording run failed", "error", recordErr)
	}

	fmt.Println(stats.Summary())
	return runErr
}

// recordRun writes one entry to the run-history ledger, if enabled.
func recordRun(ctx context.Context, cfg *config.Config, log *logging.Logger,
	opts ingest.Options, started, finished time.Time, stats *ingest.Stats, runErr error,
) error {
	if !cfg.Runlog.Enabled {
		return nil
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Runlog.Path,
		WALMode:     cfg.Runlog.WALMode,
		BusyTimeout: cfg.Runlog.BusyTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing run log database", "error", closeErr)
		}
	}()

	repo, err := runlog.NewSQLiteRepository(ctx, db.DB)
	if err != nil {
		return err
	}

	outcome := "ok"
	if runErr != nil {
		outcome = runErr.Error()
	}

	return repo.Record(ctx, &runlog.Run{
		CSVDir:         opts.CSVDir,
		Measurement:    opts.Measurement,
		StartedAt:      started,
		FinishedAt:     finished,
		FilesProcessed: stats.FilesProcessed,
		PointsWritten:  stats.PointsWritten,
		ValuesSkipped:  stats.ValuesSkipped,
		RowsSkipped:    stats.RowsSkipped,
		SkipReasons:    stats.Reasons,
		Outcome:        outcome,
	})
}

// runWrite writes a single sample point, mirroring the smallest possible
// "is the stack up?" smoke test against the sandbox.
func runWrite(ctx context.Context, cfg *config.Config, log *logging.Logger,
	measurement, host, field, rawValue string,
) error {
	value := rand.Float64() * 100 //nolint:gosec // demo data, not crypto
	if rawValue != "" {
		parsed, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			return fmt.Errorf("parsing --value: %w", err)
		}
		value = parsed
	}

	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer client.Close()

	point := write.NewPoint(
		measurement,
		map[string]string{"host": host},
		map[string]interface{}{field: value},
		time.Now().UTC(),
	)
	if err := client.WritePoints(ctx, point); err != nil {
		return err
	}

	log.Info("point written", "measurement", measurement, "host", host)
	fmt.Printf("Wrote point measurement=%s host=%s %s=%.2f to %s (org=%s) at %s\n",
		measurement, host, field, value,
		cfg.InfluxDB.Bucket, cfg.InfluxDB.Org, cfg.InfluxDB.URL)

	return nil
}

// runQuery fetches recent datapoints and prints them, newest first.
func runQuery(ctx context.Context, cfg *config.Config, q influxdb.RangeQuery) error {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer client.Close()

	records, err := client.QueryRecords(ctx, q)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No data points found.")
		return nil
	}

	fmt.Printf("Latest %d points for measurement=%s field=%s in bucket=%s (org=%s)\n",
		len(records), q.Measurement, q.Field, q.Bucket, cfg.InfluxDB.Org)
	for _, rec := range records {
		line := fmt.Sprintf("%s value=%v", rec.Time.Format(time.RFC3339), rec.Value)
		for key, val := range rec.Tags {
			line += fmt.Sprintf(" %s=%s", key, val)
		}
		fmt.Println(line)
	}

	return nil
}

// runFeed consumes MQTT telemetry until interrupted, then flushes and
// prints the session counters.
func runFeed(ctx context.Context, cfg *config.Config, log *logging.Logger,
	topic string, opts feed.Options,
) error {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer client.Close()

	consumer, err := feed.New(opts, client)
	if err != nil {
		return err
	}
	consumer.SetLogger(log.With("component", "feed"))
	consumer.Start()

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log.With("component", "mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2 in config
	if err := mqttClient.Subscribe(topic, qos, consumer.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	log.Info("feed started",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"topic", topic,
	)

	<-ctx.Done()
	log.Info("shutdown signal received, flushing")

	if err := consumer.Close(); err != nil {
		return err
	}

	stats := consumer.Stats()
	fmt.Printf("received=%d written=%d skipped=%d write_errors=%d\n",
		stats.Received, stats.Written, stats.Skipped, stats.WriteErrors)

	return nil
}

// runRuns prints recent entries from the run-history ledger.
func runRuns(ctx context.Context, cfg *config.Config, limit int) error {
	if !cfg.Runlog.Enabled {
		return fmt.Errorf("run log is disabled (set runlog.enabled in config)")
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Runlog.Path,
		WALMode:     cfg.Runlog.WALMode,
		BusyTimeout: cfg.Runlog.BusyTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	repo, err := runlog.NewSQLiteRepository(ctx, db.DB)
	if err != nil {
		return err
	}

	runs, err := repo.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %s  files=%d points=%d skipped=%d outcome=%s\n",
			r.StartedAt.Format(time.RFC3339), r.CSVDir,
			r.FilesProcessed, r.PointsWritten, r.ValuesSkipped+r.RowsSkipped, r.Outcome)
	}

	return nil
}
