package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for fluxline.
// All configuration is loaded from YAML and can be overridden by environment
// variables; command-line flags override both (handled in cmd/fluxline).
type Config struct {
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Runlog   RunlogConfig   `yaml:"runlog"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// InfluxDBConfig contains InfluxDB v2 connection settings.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains MQTT broker connection settings for the live feed.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	Topic     string           `yaml:"topic"`
	KeepAlive int              `yaml:"keep_alive"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RunlogConfig contains settings for the SQLite run-history ledger.
type RunlogConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// IngestConfig contains default settings for the CSV ingestion pipeline.
// Every field can be overridden per-run by command-line flags.
type IngestConfig struct {
	CSVDir          string   `yaml:"csv_dir"`
	Measurement     string   `yaml:"measurement"`
	TimestampLayout string   `yaml:"timestamp_layout"`
	Timezone        string   `yaml:"timezone"`
	BatchSize       int      `yaml:"batch_size"`
	TagColumns      []string `yaml:"tag_columns"`
}

// TimezoneNaive is the sentinel timezone name meaning "do not convert
// timestamps"; parsed values are taken as already being in UTC.
const TimezoneNaive = "NAIVE"

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLUXLINE_SECTION_KEY
// For example: FLUXLINE_INFLUXDB_TOKEN, FLUXLINE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file. An empty path skips the
//     file stage entirely (defaults + env only), so the tool works without
//     any config file present.
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// InfluxDB defaults match the docker-compose sandbox this tool feeds.
func defaultConfig() *Config {
	return &Config{
		InfluxDB: InfluxDBConfig{
			URL:    "http://localhost:8086",
			Token:  "demo-token",
			Org:    "demo-org",
			Bucket: "demo-bucket",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fluxline-feed",
			},
			QoS:       1,
			Topic:     "fluxline/metrics",
			KeepAlive: 30,
		},
		Runlog: RunlogConfig{
			Enabled:     false,
			Path:        "./data/fluxline.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Ingest: IngestConfig{
			CSVDir:          "data/experiment_opc_log",
			Measurement:     "experiment_opc",
			TimestampLayout: "2006-01-02 15:04:05",
			Timezone:        "UTC",
			BatchSize:       500,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLUXLINE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// InfluxDB
	if v := os.Getenv("FLUXLINE_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("FLUXLINE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("FLUXLINE_INFLUXDB_ORG"); v != "" {
		cfg.InfluxDB.Org = v
	}
	if v := os.Getenv("FLUXLINE_INFLUXDB_BUCKET"); v != "" {
		cfg.InfluxDB.Bucket = v
	}

	// Logging
	if v := os.Getenv("FLUXLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("FLUXLINE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLUXLINE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLUXLINE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FLUXLINE_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// Runlog
	if v := os.Getenv("FLUXLINE_RUNLOG_PATH"); v != "" {
		cfg.Runlog.Path = v
	}

	// Ingest defaults
	if v := os.Getenv("FLUXLINE_CSV_DIR"); v != "" {
		cfg.Ingest.CSVDir = v
	}
	if v := os.Getenv("FLUXLINE_MEASUREMENT"); v != "" {
		cfg.Ingest.Measurement = v
	}
	if v := os.Getenv("FLUXLINE_TIMESTAMP_LAYOUT"); v != "" {
		cfg.Ingest.TimestampLayout = v
	}
	if v := os.Getenv("FLUXLINE_TIMEZONE"); v != "" {
		cfg.Ingest.Timezone = v
	}
	if v := os.Getenv("FLUXLINE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.BatchSize = n
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}
	if c.InfluxDB.Org == "" {
		errs = append(errs, "influxdb.org is required")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.Runlog.Enabled && c.Runlog.Path == "" {
		errs = append(errs, "runlog.path is required when runlog is enabled")
	}

	if c.Ingest.BatchSize < 1 {
		errs = append(errs, "ingest.batch_size must be positive")
	}
	if c.Ingest.TimestampLayout == "" {
		errs = append(errs, "ingest.timestamp_layout is required")
	}
	if err := ValidateTimezone(c.Ingest.Timezone); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateTimezone checks that a timezone name is either the NAIVE sentinel
// or a loadable IANA zone name.
func ValidateTimezone(name string) error {
	if strings.EqualFold(name, TimezoneNaive) {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("ingest.timezone: unknown time zone %q", name)
	}
	return nil
}

// GetMQTTKeepAlive returns the MQTT keep-alive interval as a Duration.
func (c *Config) GetMQTTKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}
