package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"pinger/internal/models"
)

// Sink types
const (
	SinkClickHouse = "clickhouse"
	SinkSQLite     = "sqlite"
	SinkInfluxDB   = "influxdb"
)

// Probe backends
const (
	BackendFping  = "fping"
	BackendNative = "native"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ConfigError reports configuration the agent cannot start with
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Value != nil && e.Value != "" {
		return fmt.Sprintf("invalid configuration: %s = %v - %s", e.Field, e.Value, msg)
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration: %s - %s", e.Field, msg)
	}
	return "invalid configuration: " + msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config holds all configuration for the agent
type Config struct {
	HostName    string `mapstructure:"host_name"`
	HostCountry string `mapstructure:"host_country"`
	HostState   string `mapstructure:"host_state"`
	HostCity    string `mapstructure:"host_city"`
	HostNetwork string `mapstructure:"host_network"`
	HostIP      string `mapstructure:"host_ip"`

	GeoIPCityDB string `mapstructure:"geoip_city_db"`
	GeoIPASNDB  string `mapstructure:"geoip_asn_db"`

	TargetsFile    string `mapstructure:"targets_file"`
	DataQueueLimit int    `mapstructure:"data_queue_limit"`
	ICMPInterval   int    `mapstructure:"icmp_interval"` // seconds
	DrainTimeout   int    `mapstructure:"drain_timeout"` // seconds, 0 waits forever

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	ProbeBackend       string  `mapstructure:"probe_backend"`
	FpingPath          string  `mapstructure:"fping_path"`
	FpingNumPings      int     `mapstructure:"fping_num_pings"`
	FpingBackoffFactor float64 `mapstructure:"fping_backoff_factor"`
	FpingRetries       int     `mapstructure:"fping_retries"`
	FpingMinInterval   int     `mapstructure:"fping_min_interval"` // milliseconds
	NativePrivileged   bool    `mapstructure:"native_privileged"`

	SinkType string `mapstructure:"sink_type"`

	ClickHouseURL                string `mapstructure:"clickhouse_url"`
	ClickHouseUsername           string `mapstructure:"clickhouse_username"`
	ClickHousePassword           string `mapstructure:"clickhouse_password"`
	ClickHouseDatabase           string `mapstructure:"clickhouse_database"`
	ClickHouseTable              string `mapstructure:"clickhouse_table"`
	ClickHouseInsecureSkipVerify bool   `mapstructure:"clickhouse_insecure_skip_verify"`

	SQLitePath          string `mapstructure:"sqlite_path"`
	SQLiteRetentionDays int    `mapstructure:"sqlite_retention_days"`

	InfluxURL         string `mapstructure:"influx_url"`
	InfluxToken       string `mapstructure:"influx_token"`
	InfluxOrg         string `mapstructure:"influx_org"`
	InfluxBucket      string `mapstructure:"influx_bucket"`
	InfluxMeasurement string `mapstructure:"influx_measurement"`

	MetricsListen string `mapstructure:"metrics_listen"`
}

// Host returns the host identity attached to every record
func (c *Config) Host() models.Host {
	return models.Host{
		Name: c.HostName,
		Location: models.Location{
			Country: c.HostCountry,
			State:   c.HostState,
			City:    c.HostCity,
			Network: c.HostNetwork,
		},
	}
}

// Interval returns the pause between probe cycles
func (c *Config) Interval() time.Duration {
	return time.Duration(c.ICMPInterval) * time.Second
}

// Drain returns how long shutdown waits for buffered batches
func (c *Config) Drain() time.Duration {
	return time.Duration(c.DrainTimeout) * time.Second
}

// MinInterval returns the minimum spacing between probes
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.FpingMinInterval) * time.Millisecond
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HostName) == "" {
		return &ConfigError{Field: "HOST_NAME", Message: "required variable not set"}
	}
	if c.HostIP != "" && net.ParseIP(c.HostIP) == nil {
		return &ConfigError{Field: "HOST_IP", Value: c.HostIP, Message: "must be an IP address"}
	}
	if c.TargetsFile == "" {
		return &ConfigError{Field: "TARGETS_FILE", Message: "cannot be empty"}
	}
	if c.DrainTimeout < 0 {
		return &ConfigError{Field: "DRAIN_TIMEOUT", Value: c.DrainTimeout, Message: "must not be negative"}
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return &ConfigError{Field: "LOG_LEVEL", Value: c.LogLevel,
			Message: "must be a valid log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)"}
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return &ConfigError{Field: "LOG_FORMAT", Value: c.LogFormat, Message: "must be auto, text or json"}
	}

	switch c.ProbeBackend {
	case BackendFping:
		if c.FpingPath == "" {
			return &ConfigError{Field: "FPING_PATH", Message: "cannot be empty"}
		}
	case BackendNative:
	default:
		return &ConfigError{Field: "PROBE_BACKEND", Value: c.ProbeBackend, Message: "must be fping or native"}
	}
	if c.FpingNumPings < 1 || c.FpingNumPings > 100 {
		return &ConfigError{Field: "FPING_NUM_PINGS", Value: c.FpingNumPings, Message: "must be between 1 and 100"}
	}
	if c.FpingRetries < 0 {
		return &ConfigError{Field: "FPING_RETRIES", Value: c.FpingRetries, Message: "must not be negative"}
	}
	if c.FpingBackoffFactor < 1 || c.FpingBackoffFactor > 5 {
		return &ConfigError{Field: "FPING_BACKOFF_FACTOR", Value: c.FpingBackoffFactor, Message: "must be between 1 and 5"}
	}
	if c.FpingMinInterval < 1 {
		return &ConfigError{Field: "FPING_MIN_INTERVAL", Value: c.FpingMinInterval, Message: "must be at least 1 ms"}
	}

	switch c.SinkType {
	case SinkClickHouse:
		return c.validateClickHouse()
	case SinkSQLite:
		if c.SQLitePath == "" {
			return &ConfigError{Field: "SQLITE_PATH", Message: "cannot be empty"}
		}
		if c.SQLiteRetentionDays < 0 {
			return &ConfigError{Field: "SQLITE_RETENTION_DAYS", Value: c.SQLiteRetentionDays, Message: "must not be negative"}
		}
	case SinkInfluxDB:
		return c.validateInflux()
	default:
		return &ConfigError{Field: "SINK_TYPE", Value: c.SinkType, Message: "must be clickhouse, sqlite or influxdb"}
	}
	return nil
}

func (c *Config) validateClickHouse() error {
	required := []struct{ field, value string }{
		{"CLICKHOUSE_URL", c.ClickHouseURL},
		{"CLICKHOUSE_USERNAME", c.ClickHouseUsername},
		{"CLICKHOUSE_DATABASE", c.ClickHouseDatabase},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Field: r.field, Message: "required variable not set"}
		}
	}
	if _, err := url.Parse(c.ClickHouseURL); err != nil {
		return &ConfigError{Field: "CLICKHOUSE_URL", Value: c.ClickHouseURL, Message: "invalid URL", Err: err}
	}
	if !tableName.MatchString(c.ClickHouseTable) {
		return &ConfigError{Field: "CLICKHOUSE_TABLE", Value: c.ClickHouseTable, Message: "invalid table name"}
	}
	return nil
}

func (c *Config) validateInflux() error {
	required := []struct{ field, value string }{
		{"INFLUX_URL", c.InfluxURL},
		{"INFLUX_ORG", c.InfluxOrg},
		{"INFLUX_BUCKET", c.InfluxBucket},
		{"INFLUX_MEASUREMENT", c.InfluxMeasurement},
	}
	for _, r := range required {
		if r.value == "" {
			return &ConfigError{Field: r.field, Message: "required variable not set"}
		}
	}
	if !strings.HasPrefix(c.InfluxURL, "http://") && !strings.HasPrefix(c.InfluxURL, "https://") {
		return &ConfigError{Field: "INFLUX_URL", Value: c.InfluxURL, Message: "invalid URL format"}
	}
	return nil
}
