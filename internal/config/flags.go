package config

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var defaults = map[string]interface{}{
	"host_name":                       "",
	"host_country":                    "",
	"host_state":                      "",
	"host_city":                       "",
	"host_network":                    "",
	"host_ip":                         "",
	"geoip_city_db":                   "",
	"geoip_asn_db":                    "",
	"targets_file":                    "targets.json",
	"data_queue_limit":                50,
	"icmp_interval":                   0,
	"drain_timeout":                   0,
	"log_level":                       "INFO",
	"log_format":                      "auto",
	"probe_backend":                   BackendFping,
	"fping_path":                      "fping",
	"fping_num_pings":                 5,
	"fping_backoff_factor":            1.0,
	"fping_retries":                   1,
	"fping_min_interval":              100,
	"native_privileged":               false,
	"sink_type":                       SinkClickHouse,
	"clickhouse_url":                  "",
	"clickhouse_username":             "",
	"clickhouse_password":             "",
	"clickhouse_database":             "",
	"clickhouse_table":                "pinger",
	"clickhouse_insecure_skip_verify": false,
	"sqlite_path":                     "pinger.db",
	"sqlite_retention_days":           0,
	"influx_url":                      "",
	"influx_token":                    "",
	"influx_org":                      "",
	"influx_bucket":                   "",
	"influx_measurement":              "pinger",
	"metrics_listen":                  "",
}

// BindFlags registers the command-line overrides on fs and binds them to v
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("targets", "", "Targets file (overrides TARGETS_FILE)")
	fs.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	fs.String("sink", "", "Sink type: clickhouse, sqlite or influxdb (overrides SINK_TYPE)")

	_ = v.BindPFlag("targets_file", fs.Lookup("targets"))
	_ = v.BindPFlag("log_level", fs.Lookup("log-level"))
	_ = v.BindPFlag("sink_type", fs.Lookup("sink"))
}

// Load reads configuration from the environment, layered over the optional
// config file. Flags bound with BindFlags take precedence over both.
func Load(v *viper.Viper, file string) (Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &ConfigError{Field: "config", Value: file, Message: "failed to read config file", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &ConfigError{Message: "failed to decode configuration, numeric variables must be numbers", Err: err}
	}

	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	if cfg.DataQueueLimit < 1 {
		cfg.DataQueueLimit = 1
	}
	if cfg.ICMPInterval < 0 {
		cfg.ICMPInterval = 0
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsConfigError reports whether err is a fatal configuration error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
