package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pinger/internal/buffer"
	"pinger/internal/config"
	"pinger/internal/database"
	"pinger/internal/geo"
	"pinger/internal/influx"
	"pinger/internal/logging"
	"pinger/internal/metrics"
	"pinger/internal/models"
	"pinger/internal/monitor"
	"pinger/internal/ping"
	"pinger/internal/targets"
	"pinger/internal/web"
)

// setup holds everything built from configuration before the agent starts
type setup struct {
	cfg     config.Config
	logger  *slog.Logger
	host    models.Host
	targets *targets.Registry
	locator *geo.Locator
}

func load() (*setup, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, &config.ConfigError{Field: "log_level", Value: cfg.LogLevel, Message: "invalid log level", Err: err}
	}
	slog.SetDefault(logger)

	s := &setup{cfg: cfg, logger: logger, host: cfg.Host()}

	opts := []targets.Option{targets.WithLogger(logger)}
	if cfg.GeoIPCityDB != "" || cfg.GeoIPASNDB != "" {
		s.locator, err = geo.Open(cfg.GeoIPCityDB, cfg.GeoIPASNDB)
		if err != nil {
			return nil, &config.ConfigError{Field: "geoip", Message: "failed to open GeoIP database", Err: err}
		}
		opts = append(opts, targets.WithLocator(s.locator))

		if cfg.HostIP != "" {
			if loc, ok := s.locator.Locate(cfg.HostIP); ok {
				s.host.Location = s.host.Location.Merge(loc)
			}
		}
	}

	entries, err := targets.ReadFile(cfg.TargetsFile)
	if err != nil {
		s.close()
		return nil, err
	}
	s.targets, err = targets.Load(entries, opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *setup) close() {
	if s.locator != nil {
		s.locator.Close()
	}
}

func validate(w io.Writer) error {
	s, err := load()
	if err != nil {
		return err
	}
	defer s.close()

	fmt.Fprintf(w, "host %s, %d targets, sink %s\n", s.host.Name, s.targets.Len(), s.cfg.SinkType)
	for _, addr := range s.targets.Addresses() {
		t, _ := s.targets.Lookup(addr)
		fmt.Fprintf(w, "  %-15s %s\n", t.Address, t.Name)
	}
	return nil
}

func printSchema(w io.Writer) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	switch cfg.SinkType {
	case config.SinkClickHouse:
		fmt.Fprintln(w, database.Schema(database.ClickHouse, cfg.ClickHouseTable))
	case config.SinkSQLite:
		fmt.Fprintln(w, database.Schema(database.SQLite, database.LocalTable))
	default:
		return fmt.Errorf("sink %q has no schema", cfg.SinkType)
	}
	return nil
}

// openSink connects the configured sink
func openSink(ctx context.Context, cfg config.Config) (models.Sink, error) {
	switch cfg.SinkType {
	case config.SinkClickHouse:
		opts, err := database.ClickHouseOptions(cfg.ClickHouseURL, cfg.ClickHouseUsername,
			cfg.ClickHousePassword, cfg.ClickHouseDatabase, cfg.ClickHouseInsecureSkipVerify)
		if err != nil {
			return nil, &config.ConfigError{Field: "clickhouse_url", Value: cfg.ClickHouseURL, Message: "invalid url", Err: err}
		}
		return database.OpenClickHouse(opts, cfg.ClickHouseTable), nil

	case config.SinkSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath, database.LocalTable)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil

	case config.SinkInfluxDB:
		return influx.New(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxMeasurement), nil
	}
	return nil, &config.ConfigError{Field: "sink_type", Value: cfg.SinkType, Message: "unsupported sink"}
}

func newPinger(cfg config.Config) models.Pinger {
	params := ping.Params{
		Count:         cfg.FpingNumPings,
		Retries:       cfg.FpingRetries,
		BackoffFactor: cfg.FpingBackoffFactor,
		MinInterval:   cfg.MinInterval(),
	}
	if cfg.ProbeBackend == config.BackendNative {
		return ping.NewNative(params, cfg.NativePrivileged)
	}
	return ping.NewFping(cfg.FpingPath, params)
}

// shutdownContext is cancelled by the first of sigs. Signal handling is then
// released so a second signal terminates a drain that is taking too long.
func shutdownContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func run(ctx context.Context) error {
	s, err := load()
	if err != nil {
		return err
	}
	defer s.close()
	cfg, logger := s.cfg, s.logger

	ctx, stop := shutdownContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}

	buf := buffer.New(cfg.DataQueueLimit, logger)
	m := metrics.New(func() float64 { return float64(buf.Len()) })

	opts := monitor.DefaultOptions()
	opts.Interval = cfg.Interval()
	opts.DrainTimeout = cfg.Drain()
	if cfg.SinkType == config.SinkSQLite {
		opts.Retention = time.Duration(cfg.SQLiteRetentionDays) * 24 * time.Hour
	}

	mon := monitor.New(opts, monitor.Deps{
		Host:    s.host,
		Targets: s.targets,
		Pinger:  newPinger(cfg),
		Buffer:  buf,
		Sink:    sink,
		Metrics: m,
		Logger:  logger,
	})

	var srv *web.Server
	if cfg.MetricsListen != "" {
		srv = web.New(cfg.MetricsListen, m.Registry, func() web.Status {
			return web.Status{
				State:      mon.State().String(),
				QueueDepth: buf.Len(),
				QueueLimit: buf.Cap(),
				Dropped:    buf.Dropped(),
			}
		}, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	go func() {
		err := targets.Watch(ctx, cfg.TargetsFile, logger, func() {
			logger.Warn("Targets file changed, restart to apply", "file", cfg.TargetsFile)
		})
		if err != nil {
			logger.Warn("Not watching targets file", "file", cfg.TargetsFile, "error", err)
		}
	}()

	if err := mon.Start(); err != nil {
		return err
	}
	logger.Info("Pinger started", "host", s.host.Name, "targets", s.targets.Len(), "sink", cfg.SinkType)

	<-ctx.Done()
	logger.Info("Shutting down, signal again to exit immediately...")
	mon.Stop()
	mon.Wait()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to stop metrics server", "error", err)
		}
	}
	return nil
}
