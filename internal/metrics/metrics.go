// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the collectors updated by the probe cycle and sink writer
type Metrics struct {
	Registry *prometheus.Registry

	Cycles         prometheus.Counter
	ProbeFailures  prometheus.Counter
	ParseErrors    prometheus.Counter
	BatchesQueued  prometheus.Counter
	BatchesDropped prometheus.Counter
	BatchesWritten prometheus.Counter
	RecordsWritten prometheus.Counter
	WriteFailures  prometheus.Counter
	ProbeDuration  prometheus.Histogram
	TargetLoss     *prometheus.GaugeVec
}

// New creates the collectors and registers them on a fresh registry.
// queueDepth is sampled on every scrape.
func New(queueDepth func() float64) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_probe_cycles_total",
			Help: "Probe cycles started",
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_probe_failures_total",
			Help: "Probe cycles that produced no output",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_parse_errors_total",
			Help: "Probe output lines skipped by the parser",
		}),
		BatchesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_batches_queued_total",
			Help: "Batches accepted into the insert queue",
		}),
		BatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_batches_dropped_total",
			Help: "Batches dropped because the insert queue was full",
		}),
		BatchesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_batches_written_total",
			Help: "Batches written to the sink",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_records_written_total",
			Help: "Measurement records written to the sink",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pinger_write_failures_total",
			Help: "Failed sink write attempts",
		}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pinger_probe_duration_seconds",
			Help:    "Wall time of one probe round",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		TargetLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pinger_target_loss_percent",
				Help: "Packet loss of the latest cycle per target",
			},
			[]string{"target", "ip"},
		),
	}

	m.Registry.MustRegister(
		m.Cycles,
		m.ProbeFailures,
		m.ParseErrors,
		m.BatchesQueued,
		m.BatchesDropped,
		m.BatchesWritten,
		m.RecordsWritten,
		m.WriteFailures,
		m.ProbeDuration,
		m.TargetLoss,
	)
	if queueDepth != nil {
		m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pinger_queue_depth",
			Help: "Batches waiting in the insert queue",
		}, queueDepth))
	}
	return m
}
