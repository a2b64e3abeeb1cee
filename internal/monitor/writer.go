package monitor

import (
	"context"
	"log/slog"
	"time"

	"pinger/internal/metrics"
	"pinger/internal/models"
)

// Writer delivers batches to the sink, retrying each one until it succeeds
type Writer struct {
	sink    models.Sink
	delay   time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) bool
}

// NewWriter creates a writer pausing delay between failed attempts
func NewWriter(sink models.Sink, delay time.Duration, m *metrics.Metrics, logger *slog.Logger) *Writer {
	return &Writer{
		sink:    sink,
		delay:   delay,
		metrics: m,
		logger:  logger,
		sleep:   sleep,
	}
}

// Write stores batch, retrying the same batch after every failure. An
// attempt in progress is never interrupted; ctx is only checked while
// waiting between attempts, and Write returns false if it ends there.
func (w *Writer) Write(ctx context.Context, batch models.Batch) bool {
	writeCtx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		err := w.sink.Write(writeCtx, batch)
		if err == nil {
			w.metrics.BatchesWritten.Inc()
			w.metrics.RecordsWritten.Add(float64(batch.Len()))
			w.logger.Debug("Inserted data for timestamp", "timestamp", batch.CapturedAt,
				"records", batch.Len(), "attempts", attempt)
			return true
		}

		w.metrics.WriteFailures.Inc()
		w.logger.Error("Insert failed for timestamp", "timestamp", batch.CapturedAt,
			"attempt", attempt, "error", err)

		if !w.sleep(ctx, w.delay) {
			return false
		}
	}
}
