package monitor

import (
	"context"
	"time"
)

// probeLoop runs probe cycles until Stop. It is the only producer of the
// buffer and closes it on exit.
func (m *Monitor) probeLoop() {
	defer m.wg.Done()
	defer m.buf.Close()

	addresses := m.targets.Addresses()
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		delay := m.opts.Interval
		if !m.performCycle(addresses) && delay == 0 {
			delay = m.opts.FailureDelay
		}
		if delay > 0 && !sleep(m.ctx, delay) {
			return
		}
	}
}

// performCycle probes every target once and queues the resulting batch.
// It returns false when the probe produced no output.
func (m *Monitor) performCycle(addresses []string) bool {
	m.metrics.Cycles.Inc()

	start := time.Now()
	// a round that has started is allowed to finish after Stop
	output, err := m.pinger.Probe(context.WithoutCancel(m.ctx), addresses)
	m.metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.ProbeFailures.Inc()
		m.logger.Error("Failed to read fping output", "error", err)
		return false
	}

	capturedAt := m.now().UTC()
	batch, errs, missing := m.parser.Parse(output, capturedAt)
	for _, e := range errs {
		m.metrics.ParseErrors.Inc()
		m.logger.Warn("Failed to parse fping result", "line", e.Line, "reason", e.Reason)
	}
	if len(missing) > 0 {
		m.logger.Warn("Targets missing from fping output", "targets", missing)
	}
	for _, rec := range batch.Records {
		m.metrics.TargetLoss.WithLabelValues(rec.Target.Name, rec.Target.Address).Set(rec.LossPercent)
	}

	if batch.Len() == 0 {
		m.logger.Warn("Probe cycle produced no records", "timestamp", capturedAt)
		return true
	}

	if m.buf.Offer(batch) {
		m.metrics.BatchesQueued.Inc()
		m.logger.Debug("Queued batch", "timestamp", capturedAt, "records", batch.Len())
	} else {
		m.metrics.BatchesDropped.Inc()
	}
	return true
}

// writeLoop hands queued batches to the writer until the buffer is closed
// and empty, or the drain deadline passes.
func (m *Monitor) writeLoop() {
	defer m.wg.Done()

	for {
		batch, ok := m.buf.Take(m.abort)
		if !ok {
			return
		}
		if !m.writer.Write(m.abort, batch) {
			m.logger.Error("Batch abandoned at shutdown", "timestamp", batch.CapturedAt, "records", batch.Len())
			return
		}
	}
}
