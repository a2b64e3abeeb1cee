package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pinger/internal/metrics"
	"pinger/internal/models"
)

func testBatch() models.Batch {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return models.Batch{
		CapturedAt: at,
		Records: []models.Record{{
			Host:        models.Host{Name: "probe-01"},
			Target:      models.Target{Address: "10.0.0.1", Name: "core-router"},
			CapturedAt:  at,
			LossPercent: 25,
		}},
	}
}

func TestWriterRetriesUntilSuccess(t *testing.T) {
	sink := &fakeSink{failures: 2}
	logger, logs := newLogger()
	m := metrics.New(nil)
	w := NewWriter(sink, 2*time.Second, m, logger)

	var waits []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}

	if !w.Write(context.Background(), testBatch()) {
		t.Fatal("Write() = false, want true")
	}

	if got := logs.Count("Insert failed for timestamp"); got != 2 {
		t.Errorf("logged %d failures, want 2", got)
	}
	if len(waits) != 2 {
		t.Fatalf("waited %d times, want 2", len(waits))
	}
	for i, d := range waits {
		if d != 2*time.Second {
			t.Errorf("wait %d = %v, want 2s", i, d)
		}
	}
	written := sink.Written()
	if len(written) != 1 || written[0].Len() != 1 {
		t.Errorf("sink holds %v, want exactly one batch with one record", written)
	}
	if got := testutil.ToFloat64(m.WriteFailures); got != 2 {
		t.Errorf("WriteFailures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordsWritten); got != 1 {
		t.Errorf("RecordsWritten = %v, want 1", got)
	}
}

func TestWriterGivesUpOnlyBetweenAttempts(t *testing.T) {
	sink := &fakeSink{failAlways: true}
	logger, _ := newLogger()
	w := NewWriter(sink, time.Millisecond, metrics.New(nil), logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the first attempt still runs on a cancelled context
	if w.Write(ctx, testBatch()) {
		t.Fatal("Write() = true, want false")
	}
	if sink.calls != 1 {
		t.Errorf("sink called %d times, want 1", sink.calls)
	}
}

func TestWriterPassesLiveContextToSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sinkErr error
	sink := sinkFunc(func(ctx context.Context, b models.Batch) error {
		sinkErr = ctx.Err()
		return nil
	})
	logger, _ := newLogger()
	w := NewWriter(sink, time.Millisecond, metrics.New(nil), logger)
	if !w.Write(ctx, testBatch()) {
		t.Fatal("Write() = false, want true")
	}
	if sinkErr != nil {
		t.Errorf("sink saw ctx.Err() = %v, want nil", sinkErr)
	}
}

type sinkFunc func(ctx context.Context, b models.Batch) error

func (f sinkFunc) Write(ctx context.Context, b models.Batch) error {
	return f(ctx, b)
}

func (f sinkFunc) Close() error {
	return nil
}
