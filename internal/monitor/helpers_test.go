package monitor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"pinger/internal/buffer"
	"pinger/internal/metrics"
	"pinger/internal/models"
)

type directory map[string]models.Target

func (d directory) Lookup(address string) (models.Target, bool) {
	t, ok := d[address]
	return t, ok
}

func (d directory) Addresses() []string {
	out := make([]string, 0, len(d))
	for addr := range d {
		out = append(out, addr)
	}
	return out
}

var testTargets = directory{
	"10.0.0.1": {Address: "10.0.0.1", Name: "core-router"},
}

const testOutput = "10.0.0.1 : 1.2 1.4 - 1.1\n"

// logBuffer collects log output from several goroutines
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) Count(s string) int {
	return strings.Count(b.String(), s)
}

func newLogger() (*slog.Logger, *logBuffer) {
	lb := &logBuffer{}
	return slog.New(slog.NewTextHandler(lb, &slog.HandlerOptions{Level: slog.LevelDebug})), lb
}

// fakePinger returns testOutput, or err when set. When gate is non-nil each
// probe waits for a value on it.
type fakePinger struct {
	mu      sync.Mutex
	calls   int
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (p *fakePinger) Probe(ctx context.Context, addresses []string) (string, error) {
	p.mu.Lock()
	p.calls++
	gate, entered := p.gate, p.entered
	p.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if p.err != nil {
		return "", p.err
	}
	return testOutput, nil
}

func (p *fakePinger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeSink fails the first failures writes, or every write when failAlways
type fakeSink struct {
	mu         sync.Mutex
	failures   int
	failAlways bool
	calls      int
	batches    []models.Batch
	closed     bool
}

func (s *fakeSink) Write(ctx context.Context, batch models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAlways || s.calls <= s.failures {
		return errors.New("connection refused")
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) Written() []models.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Batch(nil), s.batches...)
}

func (s *fakeSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// pruningSink records every prune cutoff
type pruningSink struct {
	fakeSink
	pruned chan time.Time
}

func (s *pruningSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.pruned <- before
	return 4, nil
}

func newMonitor(t *testing.T, opts Options, p models.Pinger, sink models.Sink, queue int) (*Monitor, *logBuffer) {
	t.Helper()
	logger, logs := newLogger()
	m := New(opts, Deps{
		Host:    models.Host{Name: "probe-01"},
		Targets: testTargets,
		Pinger:  p,
		Buffer:  buffer.New(queue, logger),
		Sink:    sink,
		Metrics: metrics.New(nil),
		Logger:  logger,
	})
	return m, logs
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
