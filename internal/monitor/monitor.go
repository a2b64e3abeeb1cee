package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pinger/internal/buffer"
	"pinger/internal/metrics"
	"pinger/internal/models"
	"pinger/internal/ping"
)

// State is the lifecycle phase of the monitor
type State int32

const (
	Initializing State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Options tunes scheduling and shutdown
type Options struct {
	// Interval is the pause between the end of one cycle and the start of
	// the next; zero runs cycles back to back.
	Interval time.Duration
	// FailureDelay replaces a zero Interval after a failed probe
	FailureDelay time.Duration
	// RetryDelay is the fixed pause between sink write attempts
	RetryDelay time.Duration
	// DrainTimeout bounds shutdown; zero waits for every queued batch
	DrainTimeout time.Duration
	// Retention enables pruning for sinks that support it
	Retention           time.Duration
	MaintenanceInterval time.Duration
}

// DefaultOptions returns the production timings
func DefaultOptions() Options {
	return Options{
		FailureDelay:        2 * time.Second,
		RetryDelay:          2 * time.Second,
		MaintenanceInterval: time.Hour,
	}
}

// Deps are the collaborators the monitor coordinates
type Deps struct {
	Host    models.Host
	Targets models.Directory
	Pinger  models.Pinger
	Buffer  *buffer.Buffer
	Sink    models.Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Monitor coordinates the probe cycle and the sink writer
type Monitor struct {
	opts    Options
	targets models.Directory
	pinger  models.Pinger
	parser  *ping.Parser
	buf     *buffer.Buffer
	sink    models.Sink
	writer  *Writer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	state      atomic.Int32
	wg         sync.WaitGroup
	bg         sync.WaitGroup
	stopOnce   sync.Once
	drainTimer *time.Timer

	// ctx stops the probe cycle and background work
	ctx    context.Context
	cancel context.CancelFunc
	// abort ends the drain early
	abort       context.Context
	abortCancel context.CancelFunc
}

// New creates a new Monitor
func New(opts Options, deps Deps) *Monitor {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if opts.MaintenanceInterval <= 0 {
		opts.MaintenanceInterval = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	abort, abortCancel := context.WithCancel(context.Background())
	return &Monitor{
		opts:        opts,
		targets:     deps.Targets,
		pinger:      deps.Pinger,
		parser:      ping.NewParser(deps.Host, deps.Targets),
		buf:         deps.Buffer,
		sink:        deps.Sink,
		writer:      NewWriter(deps.Sink, opts.RetryDelay, deps.Metrics, deps.Logger),
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		abort:       abort,
		abortCancel: abortCancel,
	}
}

// State returns the current lifecycle phase
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Start checks the sink and launches the probe cycle and the sink writer
func (m *Monitor) Start() error {
	if m.State() != Initializing {
		return errors.New("monitor already started")
	}

	if hc, ok := m.sink.(models.HealthChecker); ok {
		ctx, cancel := context.WithTimeout(m.ctx, 5*time.Second)
		if err := hc.Ping(ctx); err != nil {
			m.logger.Warn("Sink is not reachable yet, batches will be retried", "error", err)
		}
		cancel()
	}

	m.state.Store(int32(Running))
	m.logger.Info("Running pinger", "targets", len(m.targets.Addresses()),
		"interval", m.opts.Interval, "queue_limit", m.buf.Cap())

	m.wg.Add(2)
	go m.writeLoop()
	go m.probeLoop()

	if pruner, ok := m.sink.(models.Pruner); ok && m.opts.Retention > 0 {
		m.bg.Add(1)
		go m.maintenanceWorker(pruner)
	}
	return nil
}

// Stop ends the probe cycle. Batches already queued are still written;
// the in-flight probe, if any, completes first.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if !m.state.CompareAndSwap(int32(Running), int32(Draining)) {
			// never started: nothing will consume the buffer
			m.state.Store(int32(Draining))
			m.buf.Close()
		}
		m.logger.Info("Stopping monitor...", "queued", m.buf.Len())

		if m.opts.DrainTimeout > 0 {
			m.drainTimer = time.AfterFunc(m.opts.DrainTimeout, func() {
				m.logger.Warn("Drain timeout expired, abandoning queued batches", "timeout", m.opts.DrainTimeout)
				m.abortCancel()
			})
		}
		m.cancel()
	})
}

// Wait blocks until all goroutines finish, then closes the sink
func (m *Monitor) Wait() {
	m.wg.Wait()
	m.bg.Wait()
	if m.drainTimer != nil {
		m.drainTimer.Stop()
	}
	m.abortCancel()

	for _, batch := range m.buf.Drain() {
		m.logger.Error("Batch abandoned at shutdown", "timestamp", batch.CapturedAt, "records", batch.Len())
	}

	if err := m.sink.Close(); err != nil {
		m.logger.Error("Failed to close sink", "error", err)
	}
	m.state.Store(int32(Stopped))
	m.logger.Info("Monitor stopped")
}

// sleep pauses for d, returning false if ctx ends first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
