package models

import (
	"context"
	"time"
)

// Sink defines the write path to the time-series store
type Sink interface {
	// Write persists every record of the batch as a single insert
	Write(ctx context.Context, batch Batch) error
	Close() error
}

// Pruner is implemented by sinks that can drop old measurements
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// HealthChecker is implemented by sinks that can verify connectivity
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Pinger defines probe execution operations
type Pinger interface {
	// Probe runs one probe round against all addresses and returns the
	// raw per-target summary output.
	Probe(ctx context.Context, addresses []string) (string, error)
}

// Directory resolves probe output addresses to configured targets
type Directory interface {
	Lookup(address string) (Target, bool)
	Addresses() []string
}
