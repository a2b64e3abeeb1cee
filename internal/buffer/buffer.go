// Package buffer decouples the probe cycle from the sink writer.
package buffer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"pinger/internal/models"
)

// Buffer is a bounded FIFO of batches with one producer and one consumer
type Buffer struct {
	ch      chan models.Batch
	logger  *slog.Logger
	dropped atomic.Uint64
}

// New creates a buffer holding at most capacity pending batches
func New(capacity int, logger *slog.Logger) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		ch:     make(chan models.Batch, capacity),
		logger: logger,
	}
}

// Offer enqueues batch without blocking. When the buffer is full the batch
// is dropped, the drop is logged and counted, and Offer returns false.
func (b *Buffer) Offer(batch models.Batch) bool {
	select {
	case b.ch <- batch:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Warn("Failed to queue batch for insertion, insert queue is full",
			"timestamp", batch.CapturedAt,
			"records", batch.Len(),
			"limit", cap(b.ch))
		return false
	}
}

// Take blocks until a batch is available. It returns false once the buffer
// is closed and empty, or when ctx is done.
func (b *Buffer) Take(ctx context.Context) (models.Batch, bool) {
	select {
	case batch, ok := <-b.ch:
		return batch, ok
	case <-ctx.Done():
		return models.Batch{}, false
	}
}

// Close marks the end of production. Only the producer may call it, after
// its last Offer; batches already queued can still be taken.
func (b *Buffer) Close() {
	close(b.ch)
}

// Len returns the number of pending batches
func (b *Buffer) Len() int { return len(b.ch) }

// Cap returns the maximum number of pending batches
func (b *Buffer) Cap() int { return cap(b.ch) }

// Dropped returns how many batches were rejected because the buffer was full
func (b *Buffer) Dropped() uint64 { return b.dropped.Load() }

// Drain removes and returns every pending batch without blocking
func (b *Buffer) Drain() []models.Batch {
	var out []models.Batch
	for {
		select {
		case batch, ok := <-b.ch:
			if !ok {
				return out
			}
			out = append(out, batch)
		default:
			return out
		}
	}
}
