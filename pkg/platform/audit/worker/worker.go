// Package worker relays audit outbox rows to the message broker.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Message is one outbox row awaiting publication.
type Message struct {
	ID        uuid.UUID
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Outbox hands out unpublished rows in batches. publish runs while the batch
// is locked; rows are marked published only when it returns nil.
type Outbox interface {
	RelayBatch(ctx context.Context, limit int, publish func(ctx context.Context, batch []Message) error) (int, error)
}

// Sink delivers a batch to the broker; it must return only after the broker
// acknowledged every message.
type Sink interface {
	Publish(ctx context.Context, batch []Message) error
}

// Worker polls the outbox and relays rows to the sink. Delivery is
// at-least-once: a crash between publish and commit re-sends the batch.
type Worker struct {
	outbox    Outbox
	sink      Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewWorker(outbox Outbox, sink Sink, interval time.Duration, batchSize int, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{outbox: outbox, sink: sink, interval: interval, batchSize: batchSize, logger: logger}
}

// Run relays until ctx is cancelled. Full batches are drained back-to-back.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		for {
			n, err := w.RelayOnce(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
				break
			}
			if n < w.batchSize {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes at most one batch and returns how many rows it moved.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	return w.outbox.RelayBatch(ctx, w.batchSize, w.sink.Publish)
}
