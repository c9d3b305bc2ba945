package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const drainBatchSize = 100

// Worker drains the outbox to the publisher on an interval. A publish
// failure leaves the entry unmarked so the next poll retries it; nothing is
// ever dropped silently.
type Worker struct {
	outbox    Outbox
	publisher Publisher
	interval  time.Duration
	logger    *slog.Logger
}

func NewWorker(outbox Outbox, publisher Publisher, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{outbox: outbox, publisher: publisher, interval: interval, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending entries. Exported so tests and the
// shutdown path can flush without the ticker.
func (w *Worker) Drain(ctx context.Context) error {
	batch, err := w.outbox.NextBatch(ctx, drainBatchSize)
	if err != nil {
		return err
	}

	var delivered []uuid.UUID
	for _, event := range batch {
		if err := w.publisher.Publish(ctx, event); err != nil {
			// Mark what made it; the rest retries next poll.
			w.logger.WarnContext(ctx, "domain event publish failed, will retry",
				"event_type", event.Type,
				"licence_id", event.LicenceID,
				"error", err,
			)
			break
		}
		delivered = append(delivered, event.ID)
	}

	if len(delivered) == 0 {
		return nil
	}
	return w.outbox.MarkPublished(ctx, delivered)
}
