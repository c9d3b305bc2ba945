package events

import (
	"context"

	"github.com/google/uuid"
)

// Outbox is the store half of the outbox pattern. Append participates in the
// caller's transaction (via pkg/platform/tx); the worker drains pending
// entries afterwards.
type Outbox interface {
	Append(ctx context.Context, event DomainEvent) error
	// NextBatch returns up to limit unpublished entries in insert order.
	NextBatch(ctx context.Context, limit int) ([]DomainEvent, error)
	// MarkPublished records that the entries reached the bus. An entry never
	// marked is retried on the next poll: delivery is at-least-once.
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Emitter is what services and jobs see: append an event inside the current
// transaction.
type Emitter interface {
	Emit(ctx context.Context, event DomainEvent) error
}

// OutboxEmitter emits by appending to the outbox.
type OutboxEmitter struct {
	outbox Outbox
}

func NewEmitter(outbox Outbox) *OutboxEmitter {
	return &OutboxEmitter{outbox: outbox}
}

func (e *OutboxEmitter) Emit(ctx context.Context, event DomainEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return e.outbox.Append(ctx, event)
}
