package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryOutbox keeps the outbox testable without a database. It
// intentionally favors clarity over performance.
type InMemoryOutbox struct {
	mu        sync.RWMutex
	entries   []DomainEvent
	published map[uuid.UUID]bool
}

func NewInMemoryOutbox() *InMemoryOutbox {
	return &InMemoryOutbox{published: make(map[uuid.UUID]bool)}
}

func (o *InMemoryOutbox) Append(_ context.Context, event DomainEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	o.entries = append(o.entries, event)
	return nil
}

func (o *InMemoryOutbox) NextBatch(_ context.Context, limit int) ([]DomainEvent, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []DomainEvent
	for _, e := range o.entries {
		if o.published[e.ID] {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *InMemoryOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		o.published[id] = true
	}
	return nil
}

// All returns every appended event, published or not. Test helper.
func (o *InMemoryOutbox) All() []DomainEvent {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]DomainEvent, len(o.entries))
	copy(out, o.entries)
	return out
}
