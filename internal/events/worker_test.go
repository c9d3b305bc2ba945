package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvl/pkg/domain"
)

type capturingPublisher struct {
	published []DomainEvent
	failAfter int
	fail      bool
}

func (p *capturingPublisher) Publish(_ context.Context, event DomainEvent) error {
	if p.fail && len(p.published) >= p.failAfter {
		return errors.New("broker unreachable")
	}
	p.published = append(p.published, event)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDrainPublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	outbox := NewInMemoryOutbox()
	emitter := NewEmitter(outbox)

	require.NoError(t, emitter.Emit(ctx, DomainEvent{Type: LicenceActivated, LicenceID: domain.LicenceID(1)}))
	require.NoError(t, emitter.Emit(ctx, DomainEvent{Type: LicenceInactivated, LicenceID: domain.LicenceID(2)}))

	pub := &capturingPublisher{}
	w := NewWorker(outbox, pub, 0, discardLogger())

	require.NoError(t, w.Drain(ctx))
	assert.Len(t, pub.published, 2)

	// Second drain finds nothing pending: no duplicates.
	require.NoError(t, w.Drain(ctx))
	assert.Len(t, pub.published, 2)
}

func TestDrainRetriesFailedPublishes(t *testing.T) {
	ctx := context.Background()
	outbox := NewInMemoryOutbox()
	emitter := NewEmitter(outbox)

	require.NoError(t, emitter.Emit(ctx, DomainEvent{Type: LicenceActivated, LicenceID: domain.LicenceID(1)}))
	require.NoError(t, emitter.Emit(ctx, DomainEvent{Type: LicenceActivated, LicenceID: domain.LicenceID(2)}))

	pub := &capturingPublisher{fail: true, failAfter: 1}
	w := NewWorker(outbox, pub, 0, discardLogger())

	// First drain delivers one, fails on the second.
	require.NoError(t, w.Drain(ctx))
	assert.Len(t, pub.published, 1)

	// Broker recovers; the undelivered entry is retried, not lost.
	pub.fail = false
	require.NoError(t, w.Drain(ctx))
	require.Len(t, pub.published, 2)
	assert.Equal(t, domain.LicenceID(2), pub.published[1].LicenceID)
}

func TestKindSpecificVariants(t *testing.T) {
	assert.Equal(t, HDCLicenceActivated, ActivatedEventFor("HDC"))
	assert.Equal(t, PRRDLicenceActivated, ActivatedEventFor("PRRD"))
	assert.Equal(t, LicenceActivated, ActivatedEventFor("CRD"))
	assert.Equal(t, LicenceActivated, ActivatedEventFor("HARD_STOP"))

	assert.Equal(t, PRRDLicenceInactivated, InactivatedEventFor("PRRD"))
	assert.Equal(t, HDCLicenceInactivated, InactivatedEventFor("HDC"))
	assert.Equal(t, LicenceInactivated, InactivatedEventFor("TIME_SERVED"))
}
