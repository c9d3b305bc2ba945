// Package events carries committed state transitions to downstream consumers
// (notifications, cross-service sync) through a transactional outbox. An
// event row is written in the same transaction as the status change, so an
// event can never outlive a rolled-back transition, and the outbox worker
// delivers it at-least-once afterwards.
package events

import (
	"time"

	"github.com/google/uuid"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
)

// EventType names a committed transition. Kind-specific variants exist where
// downstream consumers treat the kinds differently.
type EventType string

const (
	LicenceActivated     EventType = "LICENCE_ACTIVATED"
	HDCLicenceActivated  EventType = "HDC_LICENCE_ACTIVATED"
	PRRDLicenceActivated EventType = "PRRD_LICENCE_ACTIVATED"

	LicenceInactivated     EventType = "LICENCE_INACTIVATED"
	HDCLicenceInactivated  EventType = "HDC_LICENCE_INACTIVATED"
	PRRDLicenceInactivated EventType = "PRRD_LICENCE_INACTIVATED"

	LicenceSubmitted         EventType = "LICENCE_SUBMITTED"
	LicenceApproved          EventType = "LICENCE_APPROVED"
	LicenceTimedOut          EventType = "LICENCE_TIMED_OUT"
	LicenceVariationApproved EventType = "LICENCE_VARIATION_APPROVED"
)

// DomainEvent is the payload published for consumers. Consumers dedupe on
// (LicenceID, Type): delivery is at-least-once, never exactly-once.
type DomainEvent struct {
	ID         uuid.UUID        `json:"id"`
	Type       EventType        `json:"eventType"`
	LicenceID  domain.LicenceID `json:"licenceId"`
	NomisID    domain.NomisID   `json:"nomisId"`
	CRN        domain.CRN       `json:"crn"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// ActivatedEventFor picks the kind-specific activation variant.
func ActivatedEventFor(kind models.LicenceKind) EventType {
	switch kind {
	case models.KindHDC:
		return HDCLicenceActivated
	case models.KindPRRD:
		return PRRDLicenceActivated
	default:
		return LicenceActivated
	}
}

// InactivatedEventFor picks the kind-specific deactivation variant.
func InactivatedEventFor(kind models.LicenceKind) EventType {
	switch kind {
	case models.KindHDC:
		return HDCLicenceInactivated
	case models.KindPRRD:
		return PRRDLicenceInactivated
	default:
		return LicenceInactivated
	}
}
