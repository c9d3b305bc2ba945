// Package service orchestrates the licence workflow: creation from the
// derived case record, submission, approval, the variation sub-lifecycle and
// manual status overrides. Every mutation runs inside a StoreTx so the status
// change and its outbox event commit together, and every mutation carries an
// explicit acting principal.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cvl/internal/cvl"
	"cvl/internal/events"
	"cvl/internal/licence/models"
	"cvl/internal/licence/store"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/platform/sentinel"
	"cvl/pkg/requestcontext"
)

// Records supplies the derived case record a creation decision needs.
type Records interface {
	Record(ctx context.Context, nomisID domain.NomisID) (*cvl.Record, error)
}

type Service struct {
	tx      StoreTx
	store   store.Store
	records Records
	emitter events.Emitter
	logger  *slog.Logger
}

func NewService(tx StoreTx, licences store.Store, records Records, emitter events.Emitter, logger *slog.Logger) *Service {
	return &Service{
		tx:      tx,
		store:   licences,
		records: records,
		emitter: emitter,
		logger:  logger,
	}
}

// Get returns one licence.
func (s *Service) Get(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	licence, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, id)
	}
	return licence, nil
}

// FindByCRN returns every licence row for a probation case, newest first not
// guaranteed; callers needing the operationally current row use the caseload
// selection instead.
func (s *Service) FindByCRN(ctx context.Context, crn domain.CRN) ([]*models.Licence, error) {
	return s.store.FindByCRN(ctx, crn)
}

// Create starts a licence for an eligible case. The kind comes from the case
// record; inside the hard-stop window the prison creates the hard-stop kind
// instead of the standard one.
func (s *Service) Create(ctx context.Context, identity domain.CaseIdentity) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.records.Record(ctx, identity.NomisID)
	if err != nil {
		return nil, err
	}
	if !record.IsEligible {
		return nil, dErrors.Newf(dErrors.CodePreconditionFailed,
			"%s is not eligible for a licence: %s", identity.NomisID, flattenReasons(record.IneligibilityReasons))
	}

	existing, err := s.store.FindByNomisIDs(ctx, []domain.NomisID{identity.NomisID})
	if err != nil {
		return nil, err
	}
	// A terminal row (INACTIVE, RECALLED, TIMED_OUT) does not block a new
	// creation; anything still live does. Hard-stop creation after a time-out
	// relies on this.
	for _, l := range existing {
		if !l.Status.IsTerminal() {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"licence %s already exists for %s with status %s", l.ID, identity.NomisID, l.Status)
		}
	}

	kind := *record.EligibleKind
	if record.IsInHardStopPeriod && record.HardStopKind != nil {
		kind = *record.HardStopKind
	}

	now := requestcontext.Now(ctx)
	licence := &models.Licence{
		Kind:      kind,
		TypeCode:  record.LicenceType,
		Status:    models.StatusInProgress,
		NomisID:   identity.NomisID,
		CRN:       identity.CRN,
		BookingID: record.BookingID,

		ConditionalReleaseDate:        record.SentenceDates.ConditionalReleaseDate,
		ActualReleaseDate:             record.SentenceDates.ActualReleaseDate,
		PostRecallReleaseDate:         record.SentenceDates.PostRecallReleaseDate,
		LicenceExpiryDate:             record.SentenceDates.LicenceExpiryDate,
		TopupSupervisionExpiryDate:    record.SentenceDates.TopupSupervisionExpiryDate,
		HomeDetentionCurfewActualDate: record.SentenceDates.HomeDetentionCurfewActualDate,
		SentenceStartDate:             record.SentenceStartDate,
		SentenceEndDate:               record.SentenceEndDate,
		LicenceStartDate:              record.LicenceStartDate,

		CreatedBy: actor.Username,
		CreatedAt: now,
		UpdatedBy: actor.Username,
		UpdatedAt: now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, licence)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "licence created",
		"licence_id", licence.ID, "kind", licence.Kind, "nomis_id", licence.NomisID)
	return licence, nil
}

// Submit moves an in-progress licence or variation to its submitted state.
func (s *Service) Submit(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var licence *models.Licence
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		licence, err = s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := guardMutable(licence); err != nil {
			return err
		}
		prior := licence.Status
		if err := licence.Submit(actor, now); err != nil {
			return err
		}
		if err := s.store.UpdateIfStatus(ctx, licence, prior); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, newEvent(events.LicenceSubmitted, licence, now))
	})
	if err != nil {
		return nil, translate(err, id)
	}
	return licence, nil
}

// Approve records the approval decision on a submitted licence or variation.
func (s *Service) Approve(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var licence *models.Licence
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		licence, err = s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := guardMutable(licence); err != nil {
			return err
		}
		if licence.Status.IsVariation() {
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"licence %s is a variation; use the variation approval", id)
		}
		prior := licence.Status
		if err := licence.Approve(actor, now); err != nil {
			return err
		}
		if err := s.store.UpdateIfStatus(ctx, licence, prior); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, newEvent(events.LicenceApproved, licence, now))
	})
	if err != nil {
		return nil, translate(err, id)
	}
	return licence, nil
}

// CreateVariation opens a variation of an active licence: a new row
// referencing the original, never a mutation of it. The original stays ACTIVE
// until the variation is approved.
func (s *Service) CreateVariation(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var variation *models.Licence
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		original, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := guardMutable(original); err != nil {
			return err
		}
		if original.Status != models.StatusActive {
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"licence %s must be ACTIVE to vary, is %s", id, original.Status)
		}

		copied := *original
		variation = &copied
		variation.ID = 0
		variation.Status = models.StatusVariationInProgress
		variation.VersionOf = &original.ID
		variation.SubmittedBy = nil
		variation.SubmittedAt = nil
		variation.ApprovedBy = nil
		variation.ApprovedAt = nil
		variation.StatusReason = ""
		variation.CreatedBy = actor.Username
		variation.CreatedAt = now
		variation.UpdatedBy = actor.Username
		variation.UpdatedAt = now
		variation.Conditions = make([]models.Condition, len(original.Conditions))
		copy(variation.Conditions, original.Conditions)

		return s.store.Create(ctx, variation)
	})
	if err != nil {
		return nil, translate(err, id)
	}
	return variation, nil
}

// ApproveVariation approves a submitted variation and, in the same
// transaction, supersedes the original and activates the variation. The
// one-ACTIVE-licence invariant holds because both rows change or neither
// does.
func (s *Service) ApproveVariation(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var variation *models.Licence
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		variation, err = s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := guardMutable(variation); err != nil {
			return err
		}
		if variation.VersionOf == nil {
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"licence %s is not a variation", id)
		}
		prior := variation.Status
		if err := variation.Approve(actor, now); err != nil {
			return err
		}

		original, err := s.store.GetByID(ctx, *variation.VersionOf)
		if err != nil {
			return err
		}
		if original.Status == models.StatusActive {
			if err := original.Transition(models.StatusInactive, actor, now); err != nil {
				return err
			}
			if err := s.store.UpdateIfStatus(ctx, original, models.StatusActive); err != nil {
				return err
			}
			if err := s.emitter.Emit(ctx, newEvent(events.InactivatedEventFor(original.Kind), original, now)); err != nil {
				return err
			}
		}

		if err := variation.Transition(models.StatusActive, actor, now); err != nil {
			return err
		}
		if err := s.store.UpdateIfStatus(ctx, variation, prior); err != nil {
			return err
		}
		if err := s.emitter.Emit(ctx, newEvent(events.LicenceVariationApproved, variation, now)); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, newEvent(events.ActivatedEventFor(variation.Kind), variation, now))
	})
	if err != nil {
		return nil, translate(err, id)
	}
	return variation, nil
}

// RejectVariation sends a submitted variation back for rework.
func (s *Service) RejectVariation(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var variation *models.Licence
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		variation, err = s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if variation.VersionOf == nil {
			return dErrors.Newf(dErrors.CodePreconditionFailed,
				"licence %s is not a variation", id)
		}
		prior := variation.Status
		if err := variation.Transition(models.StatusVariationRejected, actor, now); err != nil {
			return err
		}
		return s.store.UpdateIfStatus(ctx, variation, prior)
	})
	if err != nil {
		return nil, translate(err, id)
	}
	return variation, nil
}

// OverrideStatus applies a manual status override. The reason is mandatory;
// an override without one is rejected before any state change.
func (s *Service) OverrideStatus(ctx context.Context, id domain.LicenceID, to models.LicenceStatus, reason string) (*models.Licence, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a reason is required for a status override")
	}
	now := requestcontext.Now(ctx)

	var licence *models.Licence
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		licence, err = s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := guardMutable(licence); err != nil {
			return err
		}
		prior := licence.Status
		if err := licence.Transition(to, actor, now); err != nil {
			return err
		}
		licence.StatusReason = reason
		if err := s.store.UpdateIfStatus(ctx, licence, prior); err != nil {
			return err
		}
		switch to {
		case models.StatusActive:
			return s.emitter.Emit(ctx, newEvent(events.ActivatedEventFor(licence.Kind), licence, now))
		case models.StatusInactive:
			return s.emitter.Emit(ctx, newEvent(events.InactivatedEventFor(licence.Kind), licence, now))
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, id)
	}

	s.logger.InfoContext(ctx, "licence status overridden",
		"licence_id", id, "status", to, "actor", actor.Username, "reason", reason)
	return licence, nil
}

// guardMutable rejects workflow mutations on time-served licences: they are
// created and owned by the prison system and only read here.
func guardMutable(licence *models.Licence) error {
	if licence.Kind == models.KindTimeServed {
		return dErrors.Newf(dErrors.CodePreconditionFailed,
			"licence %s is a time-served licence managed by the prison system", licence.ID)
	}
	return nil
}

func newEvent(eventType events.EventType, licence *models.Licence, now time.Time) events.DomainEvent {
	return events.DomainEvent{
		Type:       eventType,
		LicenceID:  licence.ID,
		NomisID:    licence.NomisID,
		CRN:        licence.CRN,
		OccurredAt: now,
	}
}

func translate(err error, id domain.LicenceID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "licence %s not found", id)
	case errors.Is(err, sentinel.ErrStaleStatus):
		return dErrors.Newf(dErrors.CodeConflict, "licence %s was modified concurrently", id)
	}
	return err
}

func actorFrom(ctx context.Context) (domain.Principal, error) {
	actor := requestcontext.Principal(ctx)
	if actor.Username == "" {
		return actor, dErrors.New(dErrors.CodeValidation, "acting principal is required")
	}
	return actor, nil
}

func flattenReasons(reasons map[models.LicenceKind][]string) string {
	var parts []string
	for _, kind := range []models.LicenceKind{models.KindCRD, models.KindHDC, models.KindPRRD} {
		for _, reason := range reasons[kind] {
			parts = append(parts, string(kind)+": "+reason)
		}
	}
	return strings.Join(parts, "; ")
}
