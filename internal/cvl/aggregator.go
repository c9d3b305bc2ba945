package cvl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"cvl/internal/eligibility"
	"cvl/internal/licence/models"
	"cvl/internal/licence/store"
	"cvl/internal/prison"
	"cvl/internal/releasedate"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/requestcontext"
)

var tracer = otel.Tracer("cvl/internal/cvl")

// Aggregator fuses prisoner records, HDC curfew state, existing licence rows
// and the date resolver into Records.
type Aggregator struct {
	search   prison.SearchClient
	curfews  prison.CurfewClient
	licences store.Store
	resolver *releasedate.Resolver
	logger   *slog.Logger
}

func NewAggregator(search prison.SearchClient, curfews prison.CurfewClient, licences store.Store, resolver *releasedate.Resolver, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		search:   search,
		curfews:  curfews,
		licences: licences,
		resolver: resolver,
		logger:   logger,
	}
}

// Records builds the derived record for each person. Prisoner records and
// existing licence rows are fetched in parallel; curfew state needs booking
// ids so it follows the prisoner fetch. An upstream failure fails the whole
// call: a record computed from guessed data is worse than no record.
func (a *Aggregator) Records(ctx context.Context, nomisIDs []domain.NomisID) (map[domain.NomisID]*Record, error) {
	ctx, span := tracer.Start(ctx, "cvl.Records")
	defer span.End()
	span.SetAttributes(attribute.Int("case_count", len(nomisIDs)))

	if len(nomisIDs) == 0 {
		return map[domain.NomisID]*Record{}, nil
	}

	var (
		prisoners []prison.Prisoner
		existing  []*models.Licence
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prisoners, err = a.search.FindByNomisIDs(gctx, nomisIDs)
		if err != nil {
			return fmt.Errorf("prisoner search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		existing, err = a.licences.FindByNomisIDs(gctx, nomisIDs)
		if err != nil {
			return fmt.Errorf("find licences: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "case record fetch failed")
	}

	bookingIDs := make([]domain.BookingID, 0, len(prisoners))
	for _, p := range prisoners {
		if p.BookingID != 0 {
			bookingIDs = append(bookingIDs, p.BookingID)
		}
	}
	curfews, err := a.curfews.CurfewStatuses(ctx, bookingIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "curfew status fetch failed")
	}

	today := midnight(requestcontext.Now(ctx))
	assessments := eligibility.AssessBatch(prisoners, curfews, today)

	timedOut := make(map[domain.NomisID]bool)
	crns := make(map[domain.NomisID]domain.CRN)
	for _, licence := range existing {
		if licence.Status == models.StatusTimedOut {
			timedOut[licence.NomisID] = true
		}
		crns[licence.NomisID] = licence.CRN
	}

	out := make(map[domain.NomisID]*Record, len(prisoners))
	for _, p := range prisoners {
		record, err := a.build(ctx, p, assessments[p.NomisID], today)
		if err != nil {
			return nil, err
		}
		record.CRN = crns[p.NomisID]
		record.IsTimedOut = timedOut[p.NomisID]
		out[p.NomisID] = record
	}

	for _, id := range nomisIDs {
		if _, ok := out[id]; !ok {
			a.logger.WarnContext(ctx, "no prisoner record found", "nomis_id", id)
		}
	}
	return out, nil
}

// Record builds the derived record for a single person.
func (a *Aggregator) Record(ctx context.Context, nomisID domain.NomisID) (*Record, error) {
	records, err := a.Records(ctx, []domain.NomisID{nomisID})
	if err != nil {
		return nil, err
	}
	record, ok := records[nomisID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no prisoner record for %s", nomisID)
	}
	return record, nil
}

func (a *Aggregator) build(ctx context.Context, p prison.Prisoner, assessment eligibility.Assessment, today time.Time) (*Record, error) {
	dates := releasedate.SentenceDates{
		ConditionalReleaseDate:        p.ConditionalReleaseDate,
		ActualReleaseDate:             p.ConfirmedReleaseDate,
		PostRecallReleaseDate:         p.PostRecallReleaseDate,
		LicenceExpiryDate:             p.LicenceExpiryDate,
		TopupSupervisionExpiryDate:    p.TopupSupervisionExpiryDate,
		HomeDetentionCurfewActualDate: p.HomeDetentionCurfewActualDate,
	}
	record := &Record{
		NomisID:              p.NomisID,
		IsEligible:           assessment.IsEligible(),
		EligibleKind:         assessment.EligibleKind,
		HardStopKind:         assessment.HardStopKind,
		IneligibilityReasons: assessment.Reasons,
		SentenceDates:        dates,
		BookingID:            p.BookingID,
		SentenceStartDate:    p.SentenceStartDate,
		SentenceEndDate:      p.SentenceEndDate,
	}
	if !record.IsEligible {
		return record, nil
	}

	kind := *assessment.EligibleKind
	record.LicenceStartDate = releasedate.StartDate(kind, dates)

	if kind == models.KindPRRD {
		if record.LicenceStartDate != nil {
			typeCode, err := a.resolver.RecallLicenceType(ctx, dates, *record.LicenceStartDate)
			if err != nil {
				return nil, err
			}
			record.LicenceType = typeCode
		}
	} else {
		record.LicenceType = releasedate.LicenceType(p.LicenceExpiryDate, p.TopupSupervisionExpiryDate)
	}

	if record.LicenceStartDate != nil {
		hardStop, warning, err := a.resolver.HardStopDates(ctx, *record.LicenceStartDate)
		if err != nil {
			return nil, err
		}
		record.HardStopDate = &hardStop
		record.HardStopWarningDate = &warning
		record.IsInHardStopPeriod = releasedate.IsInHardStopPeriod(today, hardStop, *record.LicenceStartDate)

		due, err := a.resolver.IsDueToBeReleasedInTheNextTwoWorkingDays(ctx, today, record.LicenceStartDate)
		if err != nil {
			return nil, err
		}
		record.IsDueToBeReleasedInTheNextTwoWorkingDays = due
	}

	return record, nil
}

// midnight drops the time-of-day so date comparisons against upstream
// date-only fields behave.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
