package caseload

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cvl/internal/cvl"
	"cvl/internal/licence/models"
	"cvl/internal/licence/store"
	"cvl/internal/probation"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
)

var tracer = otel.Tracer("cvl/internal/caseload")

// Records is the case-record source the composers read from.
type Records interface {
	Records(ctx context.Context, nomisIDs []domain.NomisID) (map[domain.NomisID]*cvl.Record, error)
}

// Entry is one person on a caseload. When no licence row exists yet the
// status is the virtual NOT_STARTED and kind/type come from the derived
// record; otherwise they come from the relevant licence row.
type Entry struct {
	NomisID domain.NomisID `json:"nomisId"`
	CRN     domain.CRN     `json:"crn,omitempty"`

	LicenceID *domain.LicenceID    `json:"licenceId,omitempty"`
	Kind      *models.LicenceKind  `json:"kind,omitempty"`
	Status    models.LicenceStatus `json:"licenceStatus"`

	LicenceType         models.LicenceType `json:"licenceType,omitempty"`
	LicenceStartDate    *time.Time         `json:"licenceStartDate,omitempty"`
	HardStopDate        *time.Time         `json:"hardStopDate,omitempty"`
	HardStopWarningDate *time.Time         `json:"hardStopWarningDate,omitempty"`

	IsInHardStopPeriod                       bool `json:"isInHardStopPeriod"`
	IsDueToBeReleasedInTheNextTwoWorkingDays bool `json:"isDueToBeReleasedInTheNextTwoWorkingDays"`
}

// Service composes caseload views from probation allocations, derived case
// records and stored licence rows.
type Service struct {
	probation probation.Client
	records   Records
	licences  store.Store
	logger    *slog.Logger
}

func NewService(probationClient probation.Client, records Records, licences store.Store, logger *slog.Logger) *Service {
	return &Service{
		probation: probationClient,
		records:   records,
		licences:  licences,
		logger:    logger,
	}
}

// CreateCaseload lists a community offender manager's cases still on the
// pre-release creation path: eligible people with no licence yet, or whose
// relevant licence has not gone live.
func (s *Service) CreateCaseload(ctx context.Context, staffCode string) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "caseload.Create")
	defer span.End()
	span.SetAttributes(attribute.String("staff_code", staffCode))

	cases, err := s.probation.CasesByStaff(ctx, staffCode)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "probation case fetch failed")
	}
	return s.compose(ctx, cases, func(entry Entry, record *cvl.Record) bool {
		switch entry.Status {
		case models.StatusNotStarted:
			return record.IsEligible
		case models.StatusInProgress, models.StatusSubmitted, models.StatusApproved, models.StatusTimedOut:
			return true
		}
		return false
	})
}

// VaryCaseload lists a community offender manager's post-release cases: an
// active licence or one moving through the variation sub-lifecycle.
func (s *Service) VaryCaseload(ctx context.Context, staffCode string) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "caseload.Vary")
	defer span.End()
	span.SetAttributes(attribute.String("staff_code", staffCode))

	cases, err := s.probation.CasesByStaff(ctx, staffCode)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "probation case fetch failed")
	}
	return s.compose(ctx, cases, func(entry Entry, _ *cvl.Record) bool {
		return entry.Status == models.StatusActive || entry.Status.IsVariation()
	})
}

// ApproverCaseload lists the submissions awaiting a decision across the given
// probation teams.
func (s *Service) ApproverCaseload(ctx context.Context, teamCodes []string) ([]Entry, error) {
	ctx, span := tracer.Start(ctx, "caseload.Approver")
	defer span.End()
	span.SetAttributes(attribute.Int("team_count", len(teamCodes)))

	cases, err := s.probation.CasesByTeams(ctx, teamCodes)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "probation case fetch failed")
	}
	return s.compose(ctx, cases, func(entry Entry, _ *cvl.Record) bool {
		return entry.Status == models.StatusSubmitted || entry.Status == models.StatusVariationSubmitted
	})
}

// compose turns probation allocations into entries and keeps those the
// include predicate accepts. People without a prisoner record are skipped
// with a log line rather than failing the whole caseload.
func (s *Service) compose(ctx context.Context, cases []probation.ManagedCase, include func(Entry, *cvl.Record) bool) ([]Entry, error) {
	nomisIDs := make([]domain.NomisID, 0, len(cases))
	seen := make(map[domain.NomisID]bool, len(cases))
	for _, c := range cases {
		if c.NomisID == "" || seen[c.NomisID] {
			continue
		}
		seen[c.NomisID] = true
		nomisIDs = append(nomisIDs, c.NomisID)
	}
	if len(nomisIDs) == 0 {
		return []Entry{}, nil
	}

	records, err := s.records.Records(ctx, nomisIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.licences.FindByNomisIDs(ctx, nomisIDs)
	if err != nil {
		return nil, err
	}
	byPerson := make(map[domain.NomisID][]*models.Licence)
	for _, row := range rows {
		byPerson[row.NomisID] = append(byPerson[row.NomisID], row)
	}

	entries := make([]Entry, 0, len(nomisIDs))
	done := make(map[domain.NomisID]bool, len(nomisIDs))
	for _, c := range cases {
		if done[c.NomisID] {
			continue
		}
		done[c.NomisID] = true
		record, ok := records[c.NomisID]
		if !ok {
			s.logger.WarnContext(ctx, "skipping case without prisoner record",
				"nomis_id", c.NomisID, "crn", c.CRN)
			continue
		}
		entry := buildEntry(c, record, RelevantLicence(byPerson[c.NomisID]))
		if include(entry, record) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].NomisID < entries[j].NomisID })
	return entries, nil
}

func buildEntry(c probation.ManagedCase, record *cvl.Record, relevant *models.Licence) Entry {
	entry := Entry{
		NomisID:                                  c.NomisID,
		CRN:                                      c.CRN,
		Status:                                   models.StatusNotStarted,
		LicenceType:                              record.LicenceType,
		LicenceStartDate:                         record.LicenceStartDate,
		HardStopDate:                             record.HardStopDate,
		HardStopWarningDate:                      record.HardStopWarningDate,
		IsInHardStopPeriod:                       record.IsInHardStopPeriod,
		IsDueToBeReleasedInTheNextTwoWorkingDays: record.IsDueToBeReleasedInTheNextTwoWorkingDays,
	}
	if record.EligibleKind != nil {
		kind := *record.EligibleKind
		entry.Kind = &kind
	}
	if relevant != nil {
		id := relevant.ID
		kind := relevant.Kind
		entry.LicenceID = &id
		entry.Kind = &kind
		entry.Status = relevant.Status
		entry.LicenceType = relevant.TypeCode
		if relevant.LicenceStartDate != nil {
			entry.LicenceStartDate = relevant.LicenceStartDate
		}
	}
	return entry
}
