package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvl/internal/cvl"
	"cvl/internal/events"
	"cvl/internal/licence/models"
	"cvl/internal/licence/store"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/requestcontext"
	"cvl/pkg/testutil"
)

type fakeRecords struct {
	records map[domain.NomisID]*cvl.Record
}

func (f *fakeRecords) Record(_ context.Context, nomisID domain.NomisID) (*cvl.Record, error) {
	record, ok := f.records[nomisID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no prisoner record for %s", nomisID)
	}
	return record, nil
}

type fixture struct {
	service *Service
	store   *store.MemoryStore
	outbox  *events.InMemoryOutbox
	records *fakeRecords
}

func newFixture() *fixture {
	licences := store.NewMemoryStore()
	outbox := events.NewInMemoryOutbox()
	records := &fakeRecords{records: make(map[domain.NomisID]*cvl.Record)}
	svc := NewService(NewMemoryTx(), licences, records, events.NewEmitter(outbox), slog.New(slog.DiscardHandler))
	return &fixture{service: svc, store: licences, outbox: outbox, records: records}
}

func (f *fixture) eligibleRecord(nomisID domain.NomisID, kind models.LicenceKind) *cvl.Record {
	start := testutil.Date(2024, time.March, 15)
	hardStopKind := models.KindHardStop
	record := &cvl.Record{
		NomisID:          nomisID,
		IsEligible:       true,
		EligibleKind:     &kind,
		LicenceType:      models.TypeAP,
		LicenceStartDate: &start,
	}
	if kind == models.KindCRD {
		record.HardStopKind = &hardStopKind
	}
	f.records.records[nomisID] = record
	return record
}

func actingAs(username string) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), domain.Principal{Username: username})
	return requestcontext.WithTime(ctx, testutil.Date(2024, time.March, 11))
}

var identity = domain.CaseIdentity{NomisID: "A1234BC", CRN: "X123456"}

func TestCreateEligibleCase(t *testing.T) {
	f := newFixture()
	f.eligibleRecord(identity.NomisID, models.KindCRD)

	licence, err := f.service.Create(actingAs("tcom"), identity)
	require.NoError(t, err)

	assert.Equal(t, models.KindCRD, licence.Kind)
	assert.Equal(t, models.StatusInProgress, licence.Status)
	assert.Equal(t, models.TypeAP, licence.TypeCode)
	assert.Equal(t, "tcom", licence.CreatedBy)
	require.NotNil(t, licence.LicenceStartDate)
	assert.Equal(t, testutil.Date(2024, time.March, 15), *licence.LicenceStartDate)

	stored, err := f.store.GetByID(context.Background(), licence.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestCreateInsideHardStopWindowTakesHardStopKind(t *testing.T) {
	f := newFixture()
	record := f.eligibleRecord(identity.NomisID, models.KindCRD)
	record.IsInHardStopPeriod = true

	licence, err := f.service.Create(actingAs("prison-ca"), identity)
	require.NoError(t, err)
	assert.Equal(t, models.KindHardStop, licence.Kind)
}

func TestCreateIneligibleCase(t *testing.T) {
	f := newFixture()
	f.records.records[identity.NomisID] = &cvl.Record{
		NomisID: identity.NomisID,
		IneligibilityReasons: map[models.LicenceKind][]string{
			models.KindCRD: {"has an indeterminate sentence"},
		},
	}

	_, err := f.service.Create(actingAs("tcom"), identity)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodePreconditionFailed, dErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "indeterminate")
}

func TestCreateRejectsSecondLiveLicence(t *testing.T) {
	f := newFixture()
	f.eligibleRecord(identity.NomisID, models.KindCRD)

	_, err := f.service.Create(actingAs("tcom"), identity)
	require.NoError(t, err)

	_, err = f.service.Create(actingAs("tcom"), identity)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestCreateAllowsNewLicenceAfterTimeOut(t *testing.T) {
	f := newFixture()
	record := f.eligibleRecord(identity.NomisID, models.KindCRD)
	record.IsInHardStopPeriod = true

	ctx := actingAs("tcom")
	first, err := f.service.Create(ctx, identity)
	require.NoError(t, err)

	timedOut, err := f.store.GetByID(ctx, first.ID)
	require.NoError(t, err)
	timedOut.Status = models.StatusTimedOut
	require.NoError(t, f.store.Update(ctx, timedOut))

	second, err := f.service.Create(actingAs("prison-ca"), identity)
	require.NoError(t, err)
	assert.Equal(t, models.KindHardStop, second.Kind)
}

func TestCreateWithoutPrincipal(t *testing.T) {
	f := newFixture()
	f.eligibleRecord(identity.NomisID, models.KindCRD)

	_, err := f.service.Create(context.Background(), identity)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestSubmitAndApprove(t *testing.T) {
	f := newFixture()
	f.eligibleRecord(identity.NomisID, models.KindCRD)

	licence, err := f.service.Create(actingAs("tcom"), identity)
	require.NoError(t, err)

	submitted, err := f.service.Submit(actingAs("tcom"), licence.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.SubmittedBy)
	assert.Equal(t, "tcom", *submitted.SubmittedBy)

	approved, err := f.service.Approve(actingAs("approver"), licence.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "approver", *approved.ApprovedBy)

	all := f.outbox.All()
	require.Len(t, all, 2)
	assert.Equal(t, events.LicenceSubmitted, all[0].Type)
	assert.Equal(t, events.LicenceApproved, all[1].Type)
}

func TestApproveUnsubmittedLicence(t *testing.T) {
	f := newFixture()
	f.eligibleRecord(identity.NomisID, models.KindCRD)

	licence, err := f.service.Create(actingAs("tcom"), identity)
	require.NoError(t, err)

	_, err = f.service.Approve(actingAs("approver"), licence.ID)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodePreconditionFailed, dErrors.CodeOf(err))
}

func activeLicence(t *testing.T, f *fixture) *models.Licence {
	t.Helper()
	f.eligibleRecord(identity.NomisID, models.KindCRD)
	ctx := actingAs("tcom")
	licence, err := f.service.Create(ctx, identity)
	require.NoError(t, err)
	_, err = f.service.Submit(ctx, licence.ID)
	require.NoError(t, err)
	_, err = f.service.Approve(actingAs("approver"), licence.ID)
	require.NoError(t, err)
	activated, err := f.service.OverrideStatus(actingAs("support"), licence.ID, models.StatusActive, "released today")
	require.NoError(t, err)
	return activated
}

func TestVariationLifecycle(t *testing.T) {
	f := newFixture()
	original := activeLicence(t, f)

	variation, err := f.service.CreateVariation(actingAs("tcom"), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVariationInProgress, variation.Status)
	require.NotNil(t, variation.VersionOf)
	assert.Equal(t, original.ID, *variation.VersionOf)
	assert.NotEqual(t, original.ID, variation.ID)

	submitted, err := f.service.Submit(actingAs("tcom"), variation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVariationSubmitted, submitted.Status)

	approved, err := f.service.ApproveVariation(actingAs("approver"), variation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, approved.Status)

	// The original is superseded in the same transaction.
	stored, err := f.store.GetByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, stored.Status)

	var types []events.EventType
	for _, e := range f.outbox.All() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.LicenceVariationApproved)
	assert.Contains(t, types, events.LicenceInactivated)
	assert.Contains(t, types, events.LicenceActivated)
}

func TestRejectVariation(t *testing.T) {
	f := newFixture()
	original := activeLicence(t, f)

	variation, err := f.service.CreateVariation(actingAs("tcom"), original.ID)
	require.NoError(t, err)
	_, err = f.service.Submit(actingAs("tcom"), variation.ID)
	require.NoError(t, err)

	rejected, err := f.service.RejectVariation(actingAs("approver"), variation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVariationRejected, rejected.Status)

	// The original stays active; rework can resubmit.
	stored, err := f.store.GetByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, stored.Status)
}

func TestApproveVariationOnNonVariation(t *testing.T) {
	f := newFixture()
	licence := activeLicence(t, f)

	_, err := f.service.ApproveVariation(actingAs("approver"), licence.ID)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodePreconditionFailed, dErrors.CodeOf(err))
}

func TestOverrideStatusRequiresReason(t *testing.T) {
	f := newFixture()
	licence := activeLicence(t, f)

	_, err := f.service.OverrideStatus(actingAs("support"), licence.ID, models.StatusInactive, "  ")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestOverrideStatusRecordsReasonAndEmits(t *testing.T) {
	f := newFixture()
	licence := activeLicence(t, f)

	overridden, err := f.service.OverrideStatus(actingAs("support"), licence.ID, models.StatusInactive, "created in error")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, overridden.Status)
	assert.Equal(t, "created in error", overridden.StatusReason)

	all := f.outbox.All()
	last := all[len(all)-1]
	assert.Equal(t, events.LicenceInactivated, last.Type)
	assert.Equal(t, licence.ID, last.LicenceID)
}

func TestOverrideStatusRejectsIllegalTransition(t *testing.T) {
	f := newFixture()
	f.eligibleRecord(identity.NomisID, models.KindCRD)

	licence, err := f.service.Create(actingAs("tcom"), identity)
	require.NoError(t, err)

	_, err = f.service.OverrideStatus(actingAs("support"), licence.ID, models.StatusActive, "skip the queue")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodePreconditionFailed, dErrors.CodeOf(err))
}

func TestTimeServedLicencesAreReadOnly(t *testing.T) {
	f := newFixture()
	ctx := actingAs("tcom")

	timeServed := &models.Licence{
		Kind:    models.KindTimeServed,
		Status:  models.StatusActive,
		NomisID: identity.NomisID,
		CRN:     identity.CRN,
	}
	require.NoError(t, f.store.Create(ctx, timeServed))

	_, err := f.service.OverrideStatus(ctx, timeServed.ID, models.StatusInactive, "tidy up")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodePreconditionFailed, dErrors.CodeOf(err))

	_, err = f.service.CreateVariation(ctx, timeServed.ID)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodePreconditionFailed, dErrors.CodeOf(err))
}

func TestGetUnknownLicence(t *testing.T) {
	f := newFixture()
	_, err := f.service.Get(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}
