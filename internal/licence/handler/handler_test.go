package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvl/internal/cvl"
	"cvl/internal/events"
	"cvl/internal/licence/models"
	"cvl/internal/licence/service"
	"cvl/internal/licence/store"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/testutil"
)

type fakeRecords struct {
	byNomis map[domain.NomisID]*cvl.Record
}

func (f *fakeRecords) Record(_ context.Context, nomisID domain.NomisID) (*cvl.Record, error) {
	if r, ok := f.byNomis[nomisID]; ok {
		return r, nil
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "no prisoner record for %s", nomisID)
}

type fixture struct {
	router  chi.Router
	store   *store.MemoryStore
	records *fakeRecords
}

func newFixture() *fixture {
	logger := slog.New(slog.DiscardHandler)
	licences := store.NewMemoryStore()
	records := &fakeRecords{byNomis: make(map[domain.NomisID]*cvl.Record)}
	svc := service.NewService(service.NewMemoryTx(), licences, records, events.NewEmitter(events.NewInMemoryOutbox()), logger)

	router := chi.NewRouter()
	New(svc, logger).Register(router)
	return &fixture{router: router, store: licences, records: records}
}

func (f *fixture) eligibleRecord(nomisID domain.NomisID) {
	kind := models.KindCRD
	start := testutil.Date(2024, 3, 15)
	f.records.byNomis[nomisID] = &cvl.Record{
		NomisID:          nomisID,
		IsEligible:       true,
		EligibleKind:     &kind,
		LicenceType:      models.TypeAP,
		LicenceStartDate: &start,
	}
}

func (f *fixture) seedLicence(t *testing.T, status models.LicenceStatus) *models.Licence {
	t.Helper()
	licence := &models.Licence{
		Kind:     models.KindCRD,
		TypeCode: models.TypeAP,
		Status:   status,
		NomisID:  "A1234BC",
		CRN:      "X123456",
	}
	require.NoError(t, f.store.Create(context.Background(), licence))
	return licence
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, path, body)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	req = testutil.WithPrincipal(req, "jsmith")
	req = testutil.WithTime(req, testutil.Date(2024, 3, 11))
	return req
}

func TestCreateLicence(t *testing.T) {
	f := newFixture()
	f.eligibleRecord("A1234BC")

	req := f.do(t, http.MethodPost, "/licences", map[string]string{"nomisId": "A1234BC", "crn": "X123456"})
	rr := testutil.DoRequest(f.router, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var got models.Licence
	testutil.DecodeJSON(t, rr, &got)
	assert.Equal(t, models.KindCRD, got.Kind)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, "jsmith", got.CreatedBy)
}

func TestCreateLicenceRejectsBadIdentity(t *testing.T) {
	f := newFixture()

	req := f.do(t, http.MethodPost, "/licences", map[string]string{"nomisId": "nonsense", "crn": "X123456"})
	rr := testutil.DoRequest(f.router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateLicenceRejectsMalformedBody(t *testing.T) {
	f := newFixture()

	req := testutil.NewRequest(t, http.MethodPost, "/licences")
	req = testutil.WithPrincipal(req, "jsmith")
	rr := testutil.DoRequest(f.router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFindByCRN(t *testing.T) {
	f := newFixture()
	f.seedLicence(t, models.StatusInProgress)
	other := &models.Licence{
		Kind: models.KindCRD, TypeCode: models.TypeAP, Status: models.StatusActive,
		NomisID: "B2345CD", CRN: "Y234567",
	}
	require.NoError(t, f.store.Create(context.Background(), other))

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodGet, "/licences?crn=X123456", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []models.Licence
	testutil.DecodeJSON(t, rr, &got)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CRN("X123456"), got[0].CRN)
}

func TestFindByCRNRejectsBadCRN(t *testing.T) {
	f := newFixture()

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodGet, "/licences?crn=bogus", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetLicence(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusInProgress)

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodGet, "/licences/"+licence.ID.String(), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Licence
	testutil.DecodeJSON(t, rr, &got)
	assert.Equal(t, licence.ID, got.ID)
}

func TestGetLicenceNotFound(t *testing.T) {
	f := newFixture()

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodGet, "/licences/99", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLicenceBadID(t *testing.T) {
	f := newFixture()

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodGet, "/licences/zero", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitLicence(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusInProgress)

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+licence.ID.String()+"/submit", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Licence
	testutil.DecodeJSON(t, rr, &got)
	assert.Equal(t, models.StatusSubmitted, got.Status)
	require.NotNil(t, got.SubmittedBy)
	assert.Equal(t, "jsmith", *got.SubmittedBy)
}

func TestSubmitWithoutPrincipal(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusInProgress)

	req := testutil.NewRequest(t, http.MethodPost, "/licences/"+licence.ID.String()+"/submit")
	rr := testutil.DoRequest(f.router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApproveRequiresSubmitted(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusInProgress)

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+licence.ID.String()+"/approve", nil))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestVariationLifecycleOverHTTP(t *testing.T) {
	f := newFixture()
	original := f.seedLicence(t, models.StatusActive)

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+original.ID.String()+"/create-variation", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	var variation models.Licence
	testutil.DecodeJSON(t, rr, &variation)
	assert.Equal(t, models.StatusVariationInProgress, variation.Status)
	require.NotNil(t, variation.VersionOf)
	assert.Equal(t, original.ID, *variation.VersionOf)

	rr = testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+variation.ID.String()+"/submit", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+variation.ID.String()+"/approve-variation", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var approved models.Licence
	testutil.DecodeJSON(t, rr, &approved)
	assert.Equal(t, models.StatusActive, approved.Status)

	stored, err := f.store.GetByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, stored.Status)
}

func TestRejectVariation(t *testing.T) {
	f := newFixture()
	original := f.seedLicence(t, models.StatusActive)
	variation := &models.Licence{
		Kind:      models.KindCRD,
		TypeCode:  models.TypeAP,
		Status:    models.StatusVariationSubmitted,
		NomisID:   "A1234BC",
		CRN:       "X123456",
		VersionOf: &original.ID,
	}
	require.NoError(t, f.store.Create(context.Background(), variation))

	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+variation.ID.String()+"/reject-variation", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Licence
	testutil.DecodeJSON(t, rr, &got)
	assert.Equal(t, models.StatusVariationRejected, got.Status)
}

func TestOverrideStatus(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusApproved)

	body := map[string]string{"status": "ACTIVE", "reason": "released today"}
	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+licence.ID.String()+"/status", body))

	require.Equal(t, http.StatusOK, rr.Code)
	var got models.Licence
	testutil.DecodeJSON(t, rr, &got)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, "released today", got.StatusReason)
}

func TestOverrideStatusRequiresReason(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusApproved)

	body := map[string]string{"status": "ACTIVE"}
	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+licence.ID.String()+"/status", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOverrideStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	licence := f.seedLicence(t, models.StatusApproved)

	body := map[string]string{"status": "LOST", "reason": "x"}
	rr := testutil.DoRequest(f.router, f.do(t, http.MethodPost, "/licences/"+licence.ID.String()+"/status", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
