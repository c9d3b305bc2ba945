// Package handler exposes the licence workflow over HTTP: creation,
// submission, approval, the variation sub-lifecycle and manual status
// overrides.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/platform/httputil"
	"cvl/pkg/requestcontext"
)

// Workflow is the licence service surface the handler drives.
type Workflow interface {
	Get(ctx context.Context, id domain.LicenceID) (*models.Licence, error)
	FindByCRN(ctx context.Context, crn domain.CRN) ([]*models.Licence, error)
	Create(ctx context.Context, identity domain.CaseIdentity) (*models.Licence, error)
	Submit(ctx context.Context, id domain.LicenceID) (*models.Licence, error)
	Approve(ctx context.Context, id domain.LicenceID) (*models.Licence, error)
	CreateVariation(ctx context.Context, id domain.LicenceID) (*models.Licence, error)
	ApproveVariation(ctx context.Context, id domain.LicenceID) (*models.Licence, error)
	RejectVariation(ctx context.Context, id domain.LicenceID) (*models.Licence, error)
	OverrideStatus(ctx context.Context, id domain.LicenceID, to models.LicenceStatus, reason string) (*models.Licence, error)
}

type Handler struct {
	workflow Workflow
	logger   *slog.Logger
}

func New(workflow Workflow, logger *slog.Logger) *Handler {
	return &Handler{workflow: workflow, logger: logger}
}

// Register mounts the licence routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/licences", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleFindByCRN)
		r.Route("/{licenceID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/submit", h.byID(h.workflow.Submit))
			r.Post("/approve", h.byID(h.workflow.Approve))
			r.Post("/create-variation", h.byID(h.workflow.CreateVariation, http.StatusCreated))
			r.Post("/approve-variation", h.byID(h.workflow.ApproveVariation))
			r.Post("/reject-variation", h.byID(h.workflow.RejectVariation))
			r.Post("/status", h.handleOverrideStatus)
		})
	})
}

type createRequest struct {
	NomisID string `json:"nomisId"`
	CRN     string `json:"crn"`

	identity domain.CaseIdentity
}

func (req *createRequest) Validate() error {
	nomisID, err := domain.ParseNomisID(req.NomisID)
	if err != nil {
		return err
	}
	crn, err := domain.ParseCRN(req.CRN)
	if err != nil {
		return err
	}
	req.identity = domain.CaseIdentity{NomisID: nomisID, CRN: crn}
	return nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	licence, err := h.workflow.Create(ctx, req.identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, licence)
}

// handleFindByCRN lists every licence row for one probation case.
func (h *Handler) handleFindByCRN(w http.ResponseWriter, r *http.Request) {
	crn, err := domain.ParseCRN(r.URL.Query().Get("crn"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	licences, err := h.workflow.FindByCRN(r.Context(), crn)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, licences)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := licenceID(w, r)
	if !ok {
		return
	}
	licence, err := h.workflow.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, licence)
}

// byID adapts the id-only workflow operations into handlers. The optional
// status overrides the default 200.
func (h *Handler) byID(op func(ctx context.Context, id domain.LicenceID) (*models.Licence, error), status ...int) http.HandlerFunc {
	successStatus := http.StatusOK
	if len(status) > 0 {
		successStatus = status[0]
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := licenceID(w, r)
		if !ok {
			return
		}
		licence, err := op(r.Context(), id)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, successStatus, licence)
	}
}

type overrideStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`

	status models.LicenceStatus
}

func (req *overrideStatusRequest) Validate() error {
	status, err := models.ParseLicenceStatus(req.Status)
	if err != nil {
		return err
	}
	if status == models.StatusNotStarted {
		return dErrors.New(dErrors.CodeValidation, "cannot override to NOT_STARTED")
	}
	req.status = status
	return nil
}

func (h *Handler) handleOverrideStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := licenceID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[overrideStatusRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	licence, err := h.workflow.OverrideStatus(ctx, id, req.status, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, licence)
}

func licenceID(w http.ResponseWriter, r *http.Request) (domain.LicenceID, bool) {
	id, err := domain.ParseLicenceID(chi.URLParam(r, "licenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}
