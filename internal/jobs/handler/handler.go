// Package handler exposes the transition jobs to the external scheduler.
// Each endpoint runs one job synchronously and reports its summary; the
// scheduler retries on non-2xx.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cvl/internal/jobs"
	"cvl/pkg/domain"
	dErrors "cvl/pkg/domain-errors"
	"cvl/pkg/platform/httputil"
	"cvl/pkg/requestcontext"
)

// Runner is the job surface the handler drives.
type Runner interface {
	ActivateLicences(ctx context.Context) (jobs.Summary, error)
	DeactivateLicencesPastReleaseDate(ctx context.Context) (jobs.Summary, error)
	DeactivateHDCLicences(ctx context.Context) (jobs.Summary, error)
	ExpireLicences(ctx context.Context) (jobs.Summary, error)
	TimeOutLicences(ctx context.Context) (jobs.Summary, error)
	InactivateRecallLicences(ctx context.Context) (jobs.Summary, error)
	RemoveExpiredConditions(ctx context.Context) (jobs.Summary, error)
	RecalculateLicenceStartDates(ctx context.Context, batchSize int, cursor domain.LicenceID) (domain.LicenceID, jobs.Summary, error)
}

type Handler struct {
	runner Runner
	logger *slog.Logger
}

func New(runner Runner, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// Register mounts the job trigger routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/activate-licences", h.runJob(h.runner.ActivateLicences, http.StatusOK))
		r.Post("/deactivate-licences-past-release-date", h.runJob(h.runner.DeactivateLicencesPastReleaseDate, http.StatusOK))
		r.Post("/deactivate-hdc-licences", h.runJob(h.runner.DeactivateHDCLicences, http.StatusNoContent))
		r.Post("/expire-licences", h.runJob(h.runner.ExpireLicences, http.StatusOK))
		r.Post("/time-out-licences", h.runJob(h.runner.TimeOutLicences, http.StatusOK))
		r.Post("/run-inactivate-recall-licences-job", h.runJob(h.runner.InactivateRecallLicences, http.StatusOK))
		r.Post("/remove-expired-conditions", h.runJob(h.runner.RemoveExpiredConditions, http.StatusOK))
	})
	r.Post("/recalculate-licence-start-dates", h.handleRecalculate)
}

func (h *Handler) runJob(job func(ctx context.Context) (jobs.Summary, error), successStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := job(r.Context())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if successStatus == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httputil.WriteJSON(w, successStatus, summary)
	}
}

type recalculateRequest struct {
	BatchSize int   `json:"batchSize"`
	ID        int64 `json:"id"`
}

func (req *recalculateRequest) Validate() error {
	if req.BatchSize < 0 {
		return dErrors.New(dErrors.CodeValidation, "batchSize must not be negative")
	}
	if req.ID < 0 {
		return dErrors.New(dErrors.CodeValidation, "id must not be negative")
	}
	return nil
}

// handleRecalculate runs one batch of the start-date recalculation and
// returns the cursor for the next call as a bare number.
func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[recalculateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	cursor, _, err := h.runner.RecalculateLicenceStartDates(ctx, req.BatchSize, domain.LicenceID(req.ID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cursor.Int64())
}
