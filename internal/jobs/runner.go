// Package jobs implements the scheduled transition jobs. Each job is
// triggered by an external scheduler through one synchronous HTTP call, reads
// licence and case-record state fresh, and applies state-machine transitions
// licence by licence: every mutation re-checks its precondition inside its
// own transaction, a licence whose precondition no longer holds is skipped
// and logged, and one licence's failure never aborts its siblings.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"cvl/internal/cvl"
	"cvl/internal/events"
	"cvl/internal/jobs/metrics"
	"cvl/internal/licence/models"
	"cvl/internal/licence/service"
	"cvl/internal/licence/store"
	"cvl/internal/prison"
	"cvl/pkg/domain"
	"cvl/pkg/platform/sentinel"
	"cvl/pkg/requestcontext"
)

var tracer = otel.Tracer("cvl/internal/jobs")

// errSkip marks a licence whose precondition no longer holds at transition
// time. Skips are counted and logged, never treated as failures.
var errSkip = errors.New("precondition no longer holds")

// Records supplies fresh case records for a batch of people.
type Records interface {
	Records(ctx context.Context, nomisIDs []domain.NomisID) (map[domain.NomisID]*cvl.Record, error)
}

// Summary reports one job run. Licences whose precondition was never met are
// not counted; only attempted transitions appear.
type Summary struct {
	Job       string `json:"job"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// Runner holds the shared dependencies of all transition jobs.
type Runner struct {
	tx      service.StoreTx
	store   store.Store
	records Records
	search  prison.SearchClient
	curfews prison.CurfewClient
	emitter events.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
	limit   int
}

func NewRunner(
	tx service.StoreTx,
	licences store.Store,
	records Records,
	search prison.SearchClient,
	curfews prison.CurfewClient,
	emitter events.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
	concurrencyLimit int,
) *Runner {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 1
	}
	return &Runner{
		tx:      tx,
		store:   licences,
		records: records,
		search:  search,
		curfews: curfews,
		emitter: emitter,
		metrics: m,
		logger:  logger,
		limit:   concurrencyLimit,
	}
}

// run wraps a job body with the shared machinery: one pinned "now" for the
// whole run so every licence sees the same today, the SYSTEM principal for
// attribution, a span, timing and the summary log line.
func (r *Runner) run(ctx context.Context, job string, body func(ctx context.Context, today time.Time) (Summary, error)) (Summary, error) {
	ctx, span := tracer.Start(ctx, "jobs."+job)
	defer span.End()

	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	ctx = requestcontext.WithPrincipal(ctx, domain.System)
	today := midnight(now)

	start := time.Now()
	summary, err := body(ctx, today)
	summary.Job = job
	r.metrics.ObserveRun(job, time.Since(start))

	if err != nil {
		r.metrics.IncrementRunFailure(job)
		r.logger.ErrorContext(ctx, "job run failed", "job", job, "error", err)
		return summary, err
	}

	span.SetAttributes(
		attribute.Int("succeeded", summary.Succeeded),
		attribute.Int("skipped", summary.Skipped),
		attribute.Int("failed", summary.Failed),
	)
	r.logger.InfoContext(ctx, "job run complete",
		"job", job,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// processEach applies fn to every licence with bounded concurrency. fn
// returning errSkip (or a stale/missing-row sentinel) counts as a skip;
// any other error counts as a failure. Neither stops the batch.
func (r *Runner) processEach(ctx context.Context, job string, licences []*models.Licence, fn func(ctx context.Context, licence *models.Licence) error) Summary {
	var summary Summary
	results := make([]error, len(licences))

	var g errgroup.Group
	g.SetLimit(r.limit)
	for i, licence := range licences {
		g.Go(func() error {
			results[i] = fn(ctx, licence)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range results {
		switch {
		case err == nil:
			summary.Succeeded++
			r.metrics.IncrementOutcome(job, "succeeded")
		case errors.Is(err, errSkip), errors.Is(err, sentinel.ErrStaleStatus), errors.Is(err, sentinel.ErrNotFound):
			summary.Skipped++
			r.metrics.IncrementOutcome(job, "skipped")
			r.logger.InfoContext(ctx, "licence skipped",
				"job", job, "licence_id", licences[i].ID, "reason", err.Error())
		default:
			summary.Failed++
			r.metrics.IncrementOutcome(job, "failed")
			r.logger.ErrorContext(ctx, "licence transition failed",
				"job", job, "licence_id", licences[i].ID, "error", err)
		}
	}
	return summary
}

// transition re-reads the licence inside its own transaction, re-checks the
// precondition, applies the status change and emits the event, all or
// nothing. A concurrent transition since the listing surfaces as a stale
// status and becomes a skip.
func (r *Runner) transition(ctx context.Context, id domain.LicenceID, to models.LicenceStatus, check func(*models.Licence) error, eventFor func(*models.Licence) events.EventType) error {
	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		licence, err := r.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(licence); err != nil {
				return err
			}
		}
		prior := licence.Status
		if err := licence.Transition(to, domain.System, requestcontext.Now(ctx)); err != nil {
			return fmt.Errorf("%w: %v", errSkip, err)
		}
		if err := r.store.UpdateIfStatus(ctx, licence, prior); err != nil {
			return err
		}
		if eventFor != nil {
			if eventType := eventFor(licence); eventType != "" {
				return r.emitter.Emit(ctx, events.DomainEvent{
					Type:       eventType,
					LicenceID:  licence.ID,
					NomisID:    licence.NomisID,
					CRN:        licence.CRN,
					OccurredAt: requestcontext.Now(ctx),
				})
			}
		}
		return nil
	})
}

// statusIs builds the common precondition re-check.
func statusIs(want models.LicenceStatus) func(*models.Licence) error {
	return func(l *models.Licence) error {
		if l.Status != want {
			return fmt.Errorf("%w: status is %s, wanted %s", errSkip, l.Status, want)
		}
		return nil
	}
}

func (r *Runner) freshRecords(ctx context.Context, licences []*models.Licence) (map[domain.NomisID]*cvl.Record, error) {
	seen := make(map[domain.NomisID]bool, len(licences))
	ids := make([]domain.NomisID, 0, len(licences))
	for _, l := range licences {
		if !seen[l.NomisID] {
			seen[l.NomisID] = true
			ids = append(ids, l.NomisID)
		}
	}
	return r.records.Records(ctx, ids)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
