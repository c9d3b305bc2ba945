package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cvl/internal/calendar"
	"cvl/internal/caseload"
	caseloadhandler "cvl/internal/caseload/handler"
	"cvl/internal/cvl"
	"cvl/internal/events"
	"cvl/internal/jobs"
	jobshandler "cvl/internal/jobs/handler"
	jobmetrics "cvl/internal/jobs/metrics"
	licencehandler "cvl/internal/licence/handler"
	"cvl/internal/licence/service"
	"cvl/internal/licence/store"
	"cvl/internal/platform/config"
	"cvl/internal/platform/httpserver"
	"cvl/internal/platform/logger"
	"cvl/internal/platform/middleware"
	"cvl/internal/platform/postgres"
	platformredis "cvl/internal/platform/redis"
	"cvl/internal/prison"
	"cvl/internal/probation"
	"cvl/internal/releasedate"
)

// main wires the dependency graph and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.ApplySchema(ctx, db); err != nil {
		log.Error("schema apply failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	feed := calendar.NewFeedClient(cfg.BankHolidayFeedURL, cfg.UpstreamTimeout)
	holidays := calendar.NewCache(feed, redisClient, cfg.BankHolidayFeedTTL, log)
	workingDays := calendar.New(holidays)
	resolver := releasedate.NewResolver(workingDays, cfg.HardStopPeriodDays, cfg.HardStopWarningPeriodDays)

	search := prison.NewHTTPSearchClient(cfg.PrisonerSearchURL, cfg.UpstreamTimeout)
	curfews := prison.NewHTTPCurfewClient(cfg.PrisonAPIBaseURL, cfg.UpstreamTimeout)
	probationClient := probation.NewHTTPClient(cfg.ProbationSearchURL, cfg.UpstreamTimeout)

	licences := store.NewPostgresStore(db)
	outbox := events.NewPostgresOutbox(db)
	emitter := events.NewEmitter(outbox)

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		worker := events.NewWorker(outbox, publisher, cfg.OutboxPollInterval, log)
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("outbox worker stopped", "error", err)
			}
		}()
	} else {
		// Events still land in the outbox; a later deploy with brokers
		// configured drains the backlog.
		log.Warn("no kafka brokers configured, domain events stay queued")
	}

	aggregator := cvl.NewAggregator(search, curfews, licences, resolver, log)
	workflow := service.NewService(newLicencePostgresTx(db), licences, aggregator, emitter, log)
	caseloads := caseload.NewService(probationClient, aggregator, licences, log)
	runner := jobs.NewRunner(
		newLicencePostgresTx(db), licences, aggregator, search, curfews,
		emitter, jobmetrics.New(), log, cfg.JobConcurrencyLimit,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Principal,
		middleware.Recovery(log),
		middleware.Logger(log),
	)
	licencehandler.New(workflow, log).Register(router)
	caseloadhandler.New(caseloads, log).Register(router)
	jobshandler.New(runner, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
