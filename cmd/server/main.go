package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/csip"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/events"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/mapping/metrics"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/platform/config"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/platform/httpserver"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/platform/logger"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/platform/middleware"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/platform/postgres"
	platformredis "github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/platform/redis"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/sentencing"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/transactions"
	"github.com/ministryofjustice/hmpps-nomis-mapping-service-sub003/internal/visits"
)

// main wires the per-kind mapping engines onto shared platform pieces and
// keeps the server lifecycle small. Business logic lives in internal
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to connect kafka publisher", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	}

	var (
		visitStore       mapping.Store[string, int64]
		csipStore        mapping.Store[uuid.UUID, int64]
		sentenceStore    mapping.Store[string, sentencing.NomisKey]
		transactionStore mapping.Store[string, int64]
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		visitStore = visits.NewPostgresStore(pool)
		csipStore = csip.NewPostgresStore(pool)
		sentenceStore = sentencing.NewPostgresStore(pool)
		transactionStore = transactions.NewPostgresStore(pool)
		log.Info("using postgres stores")
	} else {
		visitStore = visits.NewMemoryStore()
		csipStore = csip.NewMemoryStore()
		sentenceStore = sentencing.NewMemoryStore()
		transactionStore = transactions.NewMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
		transactionStore = transactions.NewCachedStore(transactionStore, cache, cfg.CacheTTL, log)
		log.Info("transaction lookups cached", "ttl", cfg.CacheTTL)
	}

	withPub := mapping.WithPublisher[string, int64](publisher)

	visitHandler := visits.NewHandler(log,
		mapping.NewRegistry(visits.Kind, visitStore, log, m, withPub),
		mapping.NewMigrationQuery(visits.Kind, visitStore, m, 0),
	)
	csipHandler := csip.NewHandler(log,
		mapping.NewRegistry(csip.Kind, csipStore, log, m, mapping.WithPublisher[uuid.UUID, int64](publisher)),
		mapping.NewMigrationQuery(csip.Kind, csipStore, m, 0),
		mapping.NewMergeCoordinator(csip.Kind, csipStore, log, m, publisher),
	)
	sentenceHandler := sentencing.NewHandler(log,
		mapping.NewRegistry(sentencing.Kind, sentenceStore, log, m, mapping.WithPublisher[string, sentencing.NomisKey](publisher)),
		mapping.NewMigrationQuery(sentencing.Kind, sentenceStore, m, 0),
		mapping.NewMergeCoordinator(sentencing.Kind, sentenceStore, log, m, publisher),
		sentenceStore,
	)
	transactionHandler := transactions.NewHandler(log,
		mapping.NewRegistry(transactions.Kind, transactionStore, log, m, withPub),
		mapping.NewMigrationQuery(transactions.Kind, transactionStore, m, cfg.TransactionsPerPrisoner),
	)

	readAuth := middleware.RequireRole(cfg.JWTSigningKey, log, middleware.RoleMappingRO, middleware.RoleMappingRW)
	writeAuth := middleware.RequireRole(cfg.JWTSigningKey, log, middleware.RoleMappingRW)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	visitHandler.Register(router, readAuth, writeAuth)
	csipHandler.Register(router, readAuth, writeAuth)
	sentenceHandler.Register(router, readAuth, writeAuth)
	transactionHandler.Register(router, readAuth, writeAuth)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting mapping service", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
