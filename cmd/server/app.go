package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"bookkeeping-service/internal/cache"
	"bookkeeping-service/internal/config"
	"bookkeeping-service/internal/database"
	"bookkeeping-service/internal/forecast"
	"bookkeeping-service/internal/handlers"
	"bookkeeping-service/internal/ledger"
	"bookkeeping-service/internal/lock"
	"bookkeeping-service/internal/logging"
	"bookkeeping-service/internal/metrics"
	"bookkeeping-service/internal/notify"
	"bookkeeping-service/internal/reports"
	"bookkeeping-service/internal/services"
)

// app owns every long-lived component of the process. close releases them in
// reverse order of construction.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics

	forecasts      *services.ForecastService
	sync           *services.SyncService
	reconciliation *services.ReconciliationService
	reports        *services.ReportService
	planning       *services.PlanningService

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	db, err := database.NewConnection(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	a.db = db
	a.onClose(func() { db.Close() })

	var (
		locks       lock.Manager
		reportCache cache.Cache
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			a.close()
			return nil, fmt.Errorf("error connecting to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.onClose(func() { client.Close() })
		locks = lock.NewRedisManager(client, logger)
		reportCache = cache.NewRedisCache(client, "bookkeeping:", logger)
		logger.Info("Using redis for locks and report cache", logging.F("addr", cfg.Redis.Addr))
	} else {
		memLocks := lock.NewMemoryManager(logger)
		memLocks.Start()
		a.onClose(memLocks.Stop)
		memCache := cache.NewMemoryCache(logger)
		memCache.Start()
		a.onClose(memCache.Stop)
		locks, reportCache = memLocks, memCache
	}

	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("Publishing critical alerts to kafka", logging.F("topic", cfg.Kafka.Topic))
	}
	a.onClose(func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close alert publisher")
		}
	})

	repos := services.NewRepositories(db)
	ledgerClient := ledger.NewClient(cfg.Ledger, logger, a.metrics)
	engine := forecast.NewEngine(forecast.Settings{
		LowBalanceThreshold:  cfg.Forecast.LowBalanceThresholdDecimal(),
		LargeOutflowFraction: cfg.Forecast.LargeOutflowFractionDecimal(),
	})

	a.forecasts = services.NewForecastService(db, repos, engine, publisher, a.metrics, logger)
	a.sync = services.NewSyncService(db, repos, ledgerClient, locks, reportCache, a.metrics, logger, cfg)
	a.reconciliation = services.NewReconciliationService(db, repos, locks, cfg.Lock.TTL, logger)
	a.reports = services.NewReportService(ledgerClient, reportCache, cfg.Cache.TTL,
		reports.NewExtractor(reports.DefaultLabels()), repos.Planning, a.metrics, logger)
	a.planning = services.NewPlanningService(repos.Planning, logger)

	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) handlers() handlers.Handlers {
	return handlers.Handlers{
		Forecast:       handlers.NewForecastHandler(a.forecasts, a.cfg.Forecast.DefaultDays, a.logger),
		Data:           handlers.NewDataHandler(a.sync, a.planning, a.logger),
		Reconciliation: handlers.NewReconciliationHandler(a.reconciliation, a.logger),
		Reports:        handlers.NewReportHandler(a.reports, a.logger),
	}
}
