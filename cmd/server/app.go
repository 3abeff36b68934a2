package main

import (
	"context"
	"fmt"

	"living-science-documents/internal/cache"
	"living-science-documents/internal/db"
	"living-science-documents/internal/logger"
	"living-science-documents/internal/metrics"
	"living-science-documents/internal/registration"
	"living-science-documents/internal/tracing"
	"living-science-documents/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// app holds the collaborators shared by every command.
type app struct {
	db       *gorm.DB
	repo     version.Repository
	cache    *cache.Cache
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	tracing  *tracing.Provider
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.NewMetrics(a.registry)

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, err
	}
	a.tracing = tp

	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on exit")
		a.repo = version.NewMemoryRepository()
	default:
		conn, err := db.Connect(cfg, logger.Component("db"))
		if err != nil {
			return nil, err
		}
		a.db = conn
		a.repo = version.NewRepository(conn)
	}

	a.cache = cache.Connect(ctx, cfg.RedisAddress, logger.Component("cache"))
	return a, nil
}

func (a *app) registrar() registration.Registrar {
	return registration.New(registration.Config{
		Enabled:        cfg.DataCiteEnabled,
		APIURL:         cfg.DataCiteAPIURL,
		Username:       cfg.DataCiteUsername,
		Password:       cfg.DataCitePassword,
		ResolverURL:    cfg.DOIResolverURL,
		MaxAttempts:    cfg.DataCiteMaxAttempts,
		BackoffBase:    cfg.DataCiteBackoffBase,
		AttemptTimeout: cfg.DataCiteAttemptTimeout,
		RateLimit:      cfg.DataCiteRateLimit,
	},
		registration.WithLogger(logger.Component("registration")),
		registration.WithMetrics(a.metrics),
	)
}

func (a *app) versionService(opts ...version.Option) *version.DefaultService {
	opts = append([]version.Option{
		version.WithCache(a.cache),
		version.WithMetrics(a.metrics),
		version.WithTracer(a.tracing.Tracer()),
		version.WithLogger(logger.Component("lifecycle")),
	}, opts...)
	return version.NewService(a.repo, a.registrar(), version.Config{
		DOIPrefix:      cfg.DOIPrefix,
		FrontendURL:    cfg.FrontendURL,
		PublisherName:  cfg.PublisherName,
		RequireLanding: cfg.DataCiteRequireLanding,
	}, opts...)
}

func (a *app) ping(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func (a *app) close(ctx context.Context) {
	if err := a.tracing.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown error")
	}
	if a.db != nil {
		db.Close(a.db, logger.Component("db"))
	}
}
