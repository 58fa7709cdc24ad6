package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/fulfillment/internal/cache"
	"github.com/tournevent/fulfillment/internal/config"
	"github.com/tournevent/fulfillment/internal/credentials"
	"github.com/tournevent/fulfillment/internal/events"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/internal/lock"
	"github.com/tournevent/fulfillment/internal/storage"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/tournevent/fulfillment/pkg/shipper/freightcom"
	"github.com/tournevent/fulfillment/pkg/shipper/ghn"
	"github.com/tournevent/fulfillment/pkg/shipper/ghtk"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sweepLockKey = "fulfillment:sweep"

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel,
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.Version),
	)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return noop.NewTracerProvider().Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.DBLogQueries {
		level = gormlogger.Info
	}
	return storage.Open(storage.Config{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        level,
	})
}

func initRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *shipper.Registry {
	registry := shipper.NewRegistry()

	if cfg.GHTKEnabled {
		registry.Register(ghtk.New(ghtk.Config{
			ProductionURL: cfg.GHTKProductionURL,
			SandboxURL:    cfg.GHTKSandboxURL,
			PartnerCode:   cfg.GHTKPartnerCode,
			Timeout:       cfg.AdapterTimeout,
			UseMock:       cfg.GHTKUseMock,
		}, logger, tracer))
	}

	if cfg.GHNEnabled {
		registry.Register(ghn.New(ghn.Config{
			ProductionURL: cfg.GHNProductionURL,
			SandboxURL:    cfg.GHNSandboxURL,
			Timeout:       cfg.AdapterTimeout,
			UseMock:       cfg.GHNUseMock,
		}, logger, tracer))
	}

	if cfg.FreightcomEnabled {
		registry.Register(freightcom.New(freightcom.Config{
			ProductionURL:   cfg.FreightcomProductionURL,
			SandboxURL:      cfg.FreightcomSandboxURL,
			PaymentMethodID: cfg.FreightcomPaymentMethodID,
			Timeout:         cfg.AdapterTimeout,
			UseMock:         cfg.FreightcomUseMock,
		}, logger, tracer))
	}

	return registry
}

// app holds the wired components shared by the commands.
type app struct {
	cfg         *config.Config
	logger      *otelzap.Logger
	db          *gorm.DB
	redis       redis.UniversalClient
	adapters    *shipper.Registry
	service     *fulfillment.Service
	sweeper     *fulfillment.Sweeper
	invalidator *cache.Invalidator
	publisher   *events.Publisher
	consumer    *events.Consumer
	gatherer    prometheus.Gatherer

	shutdownTracer func(context.Context) error
}

func newApp(ctx context.Context) (_ *app, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, gatherer: prometheus.DefaultGatherer}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	tracer, shutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to init tracer, continuing without tracing", zap.Error(err))
		tracer = noop.NewTracerProvider().Tracer(cfg.ServiceName)
		shutdown = func(context.Context) error { return nil }
	}
	a.shutdownTracer = shutdown

	if a.db, err = initDatabase(cfg); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err = storage.Migrate(a.db); err != nil {
			return nil, err
		}
	}

	if a.redis, err = initRedis(ctx, cfg); err != nil {
		return nil, err
	}

	a.adapters = initShipperRegistry(cfg, logger, tracer)

	providers := fulfillment.NewProviderRegistry(storage.NewProviderRepository(a.db), cfg.ProviderCacheTTL, logger)
	if a.redis != nil {
		a.invalidator = cache.NewInvalidator(a.redis, cache.DefaultChannel, providers, logger)
		providers.SetNotifier(a.invalidator)
	}

	router := fulfillment.NewRouter(providers, a.adapters, credentials.NewEnv())
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	a.service = fulfillment.NewService(router,
		storage.NewShipmentRepository(a.db),
		storage.NewWebhookRepository(a.db),
		fulfillment.Options{
			AdapterTimeout:     cfg.AdapterTimeout,
			MaxWebhookAttempts: cfg.WebhookMaxAttempts,
			SweepBatchSize:     cfg.SweepBatchSize,
			DraftTimeout:       cfg.DraftTimeout,
			RatePolicy:         fulfillment.RatePolicy(cfg.RatePolicy),
		},
		logger, metrics, tracer,
	)

	var locker fulfillment.Locker = lock.NewLocal()
	if a.redis != nil {
		locker = lock.NewRedis(a.redis, sweepLockKey, cfg.SweepLeaseTTL)
	}
	a.sweeper = fulfillment.NewSweeper(a.service, locker)

	if cfg.KafkaEnabled() {
		a.publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaStatusTopic, logger)
		a.service.SetPublisher(a.publisher)
		a.consumer = events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaRequestTopic, cfg.KafkaGroupID, a.service, logger)
	}

	return a, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close(ctx context.Context) {
	var errs []error
	if a.consumer != nil {
		errs = append(errs, a.consumer.Close())
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, storage.Close(a.db))
	}
	if a.shutdownTracer != nil {
		errs = append(errs, a.shutdownTracer(context.WithoutCancel(ctx)))
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Error during shutdown", zap.Error(err))
	}
	a.logger.Sync()
}
