package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/fuel-mileage-worker/internal/anomaly"
	"github.com/septivank/fuel-mileage-worker/internal/config"
	"github.com/septivank/fuel-mileage-worker/internal/db"
	"github.com/septivank/fuel-mileage-worker/internal/httpapi"
	"github.com/septivank/fuel-mileage-worker/internal/localcache"
	"github.com/septivank/fuel-mileage-worker/internal/mq"
	"github.com/septivank/fuel-mileage-worker/internal/repository"
	"github.com/septivank/fuel-mileage-worker/internal/service"
	"github.com/septivank/fuel-mileage-worker/internal/store"
	"github.com/septivank/fuel-mileage-worker/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
) (*mq.Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.IngestQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting command consumer",
				zap.String("queue", cfg.RabbitMQ.IngestQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// startSyncer refreshes the collection from the remote store on a fixed interval
func startSyncer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, entries *service.EntryService) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting remote sync", zap.Duration("interval", cfg.Sync.Interval))
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Sync.Interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						syncCtx, syncCancel := context.WithTimeout(ctx, cfg.Sync.Interval)
						if err := entries.Refresh(syncCtx, uuid.NewString()); err != nil {
							logger.Warn("remote sync failed", zap.Error(err))
						}
						syncCancel()
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, server *httpapi.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			server.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// ProvideRepository creates the remote entry store
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideLocalCache opens the SQLite cache and closes it on shutdown
func ProvideLocalCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*localcache.Store, error) {
	cache, err := localcache.New(cfg.Sync.CachePath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Info("closing local cache")
			return cache.Close()
		},
	})
	return cache, nil
}

// ProvideValidator creates a validator bound to the wall clock
func ProvideValidator() *validator.Validator {
	return validator.NewValidator(nil)
}

// ProvideEntryStore creates the entry store and warms it on start. The remote
// schema is ensured best effort since the store works without the database.
func ProvideEntryStore(
	lc fx.Lifecycle,
	repo *repository.Repository,
	cache *localcache.Store,
	v *validator.Validator,
	logger *zap.Logger,
) *store.EntryStore {
	entries := store.NewEntryStore(repo, cache, v, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repo.EnsureSchema(ctx); err != nil {
				logger.Warn("remote schema not ensured", zap.Error(err))
			}
			if err := entries.Warm(ctx); err != nil {
				return err
			}
			if err := entries.Refresh(ctx); err != nil {
				logger.Warn("initial remote sync failed, serving cached entries", zap.Error(err))
			}
			return nil
		},
	})

	return entries
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.WorkerExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideEventPublisher exposes the RabbitMQ publisher to the services
func ProvideEventPublisher(publisher *mq.Publisher) service.EventPublisher {
	return publisher
}

// ProvideEntryService creates the entry service
func ProvideEntryService(
	entries *store.EntryStore,
	publisher service.EventPublisher,
	detector *anomaly.Detector,
	cfg *config.Config,
	logger *zap.Logger,
) *service.EntryService {
	return service.NewEntryService(entries, publisher, detector, cfg, logger)
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(
	entries *service.EntryService,
	publisher service.EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ProcessorService {
	return service.NewProcessorService(entries, publisher, cfg.RabbitMQ.RejectRoutingKey, logger)
}

// ProvideHTTPServer creates the API server
func ProvideHTTPServer(cfg *config.Config, entries *service.EntryService, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(cfg, entries, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL, int32(cfg.Database.MaxConns))
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
}
