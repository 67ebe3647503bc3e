package main

import (
	"alcyxob/fitflow/internal/ai"
	"alcyxob/fitflow/internal/api"
	"alcyxob/fitflow/internal/config"
	"alcyxob/fitflow/internal/domain"
	"alcyxob/fitflow/internal/repository"
	"alcyxob/fitflow/internal/repository/mongo"
	"alcyxob/fitflow/internal/repository/sqlite"
	"alcyxob/fitflow/internal/secret"
	"alcyxob/fitflow/internal/service"
	"alcyxob/fitflow/internal/storage"
	"alcyxob/fitflow/internal/tabsync"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// app is every long-lived component of one execution context.
type app struct {
	backend storage.Backend
	channel *tabsync.Channel
	hub     *api.Hub
	store   *repository.RecordStore

	onboarding service.OnboardingService
	tracking   service.TrackingService
}

// openBackend connects the record backend selected by cfg.Store.Driver.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverFile:
		return storage.NewFileBackend(cfg.Store.Dir, logger)
	case config.DriverMemory:
		return storage.NewMemoryBackend(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLite.Path)
	case config.DriverMongo:
		client, err := mongo.ConnectDB(ctx, cfg.Database.URI)
		if err != nil {
			return nil, err
		}
		return mongo.NewRecordBackend(client, client.Database(cfg.Database.Name)), nil
	case config.DriverS3:
		return storage.NewS3Backend(ctx, cfg.S3, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// openChannel combines every sync transport available for this configuration.
// bus is only for contexts hosted in the same process; a lone server passes nil
// and relies on Redis and storage events.
func openChannel(ctx context.Context, cfg config.Config, backend storage.Backend, bus *tabsync.Bus, logger *zap.Logger) *tabsync.Channel {
	var notifiers []tabsync.Notifier
	if bus != nil {
		notifiers = append(notifiers, tabsync.NewBusNotifier(bus, cfg.Sync.Namespace))
	}
	if cfg.Sync.Redis.Addr != "" {
		redisNotifier, err := tabsync.NewRedisNotifier(ctx, cfg.Sync.Redis, cfg.Sync.Namespace, logger)
		if err != nil {
			logger.Warn("redis sync disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, redisNotifier)
		}
	}
	if w, ok := backend.(storage.Watcher); ok {
		notifiers = append(notifiers, tabsync.NewStorageEventNotifier(w, domain.KeyCredential))
	}
	ch := tabsync.Open(ctx, logger.Named("sync"), notifiers...)
	logger.Info("sync channel open", zap.Strings("transports", ch.Transports()))
	return ch
}

// newApp wires one context: backend, sync channel, store and services.
// Apps sharing bus see each other's writes directly.
func newApp(ctx context.Context, cfg config.Config, bus *tabsync.Bus, logger *zap.Logger) (*app, error) {
	backend, err := openBackend(ctx, cfg, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("could not open %s record store: %w", cfg.Store.Driver, err)
	}
	logger.Info("record store opened", zap.String("driver", cfg.Store.Driver))

	loc, err := cfg.Tracking.Location()
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	schema := service.PlanResponseSchema()
	collaborator, err := ai.New(cfg.AI, schema)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	a := &app{backend: backend}
	a.channel = openChannel(ctx, cfg, backend, bus, logger)
	a.hub = api.NewHub(a.channel, logger.Named("hub"))
	a.store = repository.NewRecordStore(backend, a.hub, secret.NewBox(cfg.Security.Passphrase), logger.Named("records"))

	generation := service.NewGenerationService(a.store, collaborator, logger.Named("generation"))
	a.onboarding = service.NewOnboardingService(a.store, generation, logger.Named("onboarding"))
	a.tracking = service.NewTrackingService(a.store, loc, logger.Named("tracking"))
	return a, nil
}

// Close releases the context in reverse order of construction.
func (a *app) Close() error {
	a.hub.Close()
	_ = a.channel.Close()
	return a.store.Close()
}
