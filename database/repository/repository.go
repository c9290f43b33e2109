package repository

import (
	"context"
	"fmt"

	"deviceinventory/config"
	"deviceinventory/database"
	deviceRepo "deviceinventory/database/repository/device"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Re-export the DeviceRepository interface and constructors.
type DeviceRepository = deviceRepo.DeviceRepository

var (
	ErrDeviceNotFound   = deviceRepo.ErrDeviceNotFound
	NewMongoDeviceRepo  = deviceRepo.NewMongoDeviceRepo
	NewSQLiteDeviceRepo = deviceRepo.NewSQLiteDeviceRepo
	NewMemoryDeviceRepo = deviceRepo.NewMemoryDeviceRepo
	NewCachedDeviceRepo = deviceRepo.NewCachedDeviceRepo
)

// Store is an opened device repository together with the handles behind it.
type Store struct {
	Devices DeviceRepository
	// Ping probes the backing database.
	Ping func(ctx context.Context) error

	close func(ctx context.Context) error
}

// Close releases the backing database connection.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open builds the repository selected by cfg.StoreBackend. A non-nil cache
// wraps it in the Redis read-through cache.
func Open(ctx context.Context, cfg config.Config, cache *redis.Client, logger *zap.Logger) (*Store, error) {
	var store *Store

	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := database.ConnectMongo(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store = &Store{
			Devices: deviceRepo.NewMongoDeviceRepo(client.Database(cfg.DatabaseName), cfg.DBTimeout, logger),
			Ping:    func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:   client.Disconnect,
		}
	case config.BackendSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo, err := deviceRepo.NewSQLiteDeviceRepo(db, cfg.DBTimeout)
		if err != nil {
			db.Close()
			return nil, err
		}
		store = &Store{
			Devices: repo,
			Ping:    db.PingContext,
			close:   func(context.Context) error { return db.Close() },
		}
	case config.BackendMemory:
		store = &Store{
			Devices: deviceRepo.NewMemoryDeviceRepo(),
			Ping:    func(context.Context) error { return nil },
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	logger.Info("Device store opened", zap.String("backend", cfg.StoreBackend), zap.Bool("cached", cache != nil))
	if cache != nil {
		store.Devices = deviceRepo.NewCachedDeviceRepo(store.Devices, cache, cfg.CacheTTL, logger)
	}
	return store, nil
}
