package core

import (
	"context"
	"fmt"

	"orthoinfer/internal/config"
	"orthoinfer/internal/infra/persistence/memory"
	"orthoinfer/internal/infra/persistence/postgres"
	"orthoinfer/internal/infra/persistence/sqlite"
	"orthoinfer/pkg/domain"
)

// StoreOpener opens the persistent store a run commits into. The engine
// must be evaluated on every commit.
type StoreOpener func(ctx context.Context, engine *domain.RulesEngine) (domain.PersistentStore, error)

// OpenPersistentStore selects a backend from cfg.Driver, defaulting to
// sqlite when unset.
//
//	memory:   in-memory only (tests / dry runs)
//	sqlite:   embedded file at cfg.SQLitePath
//	postgres: server at cfg.PostgresDSN
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.StorageSQLite
	}
	switch driver {
	case config.StorageMemory:
		return memory.NewStore(engine), nil
	case config.StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// ConfiguredStore returns a StoreOpener for cfg.
func ConfiguredStore(cfg config.Storage) StoreOpener {
	return func(ctx context.Context, engine *domain.RulesEngine) (domain.PersistentStore, error) {
		return OpenPersistentStore(ctx, cfg, engine)
	}
}
