package repository

import (
	"context"
	"fmt"

	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/database"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// Pinger is implemented by backends with a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpenKVStore builds the backend selected by cfg.Storage.Backend.
func OpenKVStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.KVStore, error) {
	log = log.WithComponent("storage")

	switch cfg.Storage.Backend {
	case "memory":
		log.Warnw("Using in-memory storage, data will not survive a restart")
		return NewMemoryKVStore(), nil

	case "sqlite":
		store, err := NewSQLiteKVStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Infow("Opened sqlite storage", "path", cfg.Storage.SQLitePath)
		return store, nil

	case "file":
		store, err := NewFileKVStore(cfg.Storage.FilePath)
		if err != nil {
			return nil, err
		}
		log.Infow("Opened file storage", "path", cfg.Storage.FilePath)
		return store, nil

	case "postgres":
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, err
		}
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
		if err != nil {
			db.Close()
			return nil, err
		}
		if _, err := migrator.Up(); err != nil {
			db.Close()
			return nil, err
		}
		log.Infow("Opened postgres storage", "host", cfg.Database.Host, "database", cfg.Database.Name)
		return NewPostgresKVStore(db), nil

	case "redis":
		store, err := NewRedisKVStore(ctx, cfg.Redis, cfg.Storage.Namespace)
		if err != nil {
			return nil, err
		}
		log.Infow("Opened redis storage", "addr", cfg.Redis.GetAddr())
		return store, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
