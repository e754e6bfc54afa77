package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Open builds the configured store backend and makes sure default documents exist.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	var store Store
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if pg.PoolHandle() == nil {
			return nil, fmt.Errorf("postgres store requires POSTGRES_DSN")
		}
		store = NewPostgresStore(pg.PoolHandle(), cfg.Postgres.RunMigrations, logger).WithPostgres(pg)
	case config.StoreBackendRedis:
		r := NewRedis(cfg.Redis, logger)
		store = NewRedisStore(r.Client, cfg.Store.RedisKeyPrefix)
	default:
		store = NewFileStore(cfg.Store.Dir, logger)
	}

	if err := store.Ensure(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("initialize %s store: %w", cfg.Store.Backend, err)
	}
	logger.Info("ticket store ready", zap.String("backend", cfg.Store.Backend))
	return store, nil
}
