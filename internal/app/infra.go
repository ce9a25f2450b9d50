package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"login-gate/internal/config"
	"login-gate/internal/db"
	"login-gate/internal/logger"
	"login-gate/internal/redis"
	"login-gate/internal/session"

	_ "github.com/lib/pq"
)

type Infra struct {
	DB       *db.DB // nil without DATABASE_DSN
	Redis    *redis.Client
	Sessions session.Store

	closers []func() error
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.DatabaseDSN != "" {
		sqlDB, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, sqlDB.Close)

		if err := sqlDB.PingContext(ctx); err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("database ping: %w", err)
		}

		if err := db.RunAccountsMigration(ctx, sqlDB); err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("database migration: %w", err)
		}

		infra.DB = &db.DB{DB: sqlDB}
		logger.Info("database ready", nil)
	}

	var opts []session.StoreOption

	switch session.StoreType(cfg.SessionStore) {
	case session.StoreTypeRedis:
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		infra.Redis = client
		infra.closers = append(infra.closers, client.Close)
		opts = append(opts, session.WithRedisClient(client.Client))

		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	case session.StoreTypeMemory:
		opts = append(opts, session.WithCleanupInterval(cfg.SessionCleanupInterval))
	}

	store, err := session.NewStore(session.StoreType(cfg.SessionStore), opts...)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	if mem, ok := store.(*session.MemoryStore); ok {
		mem.StartCleanup(ctx)
	}
	infra.Sessions = store
	infra.closers = append(infra.closers, store.Close)

	logger.Info("session store ready", map[string]any{"type": cfg.SessionStore})

	return infra, nil
}

// Close releases resources in reverse order of acquisition.
func (i *Infra) Close() error {
	var errs []error
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
