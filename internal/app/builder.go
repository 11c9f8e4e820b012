// Package app assembles the server's dependencies from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/tictactoe-server/internal/config"
	"github.com/park285/tictactoe-server/internal/game"
	"github.com/park285/tictactoe-server/internal/gamelock"
	"github.com/park285/tictactoe-server/internal/httpapi"
	"github.com/park285/tictactoe-server/internal/msgcat"
	"github.com/park285/tictactoe-server/internal/storage"
)

type Deps struct {
	Store    *storage.Provider
	Locks    gamelock.Locker
	Redis    *redis.Client
	Messages *msgcat.Catalog
	Engine   *game.Engine
	Server   *httpapi.Server
}

func StorageConfig(cfg *config.AppConfig) storage.Config {
	return storage.Config{
		Driver:      cfg.DatabaseDriver,
		Path:        cfg.DatabasePath,
		DSN:         cfg.DatabaseURL,
		SchemaFile:  cfg.SchemaFile,
		Workers:     cfg.StorageWorkers,
		QueueSize:   cfg.StorageQueue,
		BusyTimeout: cfg.BusyTimeout,
	}
}

// New opens the store, picks the lock backend and builds the HTTP server.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	store, err := storage.Open(ctx, StorageConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	d.Store = store

	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := gamelock.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis lock: %w", err)
		}
		d.Redis = rdb
		d.Locks = gamelock.NewRedis(rdb, cfg.LockTTL, logger)
	default:
		d.Locks = gamelock.NewLocal()
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Messages = msgs

	d.Engine = game.NewEngine(store, d.Locks, logger)
	d.Server = httpapi.New(d.Engine, msgs, logger, httpapi.Options{CORSOrigins: cfg.CORSOrigins})

	logger.Info("deps_ready",
		zap.String("driver", store.Dialect().Name()),
		zap.String("lock", cfg.LockBackend),
		zap.Strings("cors", cfg.CORSOrigins),
	)
	ok = true
	return d, nil
}

func (d *Deps) Close() error {
	var errs []error
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}
