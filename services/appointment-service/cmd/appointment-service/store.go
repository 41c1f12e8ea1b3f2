package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paventhan183/dr-appointment/libs/db"
	"github.com/paventhan183/dr-appointment/libs/mongox"
	"github.com/paventhan183/dr-appointment/services/appointment-service/internal/storage"
)

const storeOpenTimeout = 15 * time.Second

// openStore connects the configured backend. keepAlive reports whether the
// backend holds a network connection worth pinging.
func openStore(ctx context.Context, s settings, logger *slog.Logger) (store storage.Store, keepAlive bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, storeOpenTimeout)
	defer cancel()

	switch s.backend {
	case backendFile:
		repo := storage.NewFileRepository(s.dataFile)
		if err := repo.Ping(ctx); err != nil {
			return nil, false, err
		}
		logger.Info("store ready", "backend", s.backend, "path", s.dataFile)
		return repo, false, nil

	case backendPostgres:
		pool, err := db.Open(ctx, s.databaseURL)
		if err != nil {
			return nil, false, fmt.Errorf("postgres connect: %w", err)
		}
		repo := storage.NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, false, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info("store ready", "backend", s.backend)
		return repo, true, nil

	default:
		client, err := mongox.Open(ctx, s.mongoURI, s.mongoDatabase)
		if err != nil {
			return nil, false, fmt.Errorf("mongo connect: %w", err)
		}
		repo := storage.NewMongoRepository(client, storage.DefaultCollection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo index creation failed", "err", err)
		}
		logger.Info("store ready", "backend", s.backend, "database", client.Database().Name())
		return repo, true, nil
	}
}
