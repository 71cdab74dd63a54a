// Package storage opens the link graph backend selected by configuration.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkgraph-crawler/internal/config"
	"github.com/JakeFAU/linkgraph-crawler/internal/crawler"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage/memory"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage/postgres"
	"github.com/JakeFAU/linkgraph-crawler/internal/storage/sqlite"
)

// Backend is an opened link graph store plus its lifecycle hooks.
type Backend struct {
	Store   crawler.LinkGraphStore
	Driver  string
	migrate func(context.Context) error
	close   func() error
}

// Open connects to the configured driver. The sqlite backend migrates on open;
// postgres requires an explicit Migrate.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", config.StoreMemory:
		logger.Info("using in-memory link graph store")
		return &Backend{Store: memory.NewLinkGraphStore(), Driver: config.StoreMemory}, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("using sqlite link graph store", zap.String("path", store.Path()))
		return &Backend{Store: store, Driver: config.StoreSQLite, migrate: store.Migrate, close: store.Close}, nil
	case config.StorePostgres:
		store, err := postgres.NewLinkGraphStore(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info("using postgres link graph store")
		return &Backend{
			Store:   store,
			Driver:  config.StorePostgres,
			migrate: store.Migrate,
			close: func() error {
				store.Close()
				return nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Migrate applies the schema. It is a no-op for the memory backend.
func (b *Backend) Migrate(ctx context.Context) error {
	if b.migrate == nil {
		return nil
	}
	if err := b.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", b.Driver, err)
	}
	return nil
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	if err := b.close(); err != nil {
		return fmt.Errorf("close %s store: %w", b.Driver, err)
	}
	return nil
}
