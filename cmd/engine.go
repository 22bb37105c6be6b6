package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KelvinMNH/FaceEventos/internal/checkin"
	"github.com/KelvinMNH/FaceEventos/internal/config"
	"github.com/KelvinMNH/FaceEventos/internal/database"
	"github.com/KelvinMNH/FaceEventos/internal/database/mock"
	"github.com/KelvinMNH/FaceEventos/internal/database/postgres"
	"github.com/KelvinMNH/FaceEventos/internal/database/sqlite"
)

// openStore opens the storage backend selected by DATABASE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		slog.Warn("using in-memory store, nothing will be persisted")
		return mock.NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// engine bundles an open store and the service running on it.
type engine struct {
	store database.Store
	svc   *checkin.Service
}

func (e *engine) Close() {
	if err := e.store.Close(); err != nil {
		slog.Warn("failed to close store", "error", err)
	}
}

// newEngine opens the store and wires the check-in service. When the HNSW
// index is enabled it is loaded from the enrolled roster before returning.
func newEngine(ctx context.Context, cfg *config.Config, notifier checkin.Notifier) (*engine, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var index *database.TemplateIndex
	if cfg.Matcher.Index == "hnsw" {
		index = database.NewTemplateIndex(cfg.Matcher.EmbeddingDim)
	}

	matcher, err := checkin.NewMatcher(cfg.Matcher, index)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if cfg.Matcher.Strategy == config.StrategyHarness {
		slog.Warn("harness matcher enabled, samples are trusted as participant IDs")
	}

	svc := checkin.NewService(store, checkin.Options{
		Matcher:      matcher,
		Index:        index,
		Notifier:     notifier,
		Cooldown:     cfg.Ledger.Cooldown,
		EmbeddingDim: cfg.Matcher.EmbeddingDim,
		Logger:       slog.Default(),
	})

	if index != nil {
		n, err := svc.RebuildIndex(ctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to build template index: %w", err)
		}
		slog.Info("template index loaded", "templates", n)
	}

	return &engine{store: store, svc: svc}, nil
}

// openEngine loads the configuration and opens an engine without live notifiers.
func openEngine(ctx context.Context) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newEngine(ctx, cfg, nil)
}
