package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/remitos/internal/budget"
	"github.com/Veraticus/remitos/internal/config"
	"github.com/Veraticus/remitos/internal/service"
	"github.com/Veraticus/remitos/internal/storage"
	"github.com/spf13/viper"
)

// loadSettings reads the typed settings from the global viper instance.
func loadSettings() (*config.Settings, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the database and applies pending migrations.
func initStorage(ctx context.Context, settings *config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(settings.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// openBudgetStore returns the configured budget store. The closer releases
// whatever the store holds beyond db.
func openBudgetStore(ctx context.Context, settings *config.Settings, db service.BudgetStore) (service.BudgetStore, io.Closer, error) {
	switch settings.Budget.Store {
	case config.StoreMemory:
		return budget.NewMemoryStore(), nopCloser{}, nil
	case config.StoreRedis:
		store, err := budget.NewRedisStore(ctx, budget.RedisConfig{
			Addr:     settings.Budget.RedisAddr,
			Password: settings.Budget.RedisPassword,
			Key:      settings.Budget.RedisKey,
			TTL:      settings.Budget.Window,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis budget store: %w", err)
		}
		slog.Debug("Using redis budget store", "addr", settings.Budget.RedisAddr)
		return store, store, nil
	default:
		return db, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func closeWithLog(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("Failed to close "+name, "error", err)
	}
}
