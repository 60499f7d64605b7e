package main

import (
	"context"
	"fmt"

	"github.com/sjperalta/obrafin-api/internal/config"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/jobs"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/services"
	"github.com/sjperalta/obrafin-api/internal/storage"
	"github.com/sjperalta/obrafin-api/pkg/logger"
	"gorm.io/gorm"
)

// app is what a command needs to run. close releases the worker.
type app struct {
	db     *gorm.DB
	repos  *repository.Repositories
	svcs   *services.Services
	worker *jobs.Worker
}

func (a *app) close() {
	a.worker.WaitAsync()
	a.worker.Shutdown()
}

type appLoader func(ctx context.Context) (*app, error)

// loadApp connects using the same environment as the API server.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	db, err := database.Connect(database.Options{
		Driver:     cfg.DatabaseDriver,
		URL:        cfg.DatabaseURL,
		Production: cfg.Environment == "production",
	})
	if err != nil {
		return nil, err
	}
	return newApp(db, cfg)
}

func newApp(db *gorm.DB, cfg *config.Config) (*app, error) {
	store, err := storage.NewLocalStorage(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	repos := repository.NewRepositories(db)
	worker := jobs.NewWorker(1)
	var validator services.InvoiceValidator = registry.NewLocalValidator(cfg.RegistryTaxRates)
	if cfg.RegistryURL != "" {
		validator = registry.NewHTTPValidator(cfg.RegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
	}

	svcs := services.NewServices(services.Dependencies{
		Repos:     repos,
		Tx:        database.NewTransactionManager(db),
		Blobs:     store,
		Validator: validator,
		Async:     worker,
	}, cfg)

	return &app{db: db, repos: repos, svcs: svcs, worker: worker}, nil
}
