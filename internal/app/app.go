// Package app assembles the service: configuration, storage, the token
// lifecycle, the search aggregator and the HTTP server.
package app

import (
	"context"

	"workspace-search/internal/aggregator"
	"workspace-search/internal/common/errors"
	commonhttp "workspace-search/internal/common/http"
	"workspace-search/internal/common/logging"
	"workspace-search/internal/config"
	"workspace-search/internal/crypto"
	"workspace-search/internal/handlers"
	"workspace-search/internal/providers"
	"workspace-search/internal/server"
	"workspace-search/internal/storage"
	"workspace-search/internal/token"
)

// App holds the wired components and owns their lifecycles.
type App struct {
	config     *config.Config
	store      storage.Store
	dispatcher *aggregator.Dispatcher
	sweeper    *token.Sweeper
	server     *server.Server
	logger     logging.Logger
}

// New builds the application from validated configuration.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	backend, err := storage.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewEncryptedStore(backend, cipher)

	registry := providers.NewRegistry(cfg)
	if len(registry.Names()) == 0 {
		backend.Close()
		return nil, errors.ConfigError("no providers configured; set at least one client id and secret")
	}
	logger.Info("providers registered", logging.Field{Key: "providers", Value: registry.Names()})

	client := commonhttp.NewHTTPClientWithTimeout(cfg.SearchTimeoutDuration())

	manager := token.NewManager(registry, store, client, cfg.PublicBaseURL, logger)
	signer := token.NewStateSigner(cfg.StateSigningSecret)

	sweeper, err := token.NewSweeper(manager, cfg.RefreshSweepSchedule, logger)
	if err != nil {
		backend.Close()
		return nil, errors.ConfigError("invalid REFRESH_SWEEP_SCHEDULE: " + err.Error())
	}

	agg := aggregator.New(registry, manager, client, cfg.SearchTimeoutDuration(), logger)
	dispatcher := aggregator.NewDispatcher(agg, client, cfg.SearchWorkerCount(), logger)

	handler := handlers.New(registry, manager, signer, agg, dispatcher, store, logger)
	srv := server.New(cfg.Port, handler.Router(), logger)

	return &App{
		config:     cfg,
		store:      store,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		server:     srv,
		logger:     logger,
	}, nil
}

// Start launches background workers and serves HTTP. It blocks until the
// server stops.
func (a *App) Start() error {
	a.dispatcher.Start()
	a.sweeper.Start()
	return a.server.Start()
}

// Shutdown stops the server, drains queued searches and closes storage.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)

	a.sweeper.Stop()
	a.dispatcher.Stop()

	if closeErr := a.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
