package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Devdrwt/mdsc-live-client/internal/api"
	"github.com/Devdrwt/mdsc-live-client/internal/conference"
	"github.com/Devdrwt/mdsc-live-client/internal/config"
	"github.com/Devdrwt/mdsc-live-client/internal/logging"
	"github.com/Devdrwt/mdsc-live-client/internal/player"
	"github.com/Devdrwt/mdsc-live-client/internal/store"
)

// App wires the client: config, logging, the hydrated session store, the
// backend API client, and the session orchestrator. One App per process.
type App struct {
	Cfg   *config.Config
	Log   *zap.Logger
	Store store.SessionStore
	API   *api.Client

	orch *player.Orchestrator
}

// New builds the application: validates config, opens and hydrates the
// local store, and constructs the API client with a live token source.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	st, err := store.Open(cfg.StorePath, logger)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if err := st.Hydrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("store hydrate: %w", err)
	}

	apiClient := api.NewClient(cfg.APIBaseURL, func() string {
		return st.Get().AuthToken
	}, logger)

	devices, err := conference.NewDeviceManager(logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("media devices: %w", err)
	}

	app := &App{Cfg: cfg, Log: logger, Store: st, API: apiClient}
	app.orch = player.NewOrchestrator(cfg, apiClient, st, devices, logger)
	return app, nil
}

// Orchestrator returns the session player shared by the commands.
func (a *App) Orchestrator() *player.Orchestrator { return a.orch }

// Close flushes logs and releases the store.
func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.Store.Close()
}
