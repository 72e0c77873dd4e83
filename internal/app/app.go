// Package app wires the driven adapters into the framework services.
package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/custodia-labs/syncbridge/internal/adapters/driven/config/file"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/rpc"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/services"
	"github.com/custodia-labs/syncbridge/internal/logger"
	"github.com/custodia-labs/syncbridge/internal/transform"
)

// App is a fully wired framework and the resources it holds.
type App struct {
	Framework   *services.Framework
	Config      *domain.Config
	ConfigStore driven.ConfigStore

	db *sqlite.Store
}

// Options tune New. Zero values mean the defaults.
type Options struct {
	// ConfigPath is the TOML file; empty means ~/.syncbridge/config.toml.
	ConfigPath string

	// Factory overrides the HTTP transport factory.
	Factory driven.TransportFactory
}

// New loads the configuration and builds the framework. Servers are not
// contacted until Start.
func New(ctx context.Context, opts Options) (*App, error) {
	store, err := file.NewConfigStore(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", store.Path(), err)
	}
	if !logger.IsVerbose() {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.Warn("Ignoring log level %q: %v", cfg.LogLevel, err)
		}
	}

	a := &App{Config: cfg, ConfigStore: store}

	var (
		integrations driven.IntegrationStore
		results      driven.SyncResultStore
		history      driven.SchedulerStore
	)
	switch cfg.Storage {
	case domain.StorageMemory:
		integrations = memory.NewIntegrationStore()
		results = memory.NewSyncResultStore()
		history = memory.NewSchedulerStore()
	default:
		db, err := sqlite.NewStore(ctx, cfg.DataDir)
		if err != nil {
			return nil, err
		}
		a.db = db
		integrations = db.IntegrationStore()
		results = db.SyncResultStore()
		history = db.SchedulerStore()
		logger.Debug("Using database %s", db.Path())
	}

	factory := opts.Factory
	if factory == nil {
		factory = rpc.NewFactory()
	}

	supervisor := services.NewSupervisor(factory, cfg.Framework)
	dispatcher := services.NewDispatcher()
	engine := services.NewSyncEngine(supervisor, dispatcher, transform.NewEngine(), results, integrations)

	a.Framework = services.NewFramework(services.FrameworkDeps{
		Servers:      memory.NewServerStore(),
		Integrations: integrations,
		History:      history,
		Supervisor:   supervisor,
		Dispatcher:   dispatcher,
		Engine:       engine,
	})
	return a, nil
}

// Start registers the configured servers and integrations.
func (a *App) Start(ctx context.Context) error {
	return services.Initialize(ctx, a.Framework, a.Config)
}

// Watch re-applies the configuration whenever the file changes. It blocks
// until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	return a.ConfigStore.Watch(ctx, func(cfg *domain.Config) {
		if err := services.Reconcile(ctx, a.Framework, cfg); err != nil {
			logger.Error("Failed to apply reloaded configuration: %v", err)
		}
	})
}

// Close shuts the framework down and releases the database.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := a.Framework.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing database: %w", err))
		}
	}
	return result.ErrorOrNil()
}
