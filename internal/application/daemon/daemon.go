// Package daemon assembles the long-running appdeck service.
package daemon

import (
	"context"
	"fmt"
	"time"

	"appdeck/internal/application"
	"appdeck/internal/application/command"
	"appdeck/internal/application/command/run_pipeline"
	"appdeck/internal/application/config"
	"appdeck/internal/application/events"
	"appdeck/internal/application/query"
	"appdeck/internal/application/updates"
	"appdeck/internal/domain/model"
	"appdeck/internal/domain/repository"
	"appdeck/internal/domain/service/app"
	"appdeck/internal/domain/service/lock"
	"appdeck/internal/domain/service/pipeline"
	"appdeck/internal/domain/service/status"
	"appdeck/internal/infra/api"
	"appdeck/internal/infra/builder"
	"appdeck/internal/infra/git"
	"appdeck/internal/infra/hooks"
	"appdeck/internal/infra/store/badger"
	"appdeck/internal/infra/token"
	"appdeck/pkg/cqrs"
	"appdeck/pkg/log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const interruptedMessage = "interrupted by a restart"

// Daemon owns every long-lived component.
type Daemon struct {
	config     *config.Config
	configPath string
	startTime  time.Time

	db          *badger.DB
	store       repository.AppStore
	machine     *status.Machine
	pipeline    *pipeline.Pipeline
	commandBus  cqrs.CommandBus
	queryBus    cqrs.QueryBus
	runPipeline *run_pipeline.RunPipelineHandler
	poller      *updates.Poller
	server      *api.Server
}

// Options replaces the production collaborators, mostly for tests.
type Options struct {
	// Backend defaults to the Docker Compose backend.
	Backend repository.DeploymentBackend
	// InMemoryStore keeps records in memory instead of under the base path.
	InMemoryStore bool
}

// NewDaemon wires the daemon. Background runs started through it are bound
// to ctx.
func NewDaemon(ctx context.Context, cfg *config.Config, configPath string, opts Options) (*Daemon, error) {
	dbConfig := badger.DefaultConfig(cfg.GetStorePath())
	if opts.InMemoryStore {
		dbConfig = badger.InMemoryConfig()
	}
	db, err := badger.Open(dbConfig)
	if err != nil {
		return nil, log.Errorf("failed to open record store: %w", err)
	}

	backend := opts.Backend
	if backend == nil {
		backend, err = application.NewDeploymentBackend(cfg)
		if err != nil {
			_ = db.Close()
			return nil, log.Errorf("failed to create deployment backend: %w", err)
		}
	}

	store := badger.NewAppStore(db)
	issuer := token.NewIssuer(cfg.GetTokenKeyPath(), cfg.TokenTTL.Std())
	broker := events.NewBroker(0)
	machine := status.NewMachine(store, broker)
	locks := lock.NewKeyed()
	fetcher := git.NewFetcher()

	p := pipeline.NewPipeline(cfg, pipeline.Dependencies{
		Store:   store,
		Status:  machine,
		Locks:   locks,
		Fetcher: fetcher,
		Builder: builder.NewDockerBuilder(),
		Backend: backend,
		Hooks:   hooks.NewShellRunner(),
		Tokens:  issuer,
		Events:  broker,
	})
	service := app.NewService(cfg, store, machine, locks, fetcher, backend)

	d := &Daemon{
		config:      cfg,
		configPath:  configPath,
		startTime:   time.Now(),
		db:          db,
		store:       store,
		machine:     machine,
		pipeline:    p,
		runPipeline: run_pipeline.NewRunPipelineHandler(ctx, p, cfg.MaxConcurrentBuilds),
	}

	commandBus := cqrs.NewCommandBus(ctx)
	if err := command.RegisterCommandHandlers(commandBus, service, d.runPipeline, broker); err != nil {
		_ = db.Close()
		return nil, err
	}
	queryBus := cqrs.NewQueryBus(ctx)
	if err := query.RegisterQueryHandlers(queryBus, store, backend, service, broker); err != nil {
		_ = db.Close()
		return nil, err
	}
	d.commandBus = commandBus
	d.queryBus = queryBus

	d.poller = updates.NewPoller(cfg, store, fetcher, d.triggerUpdate)
	d.server = api.NewServer(cfg.ListenAddress, api.Dependencies{
		Commands: commandBus,
		Queries:  queryBus,
		Events:   broker,
		Tokens:   issuer,
	})
	return d, nil
}

// triggerUpdate starts a background run with default options.
func (d *Daemon) triggerUpdate(ctx context.Context, appID string) error {
	return d.commandBus.Dispatch(ctx, run_pipeline.RunPipelineCommand{
		AppID:   appID,
		RunID:   uuid.NewString(),
		Options: model.DefaultRunOptions(),
	})
}

// Recover fails records a previous process left mid-operation and
// refreshes the running flags from the backend.
func (d *Daemon) Recover(ctx context.Context) error {
	apps, err := d.store.List(ctx)
	if err != nil {
		return log.Errorf("failed to list applications: %w", err)
	}
	for _, a := range apps {
		if !a.Status.Transient() {
			continue
		}
		if _, err := d.machine.Settle(ctx, a.ID, interruptedMessage); err != nil {
			log.Warn("Failed to settle application", "app_id", a.ID, "error", err)
		}
	}

	if err := d.pipeline.SyncInventory(ctx); err != nil {
		log.Warn("Failed to sync inventory from backend", "error", err)
	}
	return nil
}

// Run serves until ctx is cancelled or a component fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Recover(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	watcher := application.NewConfigWatcher(d.configPath, application.ApplyLogSettings)
	if err := watcher.Start(ctx); err != nil {
		log.Warn("Config watcher not started", "path", d.configPath, "error", err)
	} else {
		defer watcher.Stop()
	}

	g.Go(func() error { return d.poller.Run(ctx) })
	g.Go(func() error { return d.server.Start(ctx) })

	log.Info("appdeck started", "listen_address", d.config.ListenAddress, "base_path", d.config.BasePath)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon stopped: %w", err)
	}
	return nil
}

// Close drains the buses and background runs, then closes the store.
func (d *Daemon) Close() {
	log.Info("Shutting down", "uptime", time.Since(d.startTime).Round(time.Second))
	d.commandBus.Shutdown()
	d.queryBus.Shutdown()
	d.commandBus.WaitForCompletion()
	d.queryBus.WaitForCompletion()
	d.runPipeline.Wait()
	if err := d.db.Close(); err != nil {
		log.Warn("Failed to close record store", "error", err)
	}
}

// Store returns the record store.
func (d *Daemon) Store() repository.AppStore {
	return d.store
}
