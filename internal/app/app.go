// Package app initializes and holds the long-lived services of the sync
// process. It is the single place where configuration turns into wired
// components, so both the server and the one-shot CLI share identical
// plumbing.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/palbase/palbase-sync/internal/browser"
	"github.com/palbase/palbase-sync/internal/config"
	"github.com/palbase/palbase-sync/internal/fetcher/adoptapet"
	"github.com/palbase/palbase-sync/internal/fetcher/aspca"
	"github.com/palbase/palbase-sync/internal/fetcher/bestfriends"
	"github.com/palbase/palbase-sync/internal/fetcher/petfinder"
	"github.com/palbase/palbase-sync/internal/fetcher/petsmart"
	"github.com/palbase/palbase-sync/internal/fetcher/rescuegroups"
	"github.com/palbase/palbase-sync/internal/fetchutil"
	"github.com/palbase/palbase-sync/internal/ingest"
	"github.com/palbase/palbase-sync/internal/logging"
	"github.com/palbase/palbase-sync/internal/petdata"
	"github.com/palbase/palbase-sync/internal/politeness"
	"github.com/palbase/palbase-sync/internal/robots"
	"github.com/palbase/palbase-sync/internal/storage/postgres"
	"github.com/palbase/palbase-sync/internal/store"
)

// App holds the shared, long-lived services for the sync process: the
// logger, the repository, the headless renderer, and the coordinator
// that drives runs. It is initialized once at startup and torn down in
// reverse order by Close.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Repo        store.Repository
	Coordinator *ingest.Coordinator

	renderer *browser.ChromeRenderer
}

// New wires an App from configuration. It fails fast: any component
// that cannot be initialized aborts startup, and components already
// built are closed before returning the error.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	repo, err := postgres.NewRepo(ctx, postgres.Config{
		DSN:      cfg.Database.DSN,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", zap.Int("max_conns", cfg.Database.MaxConns))

	renderer, err := browser.NewChromeRenderer(browser.Config{
		RemoteURL:      cfg.Browser.RemoteURL,
		UserAgent:      cfg.Browser.UserAgent,
		Timeout:        cfg.BrowserTimeout(),
		MaxConcurrency: cfg.Browser.MaxConcurrency,
		DomainQPS:      cfg.Browser.DomainQPS,
	}, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("start renderer: %w", err)
	}

	static := fetchutil.New(fetchutil.Config{
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.BrowserTimeout(),
	})
	policy := robots.NewEnforcer(cfg.Sources.RespectRobots, cfg.Browser.UserAgent, logger)
	delayer := politeness.NewDelayer(cfg.MinDelay(), cfg.MaxDelay())

	sources := []petdata.Source{
		rescuegroups.New(rescuegroups.Config{APIKey: cfg.Sources.RescueGroupsAPIKey}, logger),
		petfinder.New(petfinder.Config{}, renderer, policy, delayer, logger),
		adoptapet.New(renderer, policy, delayer, logger),
		aspca.New(renderer, static, policy, delayer, logger),
		bestfriends.New(renderer, policy, delayer, logger),
		petsmart.New(petsmart.Config{}, renderer, policy, delayer, logger),
	}

	coordinator := ingest.NewCoordinator(ingest.Config{
		StalenessThreshold: cfg.StalenessThreshold(),
		BatchSize:          cfg.Sync.BatchSize,
	}, repo, sources, logger)

	logger.Info("application services initialized",
		zap.Strings("sources", coordinator.Sources()))

	return &App{
		Config:      cfg,
		Logger:      logger,
		Repo:        repo,
		Coordinator: coordinator,
		renderer:    renderer,
	}, nil
}

// Close releases application resources in reverse initialization order.
func (a *App) Close(ctx context.Context) {
	if err := a.renderer.Close(ctx); err != nil {
		a.Logger.Warn("renderer shutdown", zap.Error(err))
	}
	a.Repo.Close()
	_ = a.Logger.Sync()
}
