// Package app wires the sync core together for the host binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kimhsiao/lifelog/backend/internal/config"
	"github.com/kimhsiao/lifelog/backend/internal/db"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	"github.com/kimhsiao/lifelog/backend/internal/remote"
	"github.com/kimhsiao/lifelog/backend/internal/store"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
	"github.com/kimhsiao/lifelog/backend/internal/sync/lifecycle"
	"github.com/kimhsiao/lifelog/backend/internal/sync/queue"
	"github.com/kimhsiao/lifelog/backend/internal/telemetry"
)

// App holds the opened components.
type App struct {
	Config    *config.Config
	DB        *db.DB
	Queue     *queue.Queue
	Store     *store.Store
	Remote    *remote.Client
	Tokens    *remote.TokenFile
	Telemetry *telemetry.Telemetry
	Engine    *syncpkg.Engine
	Trigger   *lifecycle.Trigger

	logger *logging.Logger
}

// Option adjusts how Open builds the App.
type Option func(*options)

type options struct {
	remote    syncpkg.Remote
	dbPath    string
	logOutput io.Writer
}

// WithRemote replaces the HTTP client as the engine's remote.
func WithRemote(r syncpkg.Remote) Option {
	return func(o *options) { o.remote = r }
}

// WithDatabasePath opens the database at path instead of inside the data
// directory.
func WithDatabasePath(path string) Option {
	return func(o *options) { o.dbPath = path }
}

// WithLogOutput sends log entries to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// Open validates cfg, opens and migrates the database, and builds the
// engine with its remote, telemetry and lifecycle trigger. The trigger is
// not started.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			a = nil
		}
	}()

	logCfg := cfg.LoggingConfig()
	logCfg.Output = o.logOutput
	a.logger = logging.New(logCfg)
	logging.SetDefault(a.logger)

	if o.dbPath != "" {
		a.DB, err = db.OpenPath(o.dbPath)
	} else {
		a.DB, err = db.Open(cfg.DataDir)
	}
	if err != nil {
		return a, err
	}
	if err = a.DB.Migrate(ctx); err != nil {
		return a, fmt.Errorf("failed to migrate database: %w", err)
	}

	a.Queue = queue.New(a.DB.DB)
	a.Store = store.New(a.DB.DB, a.Queue)

	r := o.remote
	if r == nil {
		if r, err = a.openRemote(); err != nil {
			return a, err
		}
	}

	if a.Telemetry, err = telemetry.New(ctx, cfg.TelemetryConfig()); err != nil {
		return a, err
	}
	a.Telemetry.InstallGlobal()

	engineOpts := cfg.EngineOptions()
	engineOpts.Acknowledger = a.Store
	engineOpts.Telemetry = a.Telemetry
	a.Engine = syncpkg.NewEngine(a.Queue, r, engineOpts)
	a.Trigger = lifecycle.NewTrigger(a.Engine, lifecycle.DefaultConfig())

	logging.Info("LifeLog core opened", map[string]interface{}{
		"data_dir":  cfg.DataDir,
		"remote":    cfg.Remote.BaseURL,
		"telemetry": a.Telemetry.Enabled(),
	})
	return a, nil
}

func (a *App) openRemote() (*remote.Client, error) {
	cfg := a.Config
	var tokens remote.TokenSource = remote.StaticToken("")
	if path := cfg.TokenPath(); path != "" {
		tf, err := remote.NewTokenFile(path)
		if err != nil {
			return nil, err
		}
		a.Tokens = tf
		tokens = tf
	}

	client, err := remote.New(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
		UserID:  cfg.UserID,
		Tokens:  tokens,
	})
	if err != nil {
		return nil, err
	}
	a.Remote = client
	return client, nil
}

// Start publishes the startup status, begins watching the token file and
// starts the lifecycle trigger.
func (a *App) Start(ctx context.Context) error {
	if a.Tokens != nil {
		if err := a.Tokens.Watch(ctx); err != nil {
			logging.Warn("Token file watch unavailable", map[string]interface{}{"error": err.Error()})
		}
	}
	if _, err := a.Engine.Initialize(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("Startup sync did not complete", map[string]interface{}{"error": err.Error()})
	}
	a.Trigger.Start(ctx)
	return nil
}

// Close stops the trigger, flushes telemetry and closes the database.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Trigger != nil {
		a.Trigger.Stop()
	}
	if a.Tokens != nil {
		if err := a.Tokens.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
