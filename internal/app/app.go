// Package app assembles a tiercache.Registry and its stores from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/config"
	asynchook "github.com/unkn0wn-root/tiercache/hooks/async"
	"github.com/unkn0wn-root/tiercache/metrics/otelstats"
	"github.com/unkn0wn-root/tiercache/sloghooks"
	"github.com/unkn0wn-root/tiercache/store/sqlite"
)

// App owns a Registry plus the connections behind it.
type App struct {
	Config   *config.Config
	Logger   *stdslog.Logger
	Registry *tiercache.Registry

	hooks   *asynchook.Hooks
	rdb     goredis.UniversalClient
	closers []func() error
}

type closer interface{ Close(context.Context) error }

// New opens the configured tiers and builds the Registry. Engine logs go to w
// through the configured backend; metrics go to the global otel meter
// provider. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.Config, logger *stdslog.Logger, w io.Writer) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	var stores []closer // owned by us until the Registry takes them
	defer func() {
		if err == nil {
			return
		}
		for _, s := range stores {
			_ = s.Close(ctx)
		}
		_ = a.closeResources()
	}()

	engineLog, flush := engineLogger(cfg.Logging, w, logger)
	a.closers = append(a.closers, flush)

	opts := tiercache.RegistryOptions{
		Namespaces:    cfg.NamespaceConfigs(),
		Logger:        engineLog,
		SweepSchedule: cfg.Sweep.Schedule,
		BatchWorkers:  cfg.BatchWorkers,
	}
	counters, err := otelstats.NewHooks(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.hooks = asynchook.New(tiercache.MultiHooks{
		sloghooks.New(logger, sloghooks.Options{SelfHealEvery: 10}),
		counters,
	}, 1, 1024)
	opts.Hooks = a.hooks

	if cfg.Durable.Path != "" {
		store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Durable.Path, MaxBytes: cfg.Durable.MaxBytes})
		if err != nil {
			return nil, fmt.Errorf("durable tier: %w", err)
		}
		stores = append(stores, store)
		opts.Durable = store
		logger.Info("durable tier: sqlite", "path", cfg.Durable.Path, "max_bytes", cfg.Durable.MaxBytes)
	} else {
		logger.Info("durable tier: disabled")
	}

	remote, err := a.openRemote(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("remote tier: %w", err)
	}
	if remote != nil {
		stores = append(stores, remote)
		opts.Remote = remote
	}

	versions, err := a.openVersions(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("version store: %w", err)
	}
	stores = append(stores, versions)
	opts.Versions = versions

	if a.Registry, err = tiercache.NewRegistry(opts); err != nil {
		return nil, err
	}
	reg, err := otelstats.Register(nil, a.Registry)
	if err != nil {
		_ = a.Registry.Close(ctx)
		a.Registry = nil
		stores = nil // closed by the registry
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.closers = append(a.closers, reg.Unregister)
	return a, nil
}

// Close shuts the registry down, then connections and the hook queue.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Registry != nil {
		errs = append(errs, a.Registry.Close(ctx))
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.hooks != nil {
		a.hooks.Close()
	}
	return errors.Join(errs...)
}
