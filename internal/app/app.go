// Package app wires the configuration, storage, transport, limiter, and
// scheduler into one lifecycle: load config, build the service graph,
// start housekeeping, and fan hot reloads out to the running services.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"notigate/internal/config"
	"notigate/internal/eventbus"
	"notigate/internal/maintenance"
	"notigate/internal/messages"
	"notigate/internal/notify"
	"notigate/internal/ratelimit"
	"notigate/internal/social"
	"notigate/internal/storage"
	"notigate/internal/transport"
	"notigate/internal/transport/telegram"
	logx "notigate/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	slog   *slog.Logger

	bus     eventbus.Bus
	store   storage.Store
	tpt     transport.Transport
	limiter *ratelimit.Service
	sched   *notify.Service
	maint   *maintenance.Service
	social  *social.Comments

	watchCancel context.CancelFunc
	cfgSub      chan *config.Config
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(log.With(logx.String("component", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error { return validate(c) })

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		slog:   slog.New(logx.SlogHandler(log)),
		bus:    eventbus.New(),
	}
	return a, nil
}

func validate(cfg *config.Config) error {
	if _, err := limiterConfig(cfg); err != nil {
		return err
	}
	if _, err := preferences(cfg); err != nil {
		return err
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()

	// Storage first: the scheduler mirrors into it and the preference
	// store may hold a persisted preference set.
	var storeCfg storage.Config
	if sc := cfg.Storage; sc != nil {
		busy, err := config.ParseDuration("storage.busy_timeout", sc.BusyTimeout, 0)
		if err != nil {
			return err
		}
		storeCfg = storage.Config{Driver: sc.Driver, Path: sc.Path, BusyTimeout: busy}
	}
	store, err := storage.Open(storeCfg, a.log.With(logx.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store == nil {
		store = storage.NewMemory()
	}
	a.store = store

	if a.tpt, err = a.buildTransport(cfg); err != nil {
		return err
	}

	limCfg, err := limiterConfig(cfg)
	if err != nil {
		return err
	}
	a.limiter = ratelimit.New(limCfg, a.slog.With(slog.String("service", "ratelimit")), a.bus)

	prefs, err := preferences(cfg)
	if err != nil {
		return err
	}
	// Persisted preferences win over the config seed.
	if saved, ok, err := notify.LoadPreferences(ctx, store); err != nil {
		a.log.Warn("persisted preferences unreadable; using config seed", logx.Err(err))
	} else if ok {
		prefs = saved
	}

	a.sched = notify.New(
		notify.Config{Preferences: &prefs, PacePerSec: cfg.Notifier.PacePerSec},
		a.tpt, store, messages.NewCatalog(),
		a.slog.With(slog.String("service", "notify")), a.bus,
	)

	a.social = social.NewComments(a.limiter, store, a.slog.With(slog.String("service", "social")))

	if err := a.startMaintenance(ctx, cfg); err != nil {
		return err
	}

	// Config hot reload: watch the file and apply changes to the
	// running services. Already-deferred and batched work is untouched.
	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	a.cfgSub = a.cfgMgr.Subscribe(4)
	go func() {
		if err := a.cfgMgr.Watch(wctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go a.reloadLoop(wctx)

	a.log.Info("engine started",
		logx.String("storage", strings.ToLower(storeCfg.Driver)),
		logx.String("transport", transportDriver(cfg)))
	return nil
}

func (a *App) buildTransport(cfg *config.Config) (transport.Transport, error) {
	switch transportDriver(cfg) {
	case "memory":
		return transport.NewMemory(), nil
	case "telegram":
		tc := cfg.Transport.Telegram
		if tc == nil {
			return nil, fmt.Errorf("transport.telegram block is required for the telegram driver")
		}
		timeout, err := config.ParseDuration("transport.telegram.send_timeout", tc.SendTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		return telegram.New(telegram.Config{
			Token:       tc.Token,
			ChatID:      tc.ChatID,
			ThreadID:    tc.ThreadID,
			SendTimeout: timeout,
		}, a.slog.With(slog.String("service", "transport")))
	default:
		return nil, fmt.Errorf("unknown transport driver %q", cfg.Transport.Driver)
	}
}

func transportDriver(cfg *config.Config) string {
	d := strings.ToLower(strings.TrimSpace(cfg.Transport.Driver))
	if d == "" {
		return "memory"
	}
	return d
}

func (a *App) startMaintenance(ctx context.Context, cfg *config.Config) error {
	a.maint = maintenance.New(
		maintenance.Config{DefaultTimeout: 30 * time.Second},
		a.slog.With(slog.String("service", "maintenance")),
	)

	sweepSpec := cfg.Maintenance.SweepSpec
	if sweepSpec == "" {
		sweepSpec = "@every 1h"
	}
	pruneSpec := cfg.Maintenance.PruneSpec
	if pruneSpec == "" {
		pruneSpec = "@every 1h"
	}

	if err := a.maint.Register(maintenance.Job{
		ID: "ratelimit.sweep", Name: "limiter history sweep", Spec: sweepSpec,
		Run: func(ctx context.Context) error {
			a.limiter.Sweep(time.Now())
			return nil
		},
	}); err != nil {
		return err
	}
	if err := a.maint.Register(maintenance.Job{
		ID: "notify.prune_delivery_log", Name: "delivery log prune", Spec: pruneSpec,
		Run: func(ctx context.Context) error {
			a.sched.PruneDeliveryLog(time.Now())
			return nil
		},
	}); err != nil {
		return err
	}

	a.maint.Start(ctx)
	return nil
}

func (a *App) reloadLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-a.cfgSub:
			if !ok || cfg == nil {
				return
			}
			a.applyConfig(cfg)
		}
	}
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})

	if limCfg, err := limiterConfig(cfg); err == nil {
		a.limiter.Apply(limCfg)
	} else {
		a.log.Warn("rate limit config not applied", logx.Err(err))
	}

	if prefs, err := preferences(cfg); err == nil {
		a.sched.Apply(prefs)
	} else {
		a.log.Warn("preference config not applied", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

// Stop tears the graph down in reverse dependency order. Batch timers
// are flushed, not abandoned.
func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	if a.cfgSub != nil {
		a.cfgMgr.Unsubscribe(a.cfgSub)
		a.cfgSub = nil
	}
	if a.maint != nil {
		a.maint.Stop(ctx)
	}
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if c, ok := a.tpt.(interface{ Close() }); ok && c != nil {
		c.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	a.log.Info("engine stopped")
	return a.logSvc.Close()
}

// Scheduler exposes the notification scheduler to embedding callers.
func (a *App) Scheduler() *notify.Service { return a.sched }

// Limiter exposes the generic rate limiter.
func (a *App) Limiter() *ratelimit.Service { return a.limiter }

// Comments exposes the rate-limited comment writer.
func (a *App) Comments() *social.Comments { return a.social }

// Bus exposes the lifecycle event bus.
func (a *App) Bus() eventbus.Bus { return a.bus }
