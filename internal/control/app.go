// Package control assembles the dashboard backend from configuration and
// manages its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/opsdeck/opsdeck/internal/alert"
	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/core/config"
	"github.com/opsdeck/opsdeck/internal/core/worker"
	"github.com/opsdeck/opsdeck/internal/infra/probe"
	redisclient "github.com/opsdeck/opsdeck/internal/infra/redisx"
	"github.com/opsdeck/opsdeck/internal/infra/storage"
	"github.com/opsdeck/opsdeck/internal/infra/storage/memory"
	"github.com/opsdeck/opsdeck/internal/infra/storage/postgres"
	"github.com/opsdeck/opsdeck/internal/metrics"
	"github.com/opsdeck/opsdeck/internal/monitor"
	"github.com/opsdeck/opsdeck/internal/server"
	"github.com/opsdeck/opsdeck/internal/stream"
)

const cacheMetricsInterval = 30 * time.Second

// App owns every long-lived component of the dashboard backend.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	db    *postgres.DB
	redis *redisclient.Client

	orchestrator *monitor.Orchestrator
	hub          *stream.Hub
	dispatcher   *alert.Dispatcher
	backups      *backup.Manager
	scheduler    *backup.Scheduler
	certWatcher  *worker.CertWatcher
	server       *server.Server
}

// NewApp wires the backend. Postgres and redis are optional: without a
// database URL the backend falls back to in-memory storage, and without
// redis the notification cache lives in memory too.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	app := &App{
		cfg: cfg,
		log: slog.Default().With("component", "app"),
	}

	var (
		backupRepo storage.BackupRepository
		subRepo    storage.SubscriptionRepository
		cache      storage.NotificationCache
	)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.db = db

		if err := goose.SetDialect("postgres"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set migration dialect: %w", err)
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		backupRepo = postgres.NewBackupRepo(db)
		subRepo = postgres.NewSubscriptionRepo(db)
	} else {
		app.log.Warn("Database not configured, using in-memory storage")
		store := memory.NewMemoryStorage()
		backupRepo = memory.NewBackupRepo(store)
		subRepo = memory.NewSubscriptionRepo(store)
		cache = memory.NewNotificationCache(store)
	}

	if cfg.Redis.URL != "" {
		redis, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.redis = redis
		cache = redisclient.NewNotificationCache(redis)
	} else if cache == nil {
		store := memory.NewMemoryStorage()
		cache = memory.NewNotificationCache(store)
	}

	app.dispatcher = alert.NewDispatcher(alert.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:         cfg.Push.Subject,
	}, subRepo, cache)

	app.orchestrator = monitor.NewOrchestrator(monitor.Config{
		Interval:     cfg.Monitor.Interval,
		ProbeTimeout: cfg.Monitor.ProbeTimeout,
	}, app.buildProbers(), app.dispatcher)

	app.hub = stream.NewHub(app.orchestrator, cfg.Monitor.PushInterval)

	app.backups = backup.NewManager(backup.Config{
		Dir:            cfg.Backup.Dir,
		Retention:      cfg.Backup.Retention,
		DumpTimeout:    cfg.Backup.DumpTimeout,
		RestoreTimeout: cfg.Backup.RestoreTimeout,
		Host:           cfg.Backup.Host,
		Port:           cfg.Backup.Port,
		User:           cfg.Backup.User,
		Password:       cfg.Backup.Password,
		DBName:         cfg.Backup.DBName,
	}, backupRepo, app.dispatcher)

	scheduler, err := backup.NewScheduler(cfg.Backup.Schedule, app.backups)
	if err != nil {
		return nil, fmt.Errorf("create backup scheduler: %w", err)
	}
	app.scheduler = scheduler

	app.certWatcher = worker.NewCertWatcher(cfg.SSL.Hosts, cfg.SSL.Interval, app.dispatcher)

	app.server = server.New(
		cfg.Server.Port,
		app.orchestrator,
		app.hub,
		app.backups,
		backupRepo,
		app.dispatcher,
	)

	return app, nil
}

// buildProbers assembles the probe roster from whatever dependencies are
// configured. Unconfigured dependencies are simply not probed.
func (a *App) buildProbers() []probe.Prober {
	var probers []probe.Prober

	for _, svc := range a.cfg.Services {
		probers = append(probers, probe.NewHTTPProber(svc.Name, svc.URL))
	}
	if a.cfg.ClickHouse.URL != "" {
		probers = append(probers, probe.NewClickHouseProber(a.cfg.ClickHouse.Name, a.cfg.ClickHouse.URL))
	}
	if len(a.cfg.Broker.Brokers) > 0 {
		probers = append(probers, probe.NewKafkaProber(a.cfg.Broker.Name, a.cfg.Broker.Brokers))
	}
	if a.cfg.Chain.URL != "" {
		probers = append(probers, probe.NewChainProber(a.cfg.Chain.Name, a.cfg.Chain.URL))
	}
	if a.redis != nil {
		probers = append(probers, probe.NewRedisProber("redis", a.redis))
	}
	if a.db != nil {
		probers = append(probers, probe.NewPostgresProber("postgres", a.db.DB))
	}

	a.log.Info("Probe roster assembled", "count", len(probers))
	return probers
}

// Start launches every background loop and the HTTP server, then announces
// startup to subscribed admins.
func (a *App) Start(ctx context.Context) error {
	a.log.Info("Starting dashboard backend", "port", a.cfg.Server.Port)

	go a.orchestrator.Start(ctx)
	go a.certWatcher.Start(ctx)
	a.scheduler.Start()

	if a.redis != nil {
		go a.runCacheMetrics(ctx)
	}

	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	a.dispatcher.Started(ctx)
	return nil
}

// Stop shuts components down in reverse dependency order.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping dashboard backend")

	a.scheduler.Stop()

	if err := a.server.Stop(ctx); err != nil {
		a.log.Warn("HTTP server shutdown failed", "error", err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Redis close failed", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Database close failed", "error", err)
		}
	}

	a.log.Info("Dashboard backend stopped")
	return nil
}

// runCacheMetrics refreshes the redis hit ratio gauge on a fixed cadence.
func (a *App) runCacheMetrics(ctx context.Context) {
	ticker := time.NewTicker(cacheMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ratio, err := a.redis.HitRatio(ctx)
			if err != nil {
				a.log.Debug("Cache hit ratio unavailable", "error", err)
				continue
			}
			metrics.CacheHitRatio.Set(ratio)
		}
	}
}
