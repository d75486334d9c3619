package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dosegate-backend/internal/data/db"
	apphttp "github.com/yungbote/dosegate-backend/internal/http"
	"github.com/yungbote/dosegate-backend/internal/observability"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Store    *db.Service
	Cfg      Config
	Repos    Repos
	Services Services
	Server   *apphttp.Server

	redis        *goredis.Client
	metrics      *observability.Metrics
	otelShutdown func(context.Context) error
}

// OpenStore connects to the configured database and migrates the schema.
func OpenStore(cfg Config, log *logger.Logger) (*db.Service, error) {
	store, err := db.NewService(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(store.DB()); err != nil {
		store.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return store, nil
}

// New builds the full serving graph. Close releases everything New opened.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if err := cfg.ValidateServe(); err != nil {
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	// Before services: they capture observability.Current().
	metrics := observability.Init(log, cfg.Metrics)

	store, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &App{
		Log:          log,
		Store:        store,
		Cfg:          cfg,
		metrics:      metrics,
		otelShutdown: otelShutdown,
	}

	locker, rdb, err := wireLocker(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.redis = rdb

	a.Repos = wireRepos(store.DB(), log)
	a.Services, err = wireServices(log, cfg, store.Driver(), a.Repos, locker)
	if err != nil {
		a.Close()
		return nil, err
	}

	handlerset := wireHandlers(log, store, a.Services)
	middleware := wireMiddleware(log, a.Services)

	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	a.Server = apphttp.NewServer(log, apphttp.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		BolusHandler:   handlerset.Bolus,
		HealthHandler:  handlerset.Health,
	})
	return a, nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return errors.New("app not initialized")
	}
	if a.metrics != nil {
		a.metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.metrics.StartDBCollector(ctx, a.Log, a.Store.DB())
		if a.redis != nil {
			a.metrics.StartRedisCollector(ctx, a.Log, a.redis)
		}
	}
	return a.Server.Run(ctx, ":"+a.Cfg.Port, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warn("redis close failed", "error", err)
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
