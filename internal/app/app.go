package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	appdb "github.com/ngm9/Utkrusht-task-sub000/internal/data/db"
	"github.com/ngm9/Utkrusht-task-sub000/internal/observability"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/envutil"
	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// App owns the process-wide logger, tracing and lazily opened clients of one command run.
type App struct {
	Log *logger.Logger
	Cfg Config

	dbs          map[string]*appdb.PostgresService
	clients      Clients
	shutdownOtel func(context.Context) error
}

func New(ctx context.Context, service, env string) (*App, error) {
	cfg, err := LoadConfig(env)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewWithOptions(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With("cmd", service, "env", cfg.Env)
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv(service, cfg.Env))
	return &App{
		Log:          log,
		Cfg:          cfg,
		dbs:          map[string]*appdb.PostgresService{},
		shutdownOtel: shutdown,
	}, nil
}

// Database opens (once) the database of env.
func (a *App) Database(env string) (*gorm.DB, error) {
	if pg, ok := a.dbs[env]; ok {
		return pg.DB(), nil
	}
	vals, err := envutil.Require(DSNVar(env))
	if err != nil {
		return nil, err
	}
	pg, err := appdb.NewPostgresService(a.Log, env, vals[DSNVar(env)])
	if err != nil {
		return nil, err
	}
	if a.Cfg.AutoMigrate {
		if err := appdb.AutoMigrateAll(pg.DB()); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("automigrate %s: %w", env, err)
		}
		if err := appdb.EnsureTaskIndexes(pg.DB()); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	a.dbs[env] = pg
	return pg.DB(), nil
}

// HasDatabase reports whether env's database URL is configured.
func (a *App) HasDatabase(env string) bool {
	return envutil.String(DSNVar(env), "") != ""
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.clients.Close()
	for env, pg := range a.dbs {
		if err := pg.Close(); err != nil {
			a.Log.Warn("close database failed", "db_env", env, "error", err)
		}
	}
	if a.shutdownOtel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}
