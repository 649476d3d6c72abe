package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/voxbridge/voxbridge/internal/eventlog"
	"github.com/voxbridge/voxbridge/internal/httpapi"
	"github.com/voxbridge/voxbridge/internal/relay"
	"github.com/voxbridge/voxbridge/internal/secrets"
	"github.com/voxbridge/voxbridge/internal/store"
	"github.com/voxbridge/voxbridge/migrations"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	store    *store.Store
	eventLog *eventlog.Logger
	secrets  *secrets.Box
	registry *relay.Registry
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	box, err := secrets.New(cfg.SecretKey)
	if err != nil {
		return nil, errors.New("SECRET_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store.New(db),
		eventLog: eventlog.New(db),
		secrets:  box,
		registry: relay.NewRegistry(),
	}, nil
}

// migrate applies the embedded schema. Goose tracks applied versions in its
// own table, so startup is a no-op on an up-to-date database.
func migrate(db *pgxpool.Pool) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	sqlDB := stdlib.OpenDBFromPool(db)
	defer sqlDB.Close()

	return goose.Up(sqlDB, ".")
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:      a.cfg.PublicBaseURL,
		UpstreamURL:        a.cfg.UpstreamURL,
		DefaultUpstreamKey: a.cfg.OpenAIAPIKey,
		JWTSecret:          a.cfg.JWTSecret,
		JWTExpiry:          a.cfg.JWTExpiry,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, a.secrets, a.registry)
}

// Registry exposes the live session registry so main can drain it on shutdown.
func (a *App) Registry() *relay.Registry {
	return a.registry
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
