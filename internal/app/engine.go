package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/bitlabstudio/account-keeping/internal/freckle"
	"github.com/bitlabstudio/account-keeping/internal/fx"
	"github.com/bitlabstudio/account-keeping/internal/ledger"
	"github.com/bitlabstudio/account-keeping/internal/observability"
	"github.com/bitlabstudio/account-keeping/internal/platform/cache"
	"github.com/bitlabstudio/account-keeping/internal/platform/db"
	"github.com/bitlabstudio/account-keeping/internal/platform/sqlite"
	"github.com/bitlabstudio/account-keeping/internal/report"
	"github.com/bitlabstudio/account-keeping/migrations"
)

// RateStore is a rate history that accepts new entries.
type RateStore interface {
	fx.History
	SaveRate(ctx context.Context, rate fx.Rate) error
}

// EngineOptions tunes Open.
type EngineOptions struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Migrate applies pending schema migrations before anything else runs.
	Migrate bool
	// Redis overrides the client dialled from REDIS_ADDR.
	Redis *redis.Client
}

// Engine holds the wired ledger, rate and reporting services for one process.
type Engine struct {
	Config     *Config
	Repository ledger.Repository
	Ledger     *ledger.Service
	Rates      *fx.Resolver
	Reports    *report.Service
	Builder    *report.Builder
	Currencies []string
	// Redis is nil when REDIS_ADDR is empty or unreachable, and in test mode.
	Redis *redis.Client

	store     RateStore
	rateCache *fx.CachedHistory
	sqlDB     *sql.DB
	ping      func(ctx context.Context) error
	closers   []func()
	logger    *slog.Logger
}

// Open connects the configured store, optionally migrates it, and wires the
// services on top.
func Open(ctx context.Context, cfg *Config, opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{Config: cfg, logger: logger}

	switch cfg.LedgerStore {
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		e.sqlDB = db.SQL(pool)
		e.closers = append(e.closers, pool.Close, func() { _ = e.sqlDB.Close() })
		e.Repository = ledger.NewPostgresRepository(pool)
		e.store = fx.NewPostgresHistory(pool)
		e.ping = pool.Ping
	case StoreSQLite:
		conn, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		e.sqlDB = conn
		e.closers = append(e.closers, func() { _ = conn.Close() })
		e.Repository = ledger.NewSQLiteRepository(conn)
		e.store = fx.NewSQLiteHistory(conn)
		e.ping = conn.PingContext
	default:
		return nil, fmt.Errorf("unknown ledger store %q", cfg.LedgerStore)
	}

	if opts.Migrate {
		version, err := e.Migrate()
		if err != nil {
			e.Close()
			return nil, err
		}
		logger.Info("schema migrated", slog.String("store", cfg.LedgerStore), slog.Uint64("version", uint64(version)))
	}

	e.Redis = opts.Redis
	if e.Redis == nil && cfg.RedisAddr != "" && !InTestMode() {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		} else {
			e.Redis = client
			e.closers = append(e.closers, func() { _ = client.Close() })
		}
	}

	catalogue, err := fx.LoadCatalogue(cfg.CurrenciesFile)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Currencies = catalogue.Codes()

	e.rateCache = fx.NewCachedHistory(e.store, cache.NewVersioned(e.Redis, "fx", cfg.ReportCacheTTL))
	e.Rates, err = fx.NewResolver(cfg.BaseCurrency, e.rateCache, fx.WithObserver(opts.Metrics))
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Builder = report.NewBuilder(e.Repository, e.Rates, report.BuilderOptions{
		Currencies: e.Currencies,
		Logger:     logger,
	})
	e.Reports = report.NewService(e.Builder, e.Repository, report.ServiceOptions{
		Cache:    cache.NewVersioned(e.Redis, "reports", cfg.ReportCacheTTL),
		Recorder: opts.Metrics,
		Logger:   logger,
	})
	e.Ledger = ledger.NewService(e.Repository, ledger.ServiceOptions{
		StrictAmounts: cfg.StrictAmounts,
		Invalidator:   e.Reports,
		Logger:        logger,
	})
	return e, nil
}

// Migrate applies pending migrations and returns the schema version.
func (e *Engine) Migrate() (uint, error) {
	return migrations.Up(e.sqlDB, e.Config.LedgerStore)
}

// SaveRate stores a rate and drops cached rates and reports.
func (e *Engine) SaveRate(ctx context.Context, rate fx.Rate) error {
	if err := e.store.SaveRate(ctx, rate); err != nil {
		return err
	}
	if err := e.rateCache.Invalidate(ctx); err != nil {
		e.logger.Warn("invalidate rate cache", slog.Any("error", err))
	}
	if err := e.Reports.Invalidate(ctx); err != nil {
		e.logger.Warn("invalidate report cache", slog.Any("error", err))
	}
	return nil
}

// History exposes the uncached rate history.
func (e *Engine) History() fx.History {
	return e.store
}

// Checker builds the Freckle cross-check. Without an access token the
// checker reports the lookup as unavailable.
func (e *Engine) Checker(ctx context.Context) (*freckle.Checker, error) {
	var source freckle.Source
	if e.Config.FreckleAccessToken != "" {
		client, err := freckle.NewClient(ctx, freckle.ClientConfig{
			APIURL:      e.Config.FreckleAPIURL,
			AccessToken: e.Config.FreckleAccessToken,
			Timeout:     e.Config.FreckleTimeout,
		})
		if err != nil {
			return nil, err
		}
		source = client
	}
	return freckle.NewChecker(source, e.Repository, e.logger), nil
}

// HealthChecks returns the probes served on /healthz.
func (e *Engine) HealthChecks() map[string]HealthCheck {
	checks := map[string]HealthCheck{"store": e.ping}
	if e.Redis != nil {
		client := e.Redis
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}

// Close releases connections in reverse order of opening.
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
