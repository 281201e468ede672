package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Deepak-Sangle/greenratchet/internal/cache"
	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
	"github.com/Deepak-Sangle/greenratchet/internal/config"
	"github.com/Deepak-Sangle/greenratchet/internal/grid"
	"github.com/Deepak-Sangle/greenratchet/internal/kpi"
	"github.com/Deepak-Sangle/greenratchet/internal/metrics"
	"github.com/Deepak-Sangle/greenratchet/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// engine is an evaluator wired to the configured database, cache and
// metrics registry.
type engine struct {
	repos     *store.Repositories
	evaluator *kpi.Evaluator
	registry  *prometheus.Registry
	closers   []func() error
}

type engineOptions struct {
	// snapshotGrid loads every grid reading into memory up front. Suited to
	// one-shot batch runs; a long-running server queries the database.
	snapshotGrid bool
	// persist appends results to the kpi_results table.
	persist bool
}

func (c *cli) openRepositories() (*store.Repositories, func() error, error) {
	db, err := store.Open(c.cfg.Database.Driver, c.cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return store.NewRepositories(db), sqlDB.Close, nil
}

func (c *cli) openEngine(ctx context.Context, opts engineOptions) (*engine, error) {
	carbon.SetLogger(c.logger.With().Str("component", "carbon").Logger())

	repos, closeDB, err := c.openRepositories()
	if err != nil {
		return nil, err
	}
	e := &engine{repos: repos, registry: prometheus.NewRegistry(), closers: []func() error{closeDB}}

	var gridStore grid.Store = repos.Grid
	if opts.snapshotGrid {
		idx, err := repos.Grid.LoadIndex(ctx)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		c.logger.Debug().Int("readings", idx.Len()).Msg("grid snapshot loaded")
		gridStore = idx
	}
	if c.cfg.Engine.ReferenceFallback {
		gridStore = grid.WithReferenceFallback(gridStore)
	}

	evalCache, err := c.openCache(ctx, e)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(e.registry)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	kopts := evaluatorOptions(c.cfg)
	kopts.Cache = evalCache
	kopts.Recorder = recorder
	if opts.persist {
		kopts.Sink = repos.Results
	}
	e.evaluator = kpi.NewEvaluator(repos.Usage, gridStore, repos, c.logger, kopts)
	return e, nil
}

func evaluatorOptions(cfg config.Config) kpi.Options {
	ci, ws := cfg.CarbonIntensityThresholds(), cfg.WaterStressThresholds()
	return kpi.Options{
		Concurrency:     cfg.Engine.MaxConcurrency,
		TopRegions:      cfg.Engine.TopRegions,
		DefaultWUE:      cfg.Reference.DefaultWUE,
		CarbonIntensity: &ci,
		WaterStress:     &ws,
		CacheTTL:        cfg.Cache.TTL,
	}
}

func (c *cli) openCache(ctx context.Context, e *engine) (kpi.Cache, error) {
	switch c.cfg.Cache.Backend {
	case "memory":
		return cache.NewMemory(), nil
	case "redis":
		r, err := cache.NewRedis(cache.RedisOptions{
			Addr:     c.cfg.Redis.Addr,
			Password: c.cfg.Redis.Password,
			DB:       c.cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, r.Close)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", c.cfg.Redis.Addr, err)
		}
		return r, nil
	default:
		return nil, nil
	}
}

// Close releases the cache and database connections.
func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func logClose(logger zerolog.Logger, e *engine) {
	if err := e.Close(); err != nil {
		logger.Warn().Err(err).Msg("close engine")
	}
}
