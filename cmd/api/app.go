package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"regionwatch/internal/api/handlers"
	"regionwatch/internal/config"
	"regionwatch/internal/core"
	"regionwatch/internal/db"
	"regionwatch/internal/external"
	"regionwatch/internal/metrics"
	"regionwatch/internal/orchestrator"
	"regionwatch/internal/overlay"
	"regionwatch/internal/regions"
	"regionwatch/internal/series"
	"regionwatch/internal/timeline"
)

// snapshotTimeout bounds a single cache snapshot write, including the final
// one taken after shutdown has begun.
const snapshotTimeout = 30 * time.Second

// app holds the long-running components of the service.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	server     *core.Server
	store      *regions.Store
	resolver   *series.Resolver
	orch       *orchestrator.Orchestrator
	playback   *timeline.Playback
	surface    *overlay.MemorySurface
	reconciler *overlay.Reconciler

	// Nil when the service runs in memory.
	pool      *pgxpool.Pool
	persister *regions.Persister
	snapshots *db.SeriesSnapshotRepository

	closers []func()
}

// buildApp constructs every component and restores persisted state. It does
// not start any background loop.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	recorder, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Enabled() {
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		if err := db.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		a.snapshots = db.NewSeriesSnapshotRepository(pool)
	}

	cache, probes, err := a.newCache(ctx)
	if err != nil {
		return nil, err
	}

	provider := external.NewOpenMeteoClient(
		&http.Client{Timeout: cfg.Provider.Timeout},
		external.OpenMeteoConfig{
			BaseURL:   cfg.Provider.BaseURL,
			Timezone:  cfg.Provider.Timezone,
			UserAgent: providerUserAgent(cfg),
			Retry: external.RetryPolicy{
				MaxRetries: cfg.Provider.MaxRetries,
				MinWait:    cfg.Provider.RetryBaseDelay,
				MaxWait:    cfg.Provider.RetryMaxDelay,
			},
			Logger: logger,
		},
	)
	breaker := provider.Base().BreakerState
	probes = append(probes, core.NewDetailedProbe("provider", func(context.Context) error {
		if breaker() == "open" {
			return errors.New("provider circuit breaker is open")
		}
		return nil
	}, breaker))

	a.resolver = series.NewResolver(provider, cache,
		series.WithTimeout(cfg.Provider.Timeout),
		series.WithMetrics(recorder),
		series.WithLogger(logger),
	)
	a.restoreSnapshots(ctx, cache)

	a.store = regions.NewStore(regions.WithLogger(logger))

	a.surface = overlay.NewMemorySurface()
	a.reconciler = overlay.NewReconciler(a.surface, logger)
	a.closers = append(a.closers, a.reconciler.Attach(a.store))

	if a.pool != nil {
		a.persister = regions.NewPersister(a.store,
			db.NewRegionRepository(a.pool),
			db.NewViewportRepository(a.pool),
			cfg.Database.PersistDebounce,
			logger,
		)
		if err := a.persister.Restore(ctx); err != nil {
			return nil, fmt.Errorf("restoring regions: %w", err)
		}
	}

	a.orch = orchestrator.New(a.store, a.resolver, orchestrator.Config{
		Debounce:    cfg.Sync.Debounce,
		MaxWait:     cfg.Sync.MaxWait,
		RegionDelay: regionDelay(cfg.Sync.RegionDelay),
	},
		orchestrator.WithMetrics(recorder),
		orchestrator.WithLogger(logger),
	)
	a.playback = timeline.NewPlayback(a.store, cfg.Sync.PlaybackInterval, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = recorder
	srv.HealthProbes = probes
	srv.V1RouteRegistrars = a.routeRegistrars(srv.Validator)
	srv.MountRoutes()
	a.server = srv

	ok = true
	return a, nil
}

func (a *app) routeRegistrars(v *core.Validator) []func(chi.Router) {
	l := a.logger
	return []func(chi.Router){
		handlers.NewRegionHandler(a.store, v, l).RegisterRoutes,
		handlers.NewTimelineHandler(a.store, a.playback, a.resolver, v, l).RegisterRoutes,
		handlers.NewSyncHandler(a.orch, a.store, l).RegisterRoutes,
		handlers.NewSeriesHandler(a.resolver, l).RegisterRoutes,
		handlers.NewOverlayHandler(a.surface, a.reconciler).RegisterRoutes,
		handlers.NewViewportHandler(a.store, v, l).RegisterRoutes,
		handlers.RegisterDatasetRoutes,
	}
}

// newCache returns the configured series cache together with the database
// and cache health probes.
func (a *app) newCache(ctx context.Context) (series.Cache, []core.HealthProbe, error) {
	var probes []core.HealthProbe
	if a.pool != nil {
		pool := a.pool
		probes = append(probes, core.NewDetailedProbe("database", pool.Ping, func() string {
			st := pool.Stat()
			return fmt.Sprintf("postgres %d/%d conns", st.AcquiredConns(), st.MaxConns())
		}))
	}

	backend := func() string { return a.cfg.Cache.Backend }
	if a.cfg.Cache.Backend != config.CacheRedis {
		cache := series.NewMemoryCache()
		probes = append(probes, core.NewDetailedProbe("cache", func(context.Context) error { return nil }, backend))
		return cache, probes, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Cache.RedisAddr,
		Password: a.cfg.Cache.RedisPassword.Unmask(),
		DB:       a.cfg.Cache.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	cache := series.NewRedisCache(rdb, a.cfg.Cache.RedisPrefix, a.logger)
	if err := cache.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	probes = append(probes, core.NewDetailedProbe("cache", cache.Ping, backend))
	return cache, probes, nil
}

// restoreSnapshots prunes snapshots from earlier windows and loads the rest
// into cache. Failures are logged; the cache simply starts cold.
func (a *app) restoreSnapshots(ctx context.Context, cache series.Cache) {
	if a.snapshots == nil {
		return
	}
	pruned, err := a.snapshots.DeleteOlderThan(ctx, a.resolver.Window().EndDate())
	if err != nil {
		a.logger.WarnContext(ctx, "series snapshot prune failed", "error", err)
	}
	entries, corrupt, err := a.snapshots.LoadAll(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "series snapshot load failed", "error", err)
		return
	}
	if err := cache.Restore(ctx, entries); err != nil {
		a.logger.WarnContext(ctx, "series cache restore failed", "error", err)
		return
	}
	a.logger.InfoContext(ctx, "series cache restored",
		"entries", len(entries),
		"corrupt", corrupt,
		"pruned", pruned,
	)
}

// run starts the HTTP server and the background loops and blocks until ctx
// is cancelled or one of them fails.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.ListenAndServe(gctx) })
	g.Go(func() error { return a.orch.Run(gctx) })
	g.Go(func() error { return a.playback.Run(gctx) })
	g.Go(func() error { return a.reconciler.Run(gctx) })
	if a.persister != nil {
		g.Go(func() error { return a.persister.Run(gctx) })
	}
	if a.snapshots != nil && a.cfg.Cache.SnapshotInterval > 0 {
		g.Go(func() error { return a.snapshotLoop(gctx, a.cfg.Cache.SnapshotInterval) })
	}

	a.surface.MarkReady()
	err := g.Wait()

	if a.snapshots != nil {
		snapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
		a.snapshot(snapCtx)
		cancel()
	}
	return err
}

func (a *app) snapshotLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
			a.snapshot(snapCtx)
			cancel()
		}
	}
}

// snapshot copies the series cache into the database.
func (a *app) snapshot(ctx context.Context) {
	entries, err := a.resolver.Cache().Entries(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "series cache read failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	inserted, err := a.snapshots.SaveAll(ctx, entries)
	if err != nil {
		a.logger.WarnContext(ctx, "series snapshot failed", "error", err)
		return
	}
	a.logger.DebugContext(ctx, "series snapshot saved", "entries", len(entries), "inserted", inserted)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// newRecorder returns a CloudWatch recorder when metrics are enabled and a
// no-op recorder otherwise.
func newRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metrics.Recorder, error) {
	obs := cfg.Observability
	if !obs.MetricsEnabled {
		return metrics.Noop{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(obs.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if obs.EndpointURL != "" {
			o.BaseEndpoint = aws.String(obs.EndpointURL)
		}
	})
	return metrics.NewCloudWatchRecorder(client, obs.MetricNamespace, logger), nil
}

// regionDelay maps the configured pause to the orchestrator's convention,
// where zero selects the default and a negative value disables the pause.
func regionDelay(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func providerUserAgent(cfg *config.Config) string {
	if cfg.Provider.UserAgent != "" {
		return cfg.Provider.UserAgent
	}
	return cfg.Build.UserAgent(cfg.Service)
}
