package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipment-risk-service/internal/adapters/cache"
	"shipment-risk-service/internal/adapters/catalog"
	"shipment-risk-service/internal/adapters/repositories"
	"shipment-risk-service/internal/api"
	"shipment-risk-service/internal/config"
	"shipment-risk-service/internal/platform/db"
	"shipment-risk-service/internal/platform/logging"
	"shipment-risk-service/internal/platform/obs"
	"shipment-risk-service/internal/platform/simclock"
	"shipment-risk-service/internal/ports"
	"shipment-risk-service/internal/services"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (Postgres or memory, Redis) behind ports and starts
// the scheduler and the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server stopped with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	shutdownTracing, err := obs.InitTracing(ctx, obs.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.TracingServiceName,
		SampleRatio: cfg.TracingSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	policyFile, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return err
	}
	policy, err := policyFile.Build(cfg.SimTickDuration)
	if err != nil {
		return err
	}

	seed, err := catalog.LoadSeedFile(cfg.CatalogSeedPath)
	if err != nil {
		return err
	}

	adapters, closeAdapters, err := openAdapters(ctx, cfg, seed, logger)
	if err != nil {
		return err
	}
	defer closeAdapters()

	reg := prometheus.NewRegistry()
	metrics, err := obs.NewEngineCollector(reg)
	if err != nil {
		return err
	}

	engine, err := services.NewEngine(services.EngineConfig{
		Catalog:   adapters.catalog,
		Shipments: adapters.shipments,
		Convoys:   adapters.convoys,
		Ledger:    adapters.ledger,
		Clock:     simclock.New(cfg.SimStart, cfg.SimTickDuration),
		Policy:    policy,
		RNG:       services.NewSeededSource(cfg.SimSeed),
		Metrics:   metrics,
		Logger:    logger,
		Workers:   cfg.SimWorkers,
	})
	if err != nil {
		return err
	}
	if err := engine.Restore(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	if cfg.SimTickInterval > 0 {
		sched := services.NewScheduler(engine, cfg.SimTickInterval, logger)
		go func() {
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("scheduler: %w", err)
			}
		}()
	} else {
		logger.Info(ctx, "scheduler disabled; advance with POST /ticks")
	}

	router := api.NewRouter(api.Deps{
		Engine:  engine,
		Catalog: adapters.catalog,
		Metrics: metrics.Handler(),
		Logger:  logger,
	})

	// Tick requests fan out over every active shipment; write timeout leaves room for that.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info(ctx, "server listening", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutdown requested")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

type adapterSet struct {
	catalog   ports.CatalogLister
	shipments ports.ShipmentStore
	convoys   ports.ConvoyStore
	ledger    ports.PayoutLedger
}

// openAdapters picks Postgres when DATABASE_URL is set and in-memory stores
// otherwise. The catalog is wrapped in the Redis cache when REDIS_ADDR is set.
func openAdapters(ctx context.Context, cfg config.Config, seed catalog.Seed, logger logging.Logger) (adapterSet, func(), error) {
	var (
		set     adapterSet
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return set, closeAll, err
		}
		closers = append(closers, func() { _ = conn.Close() })

		sqlCatalog, err := initDatabase(ctx, conn, seed)
		if err != nil {
			closeAll()
			return set, func() {}, err
		}
		set.catalog = sqlCatalog
		set.shipments = repositories.NewSQLShipmentStore(conn)
		set.convoys = repositories.NewSQLConvoyStore(conn)
		set.ledger = repositories.NewSQLPayoutLedger(conn)
		logger.Info(ctx, "using postgres stores")
	} else {
		store := repositories.NewMemoryStore()
		set.catalog = catalog.NewMemoryCatalog(seed)
		set.shipments = store
		set.convoys = store
		set.ledger = repositories.NewMemoryLedger()
		logger.Warn(ctx, "DATABASE_URL not set; shipments are kept in memory only")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { _ = rdb.Close() })

		cached := cache.NewRedisCatalogCache(set.catalog, rdb, cfg.CatalogCacheTTL, logger)
		// Seed data may have changed since the entries were cached.
		if err := cached.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "catalog cache invalidation failed", logging.Err(err))
		}
		set.catalog = cached
		logger.Info(ctx, "catalog cache enabled", logging.String("redis_addr", cfg.RedisAddr))
	}

	return set, closeAll, nil
}

// Initialize schema and import catalog reference data on startup.
func initDatabase(ctx context.Context, conn *sql.DB, seed catalog.Seed) (*catalog.SQLCatalog, error) {
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	c := catalog.NewSQLCatalog(conn)
	if err := c.Import(ctx, seed); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return c, nil
}
