// Package main is the entry point of the campus participation service.
//
// The server wires the participation store (PostgreSQL or SQLite), the
// optional Redis report cache, the domain event bus and the REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campus-hub/participation/config"
	"github.com/campus-hub/participation/internal/application/command"
	"github.com/campus-hub/participation/internal/application/eventhandler"
	"github.com/campus-hub/participation/internal/application/query"
	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/report"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/internal/infrastructure/messaging"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/postgres"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/redis"
	"github.com/campus-hub/participation/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/campus-hub/participation/internal/interface/http"
	"github.com/campus-hub/participation/internal/interface/http/handlers"
	"github.com/campus-hub/participation/pkg/logger"
)

// store is what the application layer needs from either backend.
type store interface {
	participation.Store
	report.Reader
	Ping(ctx context.Context) error
	Close() error
}

type eventBus interface {
	shared.EventBus
	Metrics() *messaging.EventBusMetrics
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		Service:   cfg.App.Name,
		AddCaller: cfg.IsDevelopment(),
	})
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn("failed to read .env file", logger.Err(envErr))
	}
	log.Info("starting participation service",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("db_driver", cfg.Database.Driver),
		logger.String("events_backend", cfg.Events.Backend),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORE
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing store")
		if err := st.Close(); err != nil {
			log.Error("failed to close store", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache      *redis.Cache
		statsCache report.StatsCache
	)
	if cfg.Redis.Enabled {
		cache, err = redis.NewCache(ctx, redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			if cfg.Events.Backend == config.EventsRedis {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			log.Warn("failed to connect to Redis, report caching disabled", logger.Err(err))
		} else {
			defer cache.Close()
			statsCache = redis.NewStatsCache(cache, cfg.Redis.ReportCacheTTL, log)
			log.Info("Redis connection established", logger.String("addr", cfg.Redis.Addr))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := openEventBus(ctx, cfg, cache, log)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error("failed to close event bus", logger.Err(err))
		}
	}()

	var invalidator *eventhandler.OnActivityChangedHandler
	if statsCache != nil {
		invalidator = eventhandler.NewOnActivityChangedHandler(statsCache, log)
	}
	if err := eventhandler.Subscribe(bus, invalidator, eventhandler.NewAuditLogHandler(log)); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	cmdDeps := command.Deps{Store: st, Publisher: bus, Logger: log}
	queryDeps := query.Deps{
		Directory: st,
		Reader:    st,
		Cache:     statsCache,
		Workers:   cfg.Reports.Workers,
		Logger:    log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewPingCheck(st))
	if cache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled

	server := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Register:            command.NewRegisterHandler(cmdDeps),
		CancelRegistration:  command.NewCancelRegistrationHandler(cmdDeps),
		MarkAttendance:      command.NewMarkAttendanceHandler(cmdDeps),
		CheckOut:            command.NewCheckOutHandler(cmdDeps),
		SubmitFeedback:      command.NewSubmitFeedbackHandler(cmdDeps),
		EventStats:          query.NewGetEventStatsHandler(queryDeps),
		StudentStats:        query.NewGetStudentStatsHandler(queryDeps),
		InstitutionStats:    query.NewGetInstitutionStatsHandler(queryDeps),
		ParticipationReport: query.NewGetParticipationReportHandler(queryDeps),
		TopStudents:         query.NewGetTopStudentsHandler(queryDeps),
		EventPopularity:     query.NewGetEventPopularityHandler(queryDeps),
		Activity:            query.NewListEventActivityHandler(st, queryDeps),
		Location:            cfg.App.Location(),
		Metrics:             busMetrics(bus),
		Logger:              log,
		HealthChecker:       health,
	})

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("participation service stopped")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		conn := postgres.DefaultConfig(cfg.Database.URL)
		conn.MaxConns = int32(cfg.Database.MaxOpenConns)
		conn.MinConns = int32(cfg.Database.MinConns)
		conn.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		conn.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return postgres.Open(connectCtx, postgres.StoreConfig{
			Conn:       conn,
			TxAttempts: cfg.Database.TxRetries,
			Logger:     log,
		})
	case config.DriverSQLite:
		return sqlite.Open(ctx, sqlite.Config{
			Path:       cfg.Database.SQLitePath,
			TxAttempts: cfg.Database.TxRetries,
			Logger:     log,
		})
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
}

func openEventBus(ctx context.Context, cfg *config.Config, cache *redis.Cache, log *logger.Logger) (eventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.WorkerPoolSize = cfg.Events.Workers
	local.Logger = log

	if cfg.Events.Backend != config.EventsRedis {
		return messaging.NewInMemoryEventBus(local), nil
	}
	if cache == nil {
		return nil, errors.New("redis event bus requires a Redis connection")
	}
	return messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client:         cache.Client(),
		Channel:        cfg.Events.Channel,
		LocalBusConfig: local,
		Logger:         log,
	})
}

func busMetrics(bus eventBus) func() any {
	return func() any {
		m := bus.Metrics()
		if m == nil {
			return nil
		}
		return m.Snapshot()
	}
}
