package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/config"
	"github.com/iliyamo/event-reservation/internal/database"
	"github.com/iliyamo/event-reservation/internal/event"
	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/logging"
	"github.com/iliyamo/event-reservation/internal/metrics"
	"github.com/iliyamo/event-reservation/internal/middleware"
	"github.com/iliyamo/event-reservation/internal/queue"
	"github.com/iliyamo/event-reservation/internal/repository"
	"github.com/iliyamo/event-reservation/internal/repository/memstore"
	"github.com/iliyamo/event-reservation/internal/reservation"
	"github.com/iliyamo/event-reservation/internal/router"
	"github.com/iliyamo/event-reservation/internal/telemetry"
)

// stores groups the persistence ports for whichever driver is configured.
type stores struct {
	events       event.Store
	reservations reservation.Store
	users        handler.UserStore
	tokens       handler.TokenStore
	db           *sql.DB // nil for the memory driver
}

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	// Redis is optional: nil disables rate limiting and both caches.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caches disabled", zap.String("addr", cfg.Redis.Address()))
	} else {
		defer rdb.Close()
	}

	m := metrics.New()

	var svc *reservation.Service
	stats := reservation.NewCachedStats(
		reservation.StatsFunc(func(ctx context.Context, eventID string) (*reservation.Stats, error) {
			return svc.Stats(ctx, eventID)
		}),
		statsRedis(cfg, rdb), cfg.StatsCache.TTL, cfg.StatsCache.Prefix, logger,
	)
	opts := []reservation.Option{
		reservation.WithRecorder(m),
		reservation.WithStatsInvalidator(stats),
	}
	if cfg.RabbitMQ.PublishEnabled {
		pub := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.DialTimeout, logger)
		defer pub.Close()
		opts = append(opts, reservation.WithPublisher(pub))
	}
	svc = reservation.NewService(st.events, st.reservations, logger, opts...)
	events := event.NewService(st.events, logger, event.WithStatsInvalidator(stats))

	var purge handler.CachePurger
	if rdb != nil && cfg.BrowseCache.Enabled {
		purge = func(ctx context.Context) error {
			return middleware.PurgeCache(ctx, rdb, cfg.BrowseCache.Prefix)
		}
	}

	authH := handler.NewAuthHandler(cfg, st.users, st.tokens, logger)
	eventH := handler.NewEventHandler(events, purge, logger, cfg.RequestTimeout)
	resH := handler.NewReservationHandler(svc, stats, logger, cfg.RequestTimeout)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.Tracing(cfg.Telemetry.ServiceName))
	e.Use(middleware.RequestLog(logger))

	deps := map[string]handler.Pinger{}
	if st.db != nil {
		deps["mysql"] = st.db
	}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	router.RegisterRoutes(e, deps, m.Handler())
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, eventH, middleware.NewRedisCache(cfg.BrowseCache, rdb, logger))
	router.RegisterParticipant(e, resH, cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb, logger))
	router.RegisterAdmin(e, eventH, resH, cfg.JWTSecret)

	if cfg.RabbitMQ.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.AuditLogPath, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	addr := ":" + cfg.Port // Address string with port
	errCh := make(chan error, 1)
	go func() {
		logging.Info(ctx, logger, "listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}

func openStores(cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		mem := memstore.New()
		return stores{
			events:       mem.Events(),
			reservations: mem.Reservations(),
			users:        mem.Users(),
			tokens:       mem.Tokens(),
		}, nil
	}

	db, err := database.Open(cfg.MySQL)
	if err != nil {
		return stores{}, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.MySQL.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}
	return stores{
		events:       repository.NewEventRepo(db),
		reservations: repository.NewReservationRepo(db),
		users:        repository.NewUserRepo(db),
		tokens:       repository.NewTokenRepo(db),
		db:           db,
	}, nil
}

// statsRedis returns rdb when the stats cache is enabled, nil otherwise.
func statsRedis(cfg config.Config, rdb *redis.Client) *redis.Client {
	if !cfg.StatsCache.Enabled {
		return nil
	}
	return rdb
}
