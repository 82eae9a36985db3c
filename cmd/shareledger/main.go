package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/efreitasn/shareledger/internal/config"
	"github.com/efreitasn/shareledger/internal/engine"
	"github.com/efreitasn/shareledger/internal/handler"
	"github.com/efreitasn/shareledger/internal/logger"
	"github.com/efreitasn/shareledger/internal/scheduler"
	"github.com/efreitasn/shareledger/internal/service"
	"github.com/efreitasn/shareledger/internal/store"
	"github.com/efreitasn/shareledger/internal/store/postgres"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage.
	st, health, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Engine.
	eng := engine.New(st, engine.Options{
		HoldTTL: cfg.HoldTTL,
		FeeBPS:  cfg.SecondaryFeeBPS,
		Logger:  log.Named("engine"),
	})

	// Sweep lock: redis when configured so instances do not sweep at once.
	var lock scheduler.SweepLock = scheduler.NewLocalLock()
	if cfg.RedisURL != "" {
		client, err := scheduler.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		lock = scheduler.NewRedisLock(client, "", cfg.SweepLockTTL)
		log.Info("using redis sweep lock")
	}

	sweeper := scheduler.New(ctx, eng, lock, cfg.SweepLockTTL, log.Named("sweeper"))
	if err := sweeper.Schedule(cfg.SweepSchedule); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}

	// Router.
	router := handler.NewRouter(handler.Services{
		Properties:  service.NewPropertyService(eng),
		Accounts:    service.NewAccountService(eng, st),
		Investments: service.NewInvestmentService(eng, st),
		Market:      service.NewMarketService(eng),
		Admin:       service.NewAdminService(eng, sweeper),
		Health:      health,
	}, log.Named("http"))

	sweeper.Start()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for SIGINT/SIGTERM or a listener failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serveErr:
		sweeper.Stop()
		return fmt.Errorf("listen: %w", err)
	}

	// Graceful shutdown: stop HTTP server, then the sweeper, then storage.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	cancel()
	sweeper.Stop()

	log.Info("server stopped")
	return nil
}

// openStore builds the configured backend. health is nil for the memory
// store, which is always reachable.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, func(context.Context) error, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := postgres.Open(postgres.Options{
			ConnString:      cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			LockTimeout:     cfg.LockTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, nil, nil, err
			}
			log.Info("schema migrated")
		}
		return pg, pg.Ping, func() { _ = pg.Close() }, nil
	default:
		log.Warn("using in-memory store, state is lost on restart")
		return store.NewMemory(cfg.LockTimeout), nil, func() {}, nil
	}
}
