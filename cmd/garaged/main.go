package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/subosito/gotenv"
	"golang.org/x/sync/errgroup"

	"parking-garage-backend/config"
	"parking-garage-backend/internal/api"
	"parking-garage-backend/internal/clock"
	"parking-garage-backend/internal/db"
	"parking-garage-backend/internal/garage"
	"parking-garage-backend/internal/logger"
	"parking-garage-backend/internal/metrics"
	"parking-garage-backend/internal/notification"
	"parking-garage-backend/internal/parking"
	"parking-garage-backend/internal/revenue"
	"parking-garage-backend/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = gotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", configPath, "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Env)
	slog.SetDefault(log)
	log.Info("configuration loaded", "path", configPath)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("server gracefully stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	clk := clock.NewSystem()
	loc := cfg.Garage.Location
	m := metrics.New()
	locks := parking.NewLocks()

	revenueSvc := revenue.NewService(appStore, loc, cfg.Revenue.Currency,
		time.Duration(cfg.Revenue.CacheTTLSeconds)*time.Second, clk, log)

	opts := []parking.ProcessorOption{
		parking.WithClock(clk),
		parking.WithLocation(loc),
		parking.WithDefaultSector(cfg.Garage.DefaultSector),
		parking.WithLocks(locks),
		parking.WithMetrics(m),
		parking.WithInvalidator(revenueSvc),
		parking.WithLogger(log),
	}

	var (
		pool           *notification.WorkerPool
		webpushOptions *webpush.Options
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, log)
		opts = append(opts, parking.WithNotifier(pool))
	} else {
		log.Warn("VAPID keys are not configured, push notifications disabled")
	}

	processor := parking.NewProcessor(appStore, opts...)

	// The catalog is in place before the first webhook arrives.
	loader := garage.NewLoader(&cfg.Garage, appStore, log)
	if err := loader.Run(ctx); err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Processor: processor,
		Auditor:   parking.NewAuditor(appStore, locks, log),
		Revenue:   revenueSvc,
		Loader:    loader,
		Metrics:   m,
		WebPush:   webpushOptions,
		Clock:     clk,
		Log:       log,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if pool != nil {
		g.Go(func() error {
			return pool.Run(gctx)
		})
	}

	return g.Wait()
}
