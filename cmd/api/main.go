package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/cron"
	"github.com/angelmondragon/storefront/internal/mirror"
	"github.com/angelmondragon/storefront/internal/notifications"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/internal/storage"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/env"
	"github.com/angelmondragon/storefront/pkg/gateway"
	"github.com/angelmondragon/storefront/pkg/instance"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dbClient *db.Client
	if cfg.Storage.Driver == config.StorageDriverSQL {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()

		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run migrations", err)
			os.Exit(1)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	store, err := storage.Open(cfg, dbClient, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to open local store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	jobMetrics := metrics.NewJobMetrics(registry)

	gw, err := gateway.NewClient(cfg.Gateway.BaseURL,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithUserAgent(cfg.Gateway.UserAgent),
		gateway.WithCircuitBreaker(cfg.Gateway.BreakerFailures, cfg.Gateway.BreakerCooldown),
		gateway.WithLoginPath(cfg.Session.LoginPath),
	)
	if err != nil {
		logg.Error(ctx, "failed to create gateway client", err)
		os.Exit(1)
	}

	state := session.New(cfg.Session.ExpiryLeeway, cfg.Session.LoginPath)
	notes, err := notifications.NewService(notifications.DefaultCapacity)
	if err != nil {
		logg.Error(ctx, "failed to create notifications", err)
		os.Exit(1)
	}

	queue, err := mirror.NewQueue(mirror.Params{
		Gateway:       gw,
		Notifier:      notes,
		Logger:        logg,
		Metrics:       jobMetrics,
		Workers:       cfg.Mirror.Workers,
		QueueSize:     cfg.Mirror.QueueSize,
		RatePerSecond: cfg.Mirror.RatePerSecond,
	})
	if err != nil {
		logg.Error(ctx, "failed to create mirror queue", err)
		os.Exit(1)
	}
	queue.Start(ctx)
	defer queue.Stop()

	cartRepo, err := cart.NewRepository(store, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart repository", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cart.ServiceParams{
		Repository: cartRepo,
		Session:    state,
		Gateway:    gw,
		Mirror:     queue,
		Notifier:   notes,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(gw, store, logg)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	addressService, err := address.NewService(gw, state, logg)
	if err != nil {
		logg.Error(ctx, "failed to create address service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Session:         state,
		Cart:            cartService,
		Addresses:       addressService,
		Gateway:         gw,
		Notifier:        notes,
		Logger:          logg,
		Metrics:         metrics.NewCheckoutMetrics(registry),
		InterStoreDelay: cfg.Checkout.InterStoreDelay,
		RetryAll:        !cfg.Checkout.SkipSucceeded,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	if err := startCatalogRefresh(ctx, cfg, logg, catalogService, redisClient, jobMetrics); err != nil {
		logg.Error(ctx, "failed to schedule catalog refresh", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"storage":  cfg.Storage.Driver,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Store:         store,
			Redis:         redisClient,
			Registry:      registry,
			Session:       state,
			Catalog:       catalogService,
			Cart:          cartService,
			Checkout:      checkoutService,
			Addresses:     addressService,
			Notifications: notes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

// startCatalogRefresh runs the catalog refresh job in-process on the
// configured interval. A non-positive interval disables it.
func startCatalogRefresh(ctx context.Context, cfg *config.Config, logg *logger.Logger, svc catalog.Service, redisClient *redis.Client, jobMetrics *metrics.JobMetrics) error {
	if cfg.Catalog.RefreshInterval <= 0 {
		return nil
	}
	job, err := catalog.NewRefreshJob(svc)
	if err != nil {
		return err
	}
	var lock cron.Lock
	if redisClient != nil {
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(catalog.RefreshJobName), 0)
		if err != nil {
			return err
		}
		lock = redisLock
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Catalog.RefreshInterval,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "catalog refresh scheduler stopped", err)
		}
	}()
	return nil
}
