package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/mirror"
	"github.com/angelmondragon/storefront/internal/notifications"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/internal/storage"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/gateway"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/migrate"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// app is the service graph one CLI invocation runs against.
type app struct {
	cfg   *config.Config
	logg  *logger.Logger
	state *session.State
	notes notifications.Service

	catalog   catalog.Service
	cart      cart.Service
	checkout  checkout.Service
	addresses address.Service

	closers []func()
}

func openApp(ctx context.Context, cfg *config.Config, logg *logger.Logger, token string) (_ *app, err error) {
	a := &app{cfg: cfg, logg: logg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var dbClient *db.Client
	if cfg.Storage.Driver == config.StorageDriverSQL {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = dbClient.Close() })
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Storage.Driver == config.StorageDriverRedis {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	store, err := storage.Open(cfg, dbClient, redisClient)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.NewClient(cfg.Gateway.BaseURL,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithUserAgent(cfg.Gateway.UserAgent),
		gateway.WithCircuitBreaker(cfg.Gateway.BreakerFailures, cfg.Gateway.BreakerCooldown),
		gateway.WithLoginPath(cfg.Session.LoginPath),
	)
	if err != nil {
		return nil, err
	}

	a.state = session.New(cfg.Session.ExpiryLeeway, cfg.Session.LoginPath)
	if strings.TrimSpace(token) != "" {
		if _, err := a.state.Login(token); err != nil {
			return nil, err
		}
	}

	if a.notes, err = notifications.NewService(notifications.DefaultCapacity); err != nil {
		return nil, err
	}

	queue, err := mirror.NewQueue(mirror.Params{
		Gateway:       gw,
		Notifier:      a.notes,
		Logger:        logg,
		Workers:       1,
		QueueSize:     cfg.Mirror.QueueSize,
		RatePerSecond: cfg.Mirror.RatePerSecond,
	})
	if err != nil {
		return nil, err
	}
	queue.Start(ctx)
	// Stop drains pending mirror jobs before the process exits.
	a.closers = append(a.closers, queue.Stop)

	repo, err := cart.NewRepository(store, logg)
	if err != nil {
		return nil, err
	}
	if a.cart, err = cart.NewService(cart.ServiceParams{
		Repository: repo,
		Session:    a.state,
		Gateway:    gw,
		Mirror:     queue,
		Notifier:   a.notes,
		Logger:     logg,
	}); err != nil {
		return nil, err
	}
	if a.catalog, err = catalog.NewService(gw, store, logg); err != nil {
		return nil, err
	}
	if a.addresses, err = address.NewService(gw, a.state, logg); err != nil {
		return nil, err
	}
	if a.checkout, err = checkout.NewService(checkout.ServiceParams{
		Session:         a.state,
		Cart:            a.cart,
		Addresses:       a.addresses,
		Gateway:         gw,
		Notifier:        a.notes,
		Logger:          logg,
		InterStoreDelay: cfg.Checkout.InterStoreDelay,
		RetryAll:        !cfg.Checkout.SkipSucceeded,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// close runs the closers newest first.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
