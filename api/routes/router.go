package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/notifications"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// Deps carries everything the HTTP surface dispatches to. Redis and Registry
// are optional.
type Deps struct {
	Store    controllers.Pinger
	Redis    *redis.Client
	Registry *prometheus.Registry

	Session       *session.State
	Catalog       catalog.Service
	Cart          cart.Service
	Checkout      checkout.Service
	Addresses     address.Service
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if deps.Registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Registry)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if deps.Session != nil {
		r.Use(middleware.Session(deps.Session, logg))
	}

	ready := map[string]controllers.Pinger{}
	if deps.Store != nil {
		ready["store"] = deps.Store
	}
	if deps.Redis != nil {
		ready["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Counters and replay records both need Redis; without it the
	// middlewares are left off entirely.
	sessionLimit := passthrough
	checkoutLimit := passthrough
	idempotency := passthrough
	if deps.Redis != nil {
		sessionLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("session", cfg.RateLimit.Window, cfg.RateLimit.SessionLimit), deps.Redis, logg)
		checkoutLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutLimit), deps.Redis, logg)
		idempotency = middleware.Idempotency(deps.Redis, cfg.Checkout.IdempotencyTTL, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(idempotency)

		// A nil *session.State must not reach the controllers as a non-nil
		// interface, so the routes are only mounted with a session.
		if deps.Session != nil {
			r.Route("/session", func(r chi.Router) {
				r.With(sessionLimit).Post("/", controllers.SessionLogin(deps.Session, logg))
				r.Delete("/", controllers.SessionLogout(deps.Session, logg))
				r.Get("/", controllers.SessionFetch(deps.Session, logg))
			})
		}

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(deps.Catalog, logg))
			r.Post("/refresh", controllers.ProductsRefresh(deps.Catalog, logg))
		})
		r.Get("/packages", controllers.PackagesList(deps.Catalog, logg))
		r.Get("/packages/{packageId}", controllers.PackageDetail(deps.Catalog, logg))
		r.Get("/categories", controllers.CategoriesList(deps.Catalog, logg))
		r.Get("/categories/{categoryId}/products", controllers.CategoryProducts(deps.Catalog, logg))
		r.Get("/best-sellers", controllers.BestSellers(deps.Catalog, logg))
		r.Get("/search", controllers.Search(deps.Catalog, cfg.Catalog.SearchLimit, logg))

		r.Route("/cart", namespaceRoutes(deps.Cart, cart.NamespaceCart, logg))
		r.Route("/basket", namespaceRoutes(deps.Cart, cart.NamespaceBasket, logg))

		r.Route("/remote-cart", func(r chi.Router) {
			r.Get("/", controllers.RemoteCartFetch(deps.Cart, logg))
			r.Patch("/stores/{storeId}/products/{productId}", controllers.RemoteCartQuantity(deps.Cart, logg))
			r.Delete("/stores/{storeId}/products/{productId}", controllers.RemoteCartRemove(deps.Cart, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.With(checkoutLimit).Post("/", controllers.CheckoutRun(deps.Checkout, logg))
			r.Get("/progress", controllers.CheckoutProgress(deps.Checkout, logg))
			r.Delete("/progress", controllers.CheckoutDiscard(deps.Checkout, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(deps.Addresses, logg))
			r.Post("/", controllers.AddressCreate(deps.Addresses, logg))
			r.Put("/{addressId}", controllers.AddressUpdate(deps.Addresses, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(deps.Addresses, logg))
			r.Post("/{addressId}/select", controllers.AddressSelect(deps.Addresses, logg))
		})

		r.Get("/notifications", controllers.NotificationsDrain(deps.Notifications, logg))
	})

	return r
}

func namespaceRoutes(svc cart.Service, ns cart.Namespace, logg *logger.Logger) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", controllers.CartSummary(svc, ns, logg))
		r.Post("/", controllers.CartAdd(svc, ns, logg))
		r.Delete("/", controllers.CartClear(svc, ns, logg))
		r.Patch("/lines/{lineId}", controllers.CartLineQuantity(svc, ns, logg))
		r.Delete("/lines/{lineId}", controllers.CartLineRemove(svc, ns, logg))
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}
