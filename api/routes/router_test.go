package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/internal/address"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/mirror"
	"github.com/angelmondragon/storefront/internal/notifications"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/internal/storage"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/gateway"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/redis"
)

// marketplace fakes the remote REST API with a two-store cart.
type marketplace struct {
	mu       sync.Mutex
	failing  map[int64]string
	checkout []int64
	adds     int
}

func (m *marketplace) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/product-all", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":7,"store_id":1,"name":"Abacus","price":"10.00"},{"id":8,"store_id":2,"name":"Puzzle","price":"5.00"}]`)
	})
	mux.HandleFunc("GET /api/view-cart", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"cart":{"cart_total_price":"25.00","stores":[`+
			`{"store_id":1,"store_name":"A","store_total_price":"20.00","products":[{"product_id":7,"product_price":"10.00","quantity":2,"product_total":"20.00"}]},`+
			`{"store_id":2,"store_name":"B","store_total_price":"5.00","products":[{"product_id":8,"product_price":"5.00","quantity":1,"product_total":"5.00"}]}]}}`)
	})
	mux.HandleFunc("POST /api/cart/add", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.adds++
		m.mu.Unlock()
		io.WriteString(w, `{"message":"ok"}`)
	})
	mux.HandleFunc("POST /api/cart/checkout", func(w http.ResponseWriter, r *http.Request) {
		var req gateway.CheckoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.checkout = append(m.checkout, req.StoreID)
		msg, fail := m.failing[req.StoreID]
		m.mu.Unlock()
		if fail {
			io.WriteString(w, `{"success":false,"message":"`+msg+`"}`)
			return
		}
		io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("GET /api/addresses", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":3,"name":"Home","phone":"1","street":"Main","city":"X"}]}`)
	})
	return mux
}

func (m *marketplace) sent() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.checkout...)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: config.AppEnvDev, CORSOrigins: []string{"http://localhost:3000"}},
		Catalog: config.CatalogConfig{SearchLimit: 10},
		RateLimit: config.RateLimitConfig{
			Window:        time.Minute,
			SessionLimit:  2,
			CheckoutLimit: 5,
		},
		Checkout: config.CheckoutConfig{IdempotencyTTL: time.Hour},
	}
}

type harness struct {
	router http.Handler
	market *marketplace
	notes  notifications.Service
}

func newHarness(t *testing.T, cfg *config.Config, redisClient *redis.Client, registry *prometheus.Registry) *harness {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})

	market := &marketplace{failing: map[int64]string{}}
	srv := httptest.NewServer(market.handler())
	t.Cleanup(srv.Close)

	gw, err := gateway.NewClient(srv.URL + "/api")
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	state := session.New(0, "/login")
	notes, err := notifications.NewService(notifications.DefaultCapacity)
	require.NoError(t, err)

	queue, err := mirror.NewQueue(mirror.Params{Gateway: gw, Notifier: notes, Logger: logg, Workers: 1, QueueSize: 8})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Stop()
	})

	repo, err := cart.NewRepository(store, logg)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{
		Repository: repo,
		Session:    state,
		Gateway:    gw,
		Mirror:     queue,
		Notifier:   notes,
		Logger:     logg,
	})
	require.NoError(t, err)

	catalogSvc, err := catalog.NewService(gw, store, logg)
	require.NoError(t, err)
	addressSvc, err := address.NewService(gw, state, logg)
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Session:         state,
		Cart:            cartSvc,
		Addresses:       addressSvc,
		Gateway:         gw,
		Notifier:        notes,
		Logger:          logg,
		InterStoreDelay: -1,
	})
	require.NoError(t, err)

	router := NewRouter(cfg, logg, Deps{
		Store:         store,
		Redis:         redisClient,
		Registry:      registry,
		Session:       state,
		Catalog:       catalogSvc,
		Cart:          cartSvc,
		Checkout:      checkoutSvc,
		Addresses:     addressSvc,
		Notifications: notes,
	})
	return &harness{router: router, market: market, notes: notes}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:5000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func validToken(t *testing.T) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("marketplace-secret"))
	require.NoError(t, err)
	return signed
}

func login(t *testing.T, h *harness) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/api/v1/session", `{"token":"`+validToken(t)+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

type storeStatus struct {
	StoreID  int64  `json:"store_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)

	resp := h.do(t, http.MethodGet, "/health/live", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	resp = h.do(t, http.MethodGet, "/health/ready", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d", resp.Code)
	}
	resp = h.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for metrics without registry got %d", resp.Code)
	}
}

func TestMetricsCountRequests(t *testing.T) {
	h := newHarness(t, testConfig(), nil, prometheus.NewRegistry())

	h.do(t, http.MethodGet, "/api/v1/products", "", nil)
	resp := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "storefront_http_requests_total")
	assert.Contains(t, body, `route="/api/v1/products`)
}

func TestCheckoutRequiresSession(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)

	body := `{"payment_method_id":"cod","address":{"name":"A","phone":"1","street":"Main","city":"X"}}`
	resp := h.do(t, http.MethodPost, "/api/v1/checkout", body, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), `"redirect":"/login"`)
	assert.Empty(t, h.market.sent())
}

func TestBasketAddStaysLocal(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)

	resp := h.do(t, http.MethodPost, "/api/v1/basket", `{"id":9,"name":"Starter","total_price":"99.00","quantity":1}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = h.do(t, http.MethodGet, "/api/v1/basket", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"total":"99.00"`)

	resp = h.do(t, http.MethodPost, "/api/v1/cart", `{"id":7,"store_id":1,"name":"Abacus","price":"10.00","quantity":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCheckoutRetriesOnlyFailedStores(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	login(t, h)

	resp := h.do(t, http.MethodPost, "/api/v1/cart", `{"id":7,"store_id":1,"name":"Abacus","price":"10.00","quantity":2}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	h.market.mu.Lock()
	h.market.failing[2] = "out of stock"
	h.market.mu.Unlock()

	resp = h.do(t, http.MethodPost, "/api/v1/checkout", `{"payment_method_id":"cod","address_id":3}`, nil)
	require.Equal(t, http.StatusBadGateway, resp.Code, resp.Body.String())

	var failed struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Complete bool          `json:"complete"`
				Stores   []storeStatus `json:"stores"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &failed))
	assert.Equal(t, "CHECKOUT_INCOMPLETE", failed.Error.Code)
	assert.False(t, failed.Error.Details.Complete)
	require.Len(t, failed.Error.Details.Stores, 2)
	assert.Equal(t, "success", failed.Error.Details.Stores[0].Status)
	assert.Equal(t, "failed", failed.Error.Details.Stores[1].Status)
	assert.Equal(t, "out of stock", failed.Error.Details.Stores[1].Message)

	resp = h.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Contains(t, resp.Body.String(), `"item_count":2`)

	h.market.mu.Lock()
	delete(h.market.failing, 2)
	h.market.mu.Unlock()

	resp = h.do(t, http.MethodPost, "/api/v1/checkout", `{"payment_method_id":"cod","address_id":3}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []int64{1, 2, 2}, h.market.sent())

	resp = h.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Contains(t, resp.Body.String(), `"item_count":0`)

	resp = h.do(t, http.MethodGet, "/api/v1/checkout/progress", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"complete":true`)

	resp = h.do(t, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Contains(t, resp.Body.String(), "Order placed successfully")
}

func TestSearchUsesCachedCatalog(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)

	resp := h.do(t, http.MethodGet, "/api/v1/search?q=abac", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"Abacus"`)
	assert.NotContains(t, resp.Body.String(), `"Puzzle"`)

	resp = h.do(t, http.MethodGet, "/api/v1/search?q=a", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":[]}`, resp.Body.String())
}

func TestRedisGuardsCheckoutAndSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	h := newHarness(t, testConfig(), client, nil)
	login(t, h)

	resp := h.do(t, http.MethodPost, "/api/v1/checkout", `{"payment_method_id":"cod","address_id":3}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "Idempotency-Key")
	assert.Empty(t, h.market.sent())

	resp = h.do(t, http.MethodPost, "/api/v1/checkout", `{"payment_method_id":"cod","address_id":3}`,
		map[string]string{"Idempotency-Key": "run-1"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = h.do(t, http.MethodPost, "/api/v1/checkout", `{"payment_method_id":"cod","address_id":3}`,
		map[string]string{"Idempotency-Key": "run-1"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "true", resp.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, []int64{1, 2}, h.market.sent())

	// login already used one of the two session slots
	resp = h.do(t, http.MethodPost, "/api/v1/session", `{"token":"`+validToken(t)+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = h.do(t, http.MethodPost, "/api/v1/session", `{"token":"`+validToken(t)+`"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
}
