package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

type fakeMarketplace struct {
	mu       sync.Mutex
	adds     int
	checkout []int64
}

func (m *fakeMarketplace) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/product-all", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":7,"store_id":1,"name":"Abacus","price":"10.00"},{"id":8,"store_id":2,"name":"Puzzle","description":"abacus inside","price":"5.00"}]`)
	})
	mux.HandleFunc("GET /api/packages/9", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"id":9,"name":"Starter","total_price":"99.00"}}`)
	})
	mux.HandleFunc("GET /api/packages", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":9,"name":"Starter","total_price":"99.00"}]`)
	})
	mux.HandleFunc("POST /api/cart/add", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.adds++
		m.mu.Unlock()
		io.WriteString(w, `{"message":"ok"}`)
	})
	mux.HandleFunc("GET /api/view-cart", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"cart":{"cart_total_price":"10.00","stores":[{"store_id":1,"store_name":"A","store_total_price":"10.00","products":[{"product_id":7,"product_price":"10.00","quantity":1,"product_total":"10.00"}]}]}}`)
	})
	mux.HandleFunc("POST /api/cart/checkout", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			StoreID int64 `json:"store_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		m.mu.Lock()
		m.checkout = append(m.checkout, body.StoreID)
		m.mu.Unlock()
		io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("GET /api/addresses", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":3,"name":"Home","phone":"1","street":"Main","city":"X"}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		App:      config.AppConfig{Env: config.AppEnvDev},
		Storage:  config.StorageConfig{Driver: config.StorageDriverMemory},
		Gateway:  config.GatewayConfig{BaseURL: baseURL, Timeout: 5 * time.Second},
		Session:  config.SessionConfig{LoginPath: "/login"},
		Checkout: config.CheckoutConfig{InterStoreDelay: -1, SkipSucceeded: true},
		Mirror:   config.MirrorConfig{QueueSize: 8},
	}
}

func cliToken(t *testing.T) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("marketplace-secret"))
	require.NoError(t, err)
	return signed
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(envToken, "")
	root, finish := newRootCmd(func() (*config.Config, error) { return cfg, nil })
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	finish()
	return stdout.String(), stderr.String(), err
}

func TestSearchCommand(t *testing.T) {
	market := &fakeMarketplace{}
	cfg := testConfig(market.server(t).URL + "/api")

	out, _, err := run(t, cfg, "search", "abacus")
	require.NoError(t, err)

	var products []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &products))
	require.Len(t, products, 2)
	assert.Equal(t, int64(7), products[0].ID)

	out, _, err = run(t, cfg, "search", "a")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestBasketAddNeedsNoToken(t *testing.T) {
	market := &fakeMarketplace{}
	cfg := testConfig(market.server(t).URL + "/api")

	out, stderr, err := run(t, cfg, "basket", "add", "9", "--qty", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": "198.00"`)
	assert.Contains(t, stderr, "[success]")
	assert.Zero(t, market.adds)
}

func TestCartAddRequiresToken(t *testing.T) {
	market := &fakeMarketplace{}
	cfg := testConfig(market.server(t).URL + "/api")

	_, _, err := run(t, cfg, "cart", "add", "7")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
}

func TestCartAddMirrorsAndCheckoutClears(t *testing.T) {
	market := &fakeMarketplace{}
	cfg := testConfig(market.server(t).URL + "/api")
	token := cliToken(t)

	out, _, err := run(t, cfg, "--token", token, "cart", "add", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"item_count": 1`)
	market.mu.Lock()
	assert.Equal(t, 1, market.adds)
	market.mu.Unlock()

	out, stderr, err := run(t, cfg, "--token", token, "checkout", "--payment", "cod", "--address-id", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"complete": true`)
	assert.Contains(t, stderr, "Order placed successfully")
	assert.Equal(t, []int64{1}, market.checkout)
}

func TestCheckoutRequiresPaymentFlag(t *testing.T) {
	market := &fakeMarketplace{}
	cfg := testConfig(market.server(t).URL + "/api")

	_, _, err := run(t, cfg, "checkout")
	require.Error(t, err)
	assert.Empty(t, market.checkout)
}
