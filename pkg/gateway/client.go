package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	defaultTimeout              = 10 * time.Second
	defaultUserAgent            = "storefront/1.0"
	defaultLoginPath            = "/login"
	responseBodyReadLimit int64 = 1024
)

var (
	errBaseURLRequired = errors.New("gateway base url is required")
)

// Client talks to the remote marketplace REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	loginPath  string
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(ua); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithLoginPath sets the redirect target reported when no token is present.
func WithLoginPath(path string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			c.loginPath = trimmed
		}
	}
}

// NewClient builds a gateway client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		userAgent:  defaultUserAgent,
		loginPath:  defaultLoginPath,
		httpClient: &http.Client{Timeout: defaultTimeout},
		breaker:    newBreaker(defaultBreakerFailures, defaultBreakerCooldown),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return client, nil
}

// ListProducts fetches the full product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]types.Product, error) {
	var out []types.Product
	if err := c.getList(ctx, "product-all", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPackages fetches every package (bundle).
func (c *Client) ListPackages(ctx context.Context) ([]types.Package, error) {
	var out []types.Package
	if err := c.getList(ctx, "packages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPackage fetches one package by id.
func (c *Client) GetPackage(ctx context.Context, id int64) (*types.Package, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package id is required")
	}
	var out types.Package
	if err := c.getObject(ctx, "packages/"+strconv.FormatInt(id, 10), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCategories fetches the category tree roots.
func (c *Client) ListCategories(ctx context.Context) ([]types.Category, error) {
	var out []types.Category
	if err := c.getList(ctx, "categories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CategoryProducts fetches the products of one category.
func (c *Client) CategoryProducts(ctx context.Context, categoryID int64) ([]types.Product, error) {
	if categoryID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	var out []types.Product
	if err := c.getList(ctx, "categories/"+strconv.FormatInt(categoryID, 10)+"/products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BestSellers fetches the best-selling products.
func (c *Client) BestSellers(ctx context.Context) ([]types.Product, error) {
	var out []types.Product
	if err := c.getList(ctx, "best-selling-products", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ViewCart fetches the authoritative multi-store cart.
func (c *Client) ViewCart(ctx context.Context, token string) (*types.RemoteCart, error) {
	var resp struct {
		Cart *types.RemoteCart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodGet, "view-cart", token, true, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Cart == nil {
		return &types.RemoteCart{Stores: []types.RemoteStore{}}, nil
	}
	if resp.Cart.Stores == nil {
		resp.Cart.Stores = []types.RemoteStore{}
	}
	return resp.Cart, nil
}

// AddToCart mirrors locally added lines onto the remote cart.
func (c *Client) AddToCart(ctx context.Context, token string, items []CartItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one cart item is required")
	}
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart items need a product id and a positive quantity")
		}
	}
	body := addToCartRequest{CartItems: items}
	return c.do(ctx, http.MethodPost, "cart/add", token, true, nil, body, nil)
}

// CheckoutStore places the order for a single store. The idempotency key, when
// set, is forwarded so the gateway can recognize a retried store checkout.
func (c *Client) CheckoutStore(ctx context.Context, token string, req CheckoutRequest, idempotencyKey string) (*CheckoutResult, error) {
	if req.StoreID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	headers := http.Header{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers.Set("Idempotency-Key", key)
	}

	var out CheckoutResult
	if err := c.do(ctx, http.MethodPost, "cart/checkout", token, true, headers, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAddresses fetches the account's saved addresses.
func (c *Client) ListAddresses(ctx context.Context, token string) ([]types.Address, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "addresses", token, true, nil, nil, &raw); err != nil {
		return nil, err
	}
	var out []types.Address
	if err := decodeList(raw, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode addresses response")
	}
	return out, nil
}

// CreateAddress saves a new address and returns the stored record.
func (c *Client) CreateAddress(ctx context.Context, token string, addr types.Address) (*types.Address, error) {
	addr.ID = 0
	return c.writeAddress(ctx, http.MethodPost, "addresses", token, addr)
}

// UpdateAddress replaces the address identified by addr.ID.
func (c *Client) UpdateAddress(ctx context.Context, token string, addr types.Address) (*types.Address, error) {
	if addr.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	return c.writeAddress(ctx, http.MethodPut, "addresses/"+strconv.FormatInt(addr.ID, 10), token, addr)
}

// DeleteAddress removes an address.
func (c *Client) DeleteAddress(ctx context.Context, token string, id int64) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	return c.do(ctx, http.MethodDelete, "addresses/"+strconv.FormatInt(id, 10), token, true, nil, nil, nil)
}

func (c *Client) writeAddress(ctx context.Context, method, path, token string, addr types.Address) (*types.Address, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, path, token, true, nil, addr, &raw); err != nil {
		return nil, err
	}
	out := addr
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := decodeObject(raw, &out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode address response")
		}
	}
	return &out, nil
}

func (c *Client) getList(ctx context.Context, path string, dest any) error {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, "", false, nil, nil, &raw); err != nil {
		return err
	}
	if err := decodeList(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

func (c *Client) getObject(ctx context.Context, path string, dest any) error {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, "", false, nil, nil, &raw); err != nil {
		return err
	}
	if err := decodeObject(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, authenticated bool, headers http.Header, body, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "gateway client not configured")
	}

	token = strings.TrimSpace(token)
	if authenticated && token == "" {
		return c.loginRequired()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway request")
	}

	for key, values := range headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return c.guard(func() error {
		return c.roundTrip(httpReq, method, path, dest)
	})
}

func (c *Client) roundTrip(httpReq *http.Request, method, path string, dest any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute %s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return statusError(resp.StatusCode, method, path, strings.TrimSpace(string(msg)))
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", path))
	}
	return nil
}

func (c *Client) loginRequired() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required").
		WithDetails(map[string]string{"redirect": c.loginPath})
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
}

func statusError(status int, method, path, excerpt string) error {
	cause := fmt.Errorf("status %d: %s", status, excerpt)
	message := fmt.Sprintf("%s %s failed", method, path)
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, message)
	case status == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, cause, message)
	case status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, message)
	case status == http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, message)
	case status == http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, cause, message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, message)
	}
}
