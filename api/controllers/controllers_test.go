package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/notifications"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *types.APIError `json:"error"`
}

func serve(t *testing.T, method, pattern, target, body string, h http.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

type fakeCart struct {
	cart.Service
	lines    map[cart.Namespace][]cart.Line
	cleared  []cart.Namespace
	remoteQt map[[2]int64]int
}

func newFakeCart() *fakeCart {
	return &fakeCart{lines: map[cart.Namespace][]cart.Line{}, remoteQt: map[[2]int64]int{}}
}

func (f *fakeCart) Add(_ context.Context, ns cart.Namespace, line cart.Line) ([]cart.Line, error) {
	f.lines[ns] = cart.AddLine(f.lines[ns], line)
	return f.lines[ns], nil
}

func (f *fakeCart) SetQuantity(_ context.Context, ns cart.Namespace, id int64, qty int) ([]cart.Line, error) {
	lines, ok := cart.UpdateQuantity(f.lines[ns], id, qty)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line not found")
	}
	f.lines[ns] = lines
	return lines, nil
}

func (f *fakeCart) Remove(_ context.Context, ns cart.Namespace, id int64) ([]cart.Line, error) {
	lines, _ := cart.RemoveLine(f.lines[ns], id)
	f.lines[ns] = lines
	return lines, nil
}

func (f *fakeCart) Clear(_ context.Context, ns cart.Namespace) error {
	f.cleared = append(f.cleared, ns)
	delete(f.lines, ns)
	return nil
}

func (f *fakeCart) Summary(_ context.Context, ns cart.Namespace) (*cart.Summary, error) {
	lines := f.lines[ns]
	if lines == nil {
		lines = []cart.Line{}
	}
	return &cart.Summary{
		Namespace: ns,
		Lines:     lines,
		Total:     cart.Total(lines).StringFixed(2),
		ItemCount: cart.ItemCount(lines),
	}, nil
}

func (f *fakeCart) SetRemoteQuantity(_ context.Context, storeID, productID int64, qty int) (*types.RemoteCart, error) {
	f.remoteQt[[2]int64{storeID, productID}] = qty
	return &types.RemoteCart{}, nil
}

func TestCartAddReturnsSummary(t *testing.T) {
	t.Parallel()
	svc := newFakeCart()
	h := CartAdd(svc, cart.NamespaceCart, nil)

	body := `{"id":7,"store_id":3,"name":"Abacus","price":"10.00","quantity":2}`
	rec, env := serve(t, http.MethodPost, "/cart", "/cart", body, h)
	require.Equal(t, http.StatusCreated, rec.Code)

	var summary cart.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "20.00", summary.Total)
	assert.Equal(t, 2, summary.ItemCount)

	rec, _ = serve(t, http.MethodPost, "/cart", "/cart", body, h)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 4, svc.lines[cart.NamespaceCart][0].Quantity)
}

func TestCartAddRejectsBadPayloads(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"missing id":    `{"name":"x","quantity":1}`,
		"bad price":     `{"id":1,"price":"ten","quantity":1}`,
		"unknown field": `{"id":1,"quantity":1,"colour":"red"}`,
		"not json":      `nope`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			svc := newFakeCart()
			rec, env := serve(t, http.MethodPost, "/cart", "/cart", body, CartAdd(svc, cart.NamespaceCart, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
			assert.Empty(t, svc.lines)
		})
	}
}

func TestCartLineQuantityAndRemove(t *testing.T) {
	t.Parallel()
	svc := newFakeCart()
	svc.lines[cart.NamespaceBasket] = []cart.Line{{ID: 1, TotalPrice: "5.00", Quantity: 1}, {ID: 2, TotalPrice: "1.00", Quantity: 1}}

	rec, env := serve(t, http.MethodPatch, "/basket/lines/{lineId}", "/basket/lines/1", `{"quantity":3}`,
		CartLineQuantity(svc, cart.NamespaceBasket, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var summary cart.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "16.00", summary.Total)

	rec, _ = serve(t, http.MethodPatch, "/basket/lines/{lineId}", "/basket/lines/1", `{}`,
		CartLineQuantity(svc, cart.NamespaceBasket, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, http.MethodPatch, "/basket/lines/{lineId}", "/basket/lines/abc", `{"quantity":1}`,
		CartLineQuantity(svc, cart.NamespaceBasket, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = serve(t, http.MethodDelete, "/basket/lines/{lineId}", "/basket/lines/2", "",
		CartLineRemove(svc, cart.NamespaceBasket, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Len(t, summary.Lines, 1)
}

func TestCartClearAndRemoteQuantity(t *testing.T) {
	t.Parallel()
	svc := newFakeCart()

	rec, _ := serve(t, http.MethodDelete, "/cart", "/cart", "", CartClear(svc, cart.NamespaceCart, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []cart.Namespace{cart.NamespaceCart}, svc.cleared)

	rec, _ = serve(t, http.MethodPatch, "/remote-cart/stores/{storeId}/products/{productId}",
		"/remote-cart/stores/3/products/9", `{"quantity":0}`, RemoteCartQuantity(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	qty, ok := svc.remoteQt[[2]int64{3, 9}]
	require.True(t, ok)
	assert.Zero(t, qty)
}

func TestCartNilServiceIsInternal(t *testing.T) {
	t.Parallel()
	rec, env := serve(t, http.MethodGet, "/cart", "/cart", "", CartSummary(nil, cart.NamespaceCart, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeInternal), env.Error.Code)
}

type fakeCheckout struct {
	got      checkout.Request
	progress *checkout.Progress
	err      error
}

func (f *fakeCheckout) Checkout(_ context.Context, req checkout.Request) (*checkout.Progress, error) {
	f.got = req
	return f.progress, f.err
}

func (f *fakeCheckout) Progress(context.Context) (*checkout.Progress, bool) {
	return f.progress, f.progress != nil
}

func (f *fakeCheckout) Discard(context.Context) error {
	return f.err
}

func TestCheckoutRunPassesRequest(t *testing.T) {
	t.Parallel()
	svc := &fakeCheckout{progress: &checkout.Progress{Namespace: cart.NamespaceBasket, Complete: true}}

	body := `{"namespace":"basket","payment_method_id":" cod ","address_id":4,"coupon_code":"SAVE"}`
	rec, env := serve(t, http.MethodPost, "/checkout", "/checkout", body, CheckoutRun(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, cart.NamespaceBasket, svc.got.Namespace)
	assert.Equal(t, "cod", svc.got.PaymentMethodID)
	assert.Equal(t, int64(4), svc.got.AddressID)
	assert.Equal(t, "SAVE", svc.got.CouponCode)

	var progress checkout.Progress
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	assert.True(t, progress.Complete)
}

func TestCheckoutRunIncompleteCarriesProgress(t *testing.T) {
	t.Parallel()
	progress := checkout.Progress{
		Namespace: cart.NamespaceCart,
		Stores: []checkout.StoreProgress{
			{StoreID: 1, Status: checkout.StatusSuccess},
			{StoreID: 2, Status: checkout.StatusFailed, Message: "out of stock"},
		},
	}
	svc := &fakeCheckout{err: pkgerrors.New(pkgerrors.CodeCheckoutIncomplete, "checkout incomplete").WithDetails(progress)}

	rec, env := serve(t, http.MethodPost, "/checkout", "/checkout", `{"payment_method_id":"cod"}`, CheckoutRun(svc, nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "checkout incomplete", env.Error.Message)

	raw, err := json.Marshal(env.Error.Details)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"out of stock"`)
	assert.Equal(t, cart.Namespace(""), svc.got.Namespace)
}

func TestCheckoutRunRejectsUnknownNamespace(t *testing.T) {
	t.Parallel()
	svc := &fakeCheckout{}
	rec, _ := serve(t, http.MethodPost, "/checkout", "/checkout", `{"namespace":"wishlist","payment_method_id":"cod"}`, CheckoutRun(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.got.PaymentMethodID)
}

func TestCheckoutProgressAndDiscard(t *testing.T) {
	t.Parallel()
	svc := &fakeCheckout{}
	rec, _ := serve(t, http.MethodGet, "/checkout/progress", "/checkout/progress", "", CheckoutProgress(svc, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.progress = &checkout.Progress{Running: true}
	rec, _ = serve(t, http.MethodGet, "/checkout/progress", "/checkout/progress", "", CheckoutProgress(svc, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.err = pkgerrors.New(pkgerrors.CodeConflict, "checkout is running")
	rec, _ = serve(t, http.MethodDelete, "/checkout/progress", "/checkout/progress", "", CheckoutDiscard(svc, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type fakeAddresses struct {
	list     []types.Address
	selected int64
	updated  types.Address
	deleted  int64
}

func (f *fakeAddresses) List(context.Context) []types.Address { return f.list }

func (f *fakeAddresses) Get(_ context.Context, id int64) (*types.Address, error) {
	for _, a := range f.list {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
}

func (f *fakeAddresses) Create(_ context.Context, addr types.Address) (*types.Address, error) {
	addr.ID = int64(len(f.list) + 1)
	f.list = append(f.list, addr)
	return &addr, nil
}

func (f *fakeAddresses) Update(_ context.Context, addr types.Address) (*types.Address, error) {
	f.updated = addr
	return &addr, nil
}

func (f *fakeAddresses) Delete(_ context.Context, id int64) error {
	f.deleted = id
	return nil
}

func (f *fakeAddresses) Select(ctx context.Context, id int64) (*types.Address, error) {
	addr, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f.selected = id
	return addr, nil
}

func (f *fakeAddresses) Selected() (types.Address, bool) {
	for _, a := range f.list {
		if a.ID == f.selected {
			return a, true
		}
	}
	return types.Address{}, false
}

func (f *fakeAddresses) ClearSelection() { f.selected = 0 }

func TestAddressRoutes(t *testing.T) {
	t.Parallel()
	svc := &fakeAddresses{}
	body := `{"name":"Home","phone":"1","street":"Main","city":"X"}`

	rec, env := serve(t, http.MethodPost, "/addresses", "/addresses", body, AddressCreate(svc, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created types.Address
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, int64(1), created.ID)

	rec, _ = serve(t, http.MethodPost, "/addresses/{addressId}/select", "/addresses/1/select", "", AddressSelect(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = serve(t, http.MethodGet, "/addresses", "/addresses", "", AddressList(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list addressListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Addresses, 1)
	assert.Equal(t, int64(1), list.SelectedID)

	rec, _ = serve(t, http.MethodPut, "/addresses/{addressId}", "/addresses/1", `{"name":"Work","phone":"1","street":"Main","city":"X"}`, AddressUpdate(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), svc.updated.ID)
	assert.Equal(t, "Work", svc.updated.Name)

	rec, _ = serve(t, http.MethodDelete, "/addresses/{addressId}", "/addresses/1", "", AddressDelete(svc, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(1), svc.deleted)

	rec, _ = serve(t, http.MethodPost, "/addresses/{addressId}/select", "/addresses/9/select", "", AddressSelect(svc, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddressCreateValidatesBody(t *testing.T) {
	t.Parallel()
	svc := &fakeAddresses{}
	rec, env := serve(t, http.MethodPost, "/addresses", "/addresses", `{"name":"Home"}`, AddressCreate(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Empty(t, svc.list)
}

func TestNotificationsDrain(t *testing.T) {
	t.Parallel()
	svc, err := notifications.NewService(4)
	require.NoError(t, err)
	svc.Push(notifications.LevelSuccess, "Added to cart")

	_, env := serve(t, http.MethodGet, "/notifications", "/notifications?peek=true", "", NotificationsDrain(svc, nil))
	var items []notifications.Notification
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)

	_, env = serve(t, http.MethodGet, "/notifications", "/notifications", "", NotificationsDrain(svc, nil))
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)
	assert.Empty(t, svc.List())
}

type fakeCatalog struct {
	catalog.Service
	products []types.Product
	calls    int
}

func (f *fakeCatalog) Products(context.Context) []types.Product {
	f.calls++
	return f.products
}

func TestSearchFiltersAndLimits(t *testing.T) {
	t.Parallel()
	svc := &fakeCatalog{products: []types.Product{
		{ID: 1, Name: "Wooden abacus"},
		{ID: 2, Name: "Puzzle", Description: "great with an abacus"},
		{ID: 3, Name: "Abacus deluxe"},
	}}

	_, env := serve(t, http.MethodGet, "/search", "/search?q=abacus&limit=2", "", Search(svc, 10, nil))
	var products []types.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, int64(3), products[1].ID)

	_, env = serve(t, http.MethodGet, "/search", "/search?q=a", "", Search(svc, 10, nil))
	require.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Empty(t, products)
	assert.Equal(t, 1, svc.calls)

	rec, _ := serve(t, http.MethodGet, "/search", "/search?q=abacus&limit=0", "", Search(svc, 10, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
