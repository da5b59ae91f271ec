package cart

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/internal/mirror"
	"github.com/angelmondragon/storefront/internal/notifications"
	"github.com/angelmondragon/storefront/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

type stubSession struct{ token string }

func (s stubSession) RequireToken() (string, error) {
	if s.token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required").
			WithDetails(map[string]string{"redirect": "/login"})
	}
	return s.token, nil
}

type stubViewer struct {
	cart  *types.RemoteCart
	err   error
	calls int
}

func (s *stubViewer) ViewCart(context.Context, string) (*types.RemoteCart, error) {
	s.calls++
	return s.cart, s.err
}

type recordingMirror struct{ jobs []mirror.Job }

func (r *recordingMirror) Enqueue(_ context.Context, job mirror.Job) bool {
	r.jobs = append(r.jobs, job)
	return true
}

type fixture struct {
	svc    Service
	store  *storage.MemoryStore
	mirror *recordingMirror
	viewer *stubViewer
	feed   notifications.Service
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	store := storage.NewMemoryStore()
	repo, err := NewRepository(store, logg)
	require.NoError(t, err)
	feed, err := notifications.NewService(10)
	require.NoError(t, err)
	f := &fixture{store: store, mirror: &recordingMirror{}, viewer: &stubViewer{}, feed: feed}
	f.svc, err = NewService(ServiceParams{
		Repository: repo,
		Session:    stubSession{token: token},
		Gateway:    f.viewer,
		Mirror:     f.mirror,
		Notifier:   feed,
		Logger:     logg,
	})
	require.NoError(t, err)
	return f
}

func TestAddSameProductTwicePersistsOneLine(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	ctx := context.Background()
	product := Line{ID: 7, StoreID: 3, Name: "Abacus", Price: "10.00", Quantity: 1}

	_, err := f.svc.Add(ctx, NamespaceCart, product)
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, NamespaceCart, product)
	require.NoError(t, err)

	raw, found, err := f.store.Get(ctx, storage.KeyCartItems)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `[{"id":7,"store_id":3,"name":"Abacus","price":"10.00","quantity":2}]`, raw)

	summary, err := f.svc.Summary(ctx, NamespaceCart)
	require.NoError(t, err)
	assert.Equal(t, "20.00", summary.Total)
	assert.Equal(t, 2, summary.ItemCount)

	require.Len(t, f.mirror.jobs, 2)
	assert.Equal(t, "tok", f.mirror.jobs[0].Token)
	assert.Equal(t, int64(7), f.mirror.jobs[0].Items[0].ProductID)
	assert.Equal(t, int64(3), f.mirror.jobs[0].Items[0].StoreID)
	assert.Len(t, f.feed.List(), 2)
}

func TestBasketAddStaysLocal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	lines, err := f.svc.Add(context.Background(), NamespaceBasket, Line{ID: 9, Name: "Starter", TotalPrice: "99.00"})
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Empty(t, f.mirror.jobs)
}

func TestCartAddWithoutSessionIsRejectedBeforeWriting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	_, err := f.svc.Add(context.Background(), NamespaceCart, Line{ID: 7})
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))

	_, found, _ := f.store.Get(context.Background(), storage.KeyCartItems)
	assert.False(t, found)
	assert.Empty(t, f.mirror.jobs)
}

func TestSetQuantityAndRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	ctx := context.Background()
	_, err := f.svc.Add(ctx, NamespaceBasket, Line{ID: 1, TotalPrice: "5"})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, NamespaceBasket, Line{ID: 2, TotalPrice: "7"})
	require.NoError(t, err)

	lines, err := f.svc.SetQuantity(ctx, NamespaceBasket, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, lines[0].Quantity)

	lines, err = f.svc.SetQuantity(ctx, NamespaceBasket, 2, 0)
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = f.svc.Remove(ctx, NamespaceBasket, 2)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	lines, err = f.svc.Remove(ctx, NamespaceBasket, 1)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestClearDeletesWholeNamespace(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	ctx := context.Background()
	_, err := f.svc.Add(ctx, NamespaceCart, Line{ID: 1})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, NamespaceBasket, Line{ID: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, NamespaceCart))
	_, found, _ := f.store.Get(ctx, storage.KeyCartItems)
	assert.False(t, found)
	_, found, _ = f.store.Get(ctx, storage.KeyBasket)
	assert.True(t, found)
}

func TestCorruptListReadsAsEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, storage.KeyCartItems, "{{{"))

	lines, err := f.svc.Lines(ctx, NamespaceCart)
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = f.svc.Add(ctx, NamespaceCart, Line{ID: 3})
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestRemoteViewEdits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	f.viewer.cart = sampleRemote()
	ctx := context.Background()

	updated, err := f.svc.SetRemoteQuantity(ctx, 1, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.viewer.calls, "first edit fetches the view")
	assert.Equal(t, types.Amount("25.00"), updated.CartTotalPrice)

	updated, err = f.svc.RemoveRemoteLine(ctx, 2, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, f.viewer.calls)
	assert.Equal(t, types.Amount("15.00"), updated.CartTotalPrice)

	_, err = f.svc.RemoveRemoteLine(ctx, 2, 9)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestFetchRemoteRequiresSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "")
	_, err := f.svc.FetchRemote(context.Background())
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.CodeOf(err))
	assert.Zero(t, f.viewer.calls)
}

func TestFetchRemotePropagatesGatewayError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	f.viewer.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("502"), "view-cart failed")
	_, err := f.svc.FetchRemote(context.Background())
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestInvalidNamespaceRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, "tok")
	_, err := f.svc.Lines(context.Background(), Namespace("wishlist"))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
