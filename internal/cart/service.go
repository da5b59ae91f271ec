package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront/internal/mirror"
	"github.com/angelmondragon/storefront/internal/notifications"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/gateway"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

type tokenSource interface {
	RequireToken() (string, error)
}

type cartViewer interface {
	ViewCart(ctx context.Context, token string) (*types.RemoteCart, error)
}

type remoteMirror interface {
	Enqueue(ctx context.Context, job mirror.Job) bool
}

type notifier interface {
	Push(level notifications.Level, message string) notifications.Notification
}

// Summary is a local list with its display totals.
type Summary struct {
	Namespace Namespace `json:"namespace"`
	Lines     []Line    `json:"lines"`
	Total     string    `json:"total"`
	ItemCount int       `json:"item_count"`
}

// Service manages the local lists and the remote cart view.
type Service interface {
	Lines(ctx context.Context, ns Namespace) ([]Line, error)
	Add(ctx context.Context, ns Namespace, line Line) ([]Line, error)
	SetQuantity(ctx context.Context, ns Namespace, id int64, quantity int) ([]Line, error)
	Remove(ctx context.Context, ns Namespace, id int64) ([]Line, error)
	Clear(ctx context.Context, ns Namespace) error
	Summary(ctx context.Context, ns Namespace) (*Summary, error)

	FetchRemote(ctx context.Context) (*types.RemoteCart, error)
	SetRemoteQuantity(ctx context.Context, storeID, productID int64, quantity int) (*types.RemoteCart, error)
	RemoveRemoteLine(ctx context.Context, storeID, productID int64) (*types.RemoteCart, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repository Repository
	Session    tokenSource
	Gateway    cartViewer
	Mirror     remoteMirror
	Notifier   notifier
	Logger     *logger.Logger
}

type service struct {
	repo     Repository
	session  tokenSource
	gateway  cartViewer
	mirror   remoteMirror
	notifier notifier
	logg     *logger.Logger

	// mu serializes read-modify-write cycles on the local lists.
	mu sync.Mutex

	viewMu sync.Mutex
	view   *types.RemoteCart
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Session == nil {
		return nil, fmt.Errorf("session required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Mirror == nil {
		return nil, fmt.Errorf("mirror queue required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repository,
		session:  params.Session,
		gateway:  params.Gateway,
		mirror:   params.Mirror,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (s *service) Lines(ctx context.Context, ns Namespace) ([]Line, error) {
	if err := validateNamespace(ns); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ns), nil
}

// Add merges line into ns. Product cart adds need a session and are mirrored
// to the remote cart in the background; a failed mirror never undoes the
// local write.
func (s *service) Add(ctx context.Context, ns Namespace, line Line) ([]Line, error) {
	if err := validateNamespace(ns); err != nil {
		return nil, err
	}
	if line.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line id is required")
	}
	if line.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	line.Name = strings.TrimSpace(line.Name)

	var token string
	if ns.Mirrored() {
		t, err := s.session.RequireToken()
		if err != nil {
			return nil, err
		}
		token = t
	}

	qty := line.Quantity
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	lines := AddLine(s.repo.Get(ctx, ns), line)
	err := s.repo.Set(ctx, ns, lines)
	s.mu.Unlock()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to save "+string(ns))
	}

	ctx = s.logg.WithNamespace(ctx, string(ns))
	s.logg.Info(s.logg.WithField(ctx, "line_id", line.ID), "line added")
	s.notifier.Push(notifications.LevelSuccess, fmt.Sprintf("%s added to %s", displayName(line), ns.label()))

	if ns.Mirrored() {
		s.mirror.Enqueue(ctx, mirror.Job{
			Token: token,
			Label: displayName(line),
			Items: []gateway.CartItem{{StoreID: line.StoreID, ProductID: line.ID, Quantity: qty}},
		})
	}
	return lines, nil
}

func (s *service) SetQuantity(ctx context.Context, ns Namespace, id int64, quantity int) ([]Line, error) {
	if err := validateNamespace(ns); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, found := UpdateQuantity(s.repo.Get(ctx, ns), id, quantity)
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line not found")
	}
	if err := s.repo.Set(ctx, ns, lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to save "+string(ns))
	}
	return lines, nil
}

func (s *service) Remove(ctx context.Context, ns Namespace, id int64) ([]Line, error) {
	if err := validateNamespace(ns); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, found := RemoveLine(s.repo.Get(ctx, ns), id)
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "line not found")
	}
	if err := s.repo.Set(ctx, ns, lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to save "+string(ns))
	}
	return lines, nil
}

// Clear deletes the whole list for ns.
func (s *service) Clear(ctx context.Context, ns Namespace) error {
	if err := validateNamespace(ns); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Clear(ctx, ns); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to clear "+string(ns))
	}
	if ns.Mirrored() {
		s.viewMu.Lock()
		s.view = nil
		s.viewMu.Unlock()
	}
	return nil
}

func (s *service) Summary(ctx context.Context, ns Namespace) (*Summary, error) {
	lines, err := s.Lines(ctx, ns)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Namespace: ns,
		Lines:     lines,
		Total:     types.FormatMoney(Total(lines)),
		ItemCount: ItemCount(lines),
	}, nil
}

// FetchRemote loads the authoritative cart and keeps it as the current view.
func (s *service) FetchRemote(ctx context.Context) (*types.RemoteCart, error) {
	token, err := s.session.RequireToken()
	if err != nil {
		return nil, err
	}
	remote, err := s.gateway.ViewCart(ctx, token)
	if err != nil {
		return nil, err
	}
	s.viewMu.Lock()
	s.view = cloneRemote(remote)
	s.viewMu.Unlock()
	return remote, nil
}

func (s *service) SetRemoteQuantity(ctx context.Context, storeID, productID int64, quantity int) (*types.RemoteCart, error) {
	return s.editView(ctx, func(view *types.RemoteCart) (*types.RemoteCart, bool) {
		return SetRemoteQuantity(view, storeID, productID, quantity)
	})
}

func (s *service) RemoveRemoteLine(ctx context.Context, storeID, productID int64) (*types.RemoteCart, error) {
	return s.editView(ctx, func(view *types.RemoteCart) (*types.RemoteCart, bool) {
		return RemoveRemoteLine(view, storeID, productID)
	})
}

func (s *service) editView(ctx context.Context, edit func(*types.RemoteCart) (*types.RemoteCart, bool)) (*types.RemoteCart, error) {
	s.viewMu.Lock()
	view := s.view
	s.viewMu.Unlock()
	if view == nil {
		if _, err := s.FetchRemote(ctx); err != nil {
			return nil, err
		}
		s.viewMu.Lock()
		view = s.view
		s.viewMu.Unlock()
	}

	updated, found := edit(view)
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found in remote cart")
	}

	s.viewMu.Lock()
	s.view = updated
	s.viewMu.Unlock()
	return cloneRemote(updated), nil
}

func validateNamespace(ns Namespace) error {
	if ns != NamespaceCart && ns != NamespaceBasket {
		return pkgerrors.New(pkgerrors.CodeValidation, "namespace must be cart or basket")
	}
	return nil
}

func (n Namespace) label() string {
	if n == NamespaceBasket {
		return "basket"
	}
	return "cart"
}

func displayName(l Line) string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("Item %d", l.ID)
}
