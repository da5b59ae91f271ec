package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout/helpers"
	"github.com/angelmondragon/storefront/internal/notifications"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/gateway"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/types"
)

// DefaultInterStoreDelay separates two consecutive store checkout requests.
const DefaultInterStoreDelay = 500 * time.Millisecond

type sessionReader interface {
	RequireToken() (string, error)
	Subject() string
}

type cartService interface {
	FetchRemote(ctx context.Context) (*types.RemoteCart, error)
	Clear(ctx context.Context, ns cart.Namespace) error
}

type addressBook interface {
	Get(ctx context.Context, id int64) (*types.Address, error)
	Selected() (types.Address, bool)
}

type storeCheckout interface {
	CheckoutStore(ctx context.Context, token string, req gateway.CheckoutRequest, idempotencyKey string) (*gateway.CheckoutResult, error)
}

type notifier interface {
	Push(level notifications.Level, message string) notifications.Notification
}

// WaitFunc pauses between two store requests.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Request is what the user submits from the checkout screen.
type Request struct {
	Namespace       cart.Namespace `json:"namespace"`
	PaymentMethodID string         `json:"payment_method_id"`
	AddressID       int64          `json:"address_id,omitempty"`
	Address         *types.Address `json:"address,omitempty"`
	CouponCode      string         `json:"coupon_code,omitempty"`
}

// Service places one order per store of the remote cart.
type Service interface {
	Checkout(ctx context.Context, req Request) (*Progress, error)
	Progress(ctx context.Context) (*Progress, bool)
	Discard(ctx context.Context) error
}

// ServiceParams wires the checkout sequencer.
type ServiceParams struct {
	Session   sessionReader
	Cart      cartService
	Addresses addressBook
	Gateway   storeCheckout
	Notifier  notifier
	Logger    *logger.Logger
	Metrics   *metrics.CheckoutMetrics
	Tracker   *Tracker

	// InterStoreDelay defaults to DefaultInterStoreDelay; a negative value disables it.
	InterStoreDelay time.Duration
	// RetryAll re-sends stores that already succeeded in a previous run.
	RetryAll bool
	Wait     WaitFunc
}

type service struct {
	session   sessionReader
	cart      cartService
	addresses addressBook
	gateway   storeCheckout
	notifier  notifier
	logg      *logger.Logger
	metrics   *metrics.CheckoutMetrics
	tracker   *Tracker
	delay     time.Duration
	retryAll  bool
	wait      WaitFunc
	now       func() time.Time
}

// NewService builds the checkout sequencer.
func NewService(params ServiceParams) (Service, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("session required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address book required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	tracker := params.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	delay := params.InterStoreDelay
	switch {
	case delay == 0:
		delay = DefaultInterStoreDelay
	case delay < 0:
		delay = 0
	}
	wait := params.Wait
	if wait == nil {
		wait = sleep
	}
	return &service{
		session:   params.Session,
		cart:      params.Cart,
		addresses: params.Addresses,
		gateway:   params.Gateway,
		notifier:  params.Notifier,
		logg:      params.Logger,
		metrics:   params.Metrics,
		tracker:   tracker,
		delay:     delay,
		retryAll:  params.RetryAll,
		wait:      wait,
		now:       time.Now,
	}, nil
}

// Checkout validates req, then sends one checkout request per store in the
// order of the cart view, waiting for each before the next. A store failure
// never stops the remaining stores. The namespace is cleared only when every
// store succeeded; otherwise a CodeCheckoutIncomplete error carries the
// progress.
func (s *service) Checkout(ctx context.Context, req Request) (*Progress, error) {
	started := s.now()
	ns, addr, err := s.validate(ctx, req)
	if err != nil {
		s.metrics.ObserveRun(metrics.CheckoutOutcomeRejected, s.now().Sub(started))
		return nil, err
	}
	token, err := s.session.RequireToken()
	if err != nil {
		s.metrics.ObserveRun(metrics.CheckoutOutcomeRejected, s.now().Sub(started))
		return nil, err
	}
	view, err := s.cart.FetchRemote(ctx)
	if err != nil {
		s.metrics.ObserveRun(metrics.CheckoutOutcomeRejected, s.now().Sub(started))
		return nil, err
	}
	if err := helpers.ValidateStores(view); err != nil {
		s.metrics.ObserveRun(metrics.CheckoutOutcomeRejected, s.now().Sub(started))
		return nil, err
	}

	subject := s.session.Subject()
	if _, err := s.tracker.Begin(subject, ns, view); err != nil {
		return nil, err
	}

	// The sequence runs to the end even if the caller goes away.
	runCtx := s.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"namespace": string(ns),
		"subject":   subject,
	})
	progress := s.run(runCtx, subject, token, req, addr, view)
	s.metrics.ObserveRun(outcomeOf(progress), s.now().Sub(started))

	if progress.AllSucceeded() {
		if err := s.cart.Clear(runCtx, ns); err != nil {
			s.logg.Error(runCtx, "checkout succeeded but clearing local list failed", err)
		}
		s.logg.Info(runCtx, "checkout complete")
		s.notifier.Push(notifications.LevelSuccess, "Order placed successfully")
		return &progress, nil
	}

	counts := progress.Counts()
	s.notifier.Push(notifications.LevelError,
		fmt.Sprintf("Checkout failed for %d of %d stores", counts[StatusFailed], len(progress.Stores)))
	return &progress, pkgerrors.New(pkgerrors.CodeCheckoutIncomplete, "checkout incomplete").
		WithDetails(progress)
}

func (s *service) run(ctx context.Context, subject, token string, req Request, addr types.Address, view *types.RemoteCart) Progress {
	var (
		errs error
		sent int
	)
	for _, store := range view.Stores {
		storeCtx := s.logg.WithStoreID(ctx, store.StoreID)
		if !s.retryAll && s.succeeded(subject, store.StoreID) {
			s.metrics.IncStoreResult(metrics.StoreResultSkipped)
			s.logg.Info(storeCtx, "store already checked out, skipping")
			continue
		}

		if sent > 0 && s.delay > 0 {
			if err := s.wait(ctx, s.delay); err != nil {
				s.logg.Warn(storeCtx, "inter-store wait interrupted")
			}
		}
		sent++

		key := s.tracker.Attempt(subject, store.StoreID)
		res, err := s.gateway.CheckoutStore(ctx, token, gateway.CheckoutRequest{
			StoreID:         store.StoreID,
			PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
			Address:         addr,
			CouponCode:      strings.TrimSpace(req.CouponCode),
		}, key)
		switch {
		case err != nil:
			s.tracker.Fail(subject, store.StoreID, publicMessage(err), pkgerrors.Retryable(err))
			s.metrics.IncStoreResult(metrics.StoreResultFailed)
			errs = multierr.Append(errs, fmt.Errorf("store %d: %w", store.StoreID, err))
		case res == nil || !res.Success:
			message := "checkout rejected"
			if res != nil && res.Message != "" {
				message = res.Message
			}
			s.tracker.Fail(subject, store.StoreID, message, false)
			s.metrics.IncStoreResult(metrics.StoreResultFailed)
			errs = multierr.Append(errs, fmt.Errorf("store %d: %s", store.StoreID, message))
		default:
			s.tracker.Mark(subject, store.StoreID, StatusSuccess, res.Message)
			s.metrics.IncStoreResult(metrics.StoreResultSuccess)
			s.logg.Info(storeCtx, "store checkout succeeded")
		}
	}

	progress := s.tracker.Finish(subject)
	if errs != nil {
		s.logg.Error(s.logg.WithField(ctx, "failed_stores", len(multierr.Errors(errs))), "checkout incomplete", errs)
	}
	return progress
}

func (s *service) validate(ctx context.Context, req Request) (cart.Namespace, types.Address, error) {
	if err := helpers.ValidatePaymentMethod(req.PaymentMethodID); err != nil {
		return "", types.Address{}, err
	}
	ns := req.Namespace
	if ns == "" {
		ns = cart.NamespaceCart
	}
	if ns != cart.NamespaceCart && ns != cart.NamespaceBasket {
		return "", types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "namespace must be cart or basket")
	}
	addr, err := s.resolveAddress(ctx, req)
	if err != nil {
		return "", types.Address{}, err
	}
	return ns, addr, nil
}

// resolveAddress prefers an explicit id, then an entered address, then the
// address selected in the address book.
func (s *service) resolveAddress(ctx context.Context, req Request) (types.Address, error) {
	switch {
	case req.AddressID > 0:
		addr, err := s.addresses.Get(ctx, req.AddressID)
		if err != nil {
			return types.Address{}, err
		}
		return *addr, nil
	case req.Address != nil && !req.Address.IsZero():
		if err := helpers.ValidateAddress(*req.Address); err != nil {
			return types.Address{}, err
		}
		return req.Address.Normalize(), nil
	}
	if addr, ok := s.addresses.Selected(); ok {
		return addr, nil
	}
	return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
}

func (s *service) succeeded(subject string, storeID int64) bool {
	progress, ok := s.tracker.Get(subject)
	if !ok {
		return false
	}
	for _, store := range progress.Stores {
		if store.StoreID == storeID {
			return store.Status == StatusSuccess
		}
	}
	return false
}

func (s *service) Progress(_ context.Context) (*Progress, bool) {
	progress, ok := s.tracker.Get(s.session.Subject())
	if !ok {
		return nil, false
	}
	return &progress, true
}

func (s *service) Discard(_ context.Context) error {
	return s.tracker.Discard(s.session.Subject())
}

func outcomeOf(progress Progress) string {
	if progress.AllSucceeded() {
		return metrics.CheckoutOutcomeComplete
	}
	return metrics.CheckoutOutcomeIncomplete
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
