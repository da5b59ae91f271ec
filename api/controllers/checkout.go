package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

type checkoutRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	PaymentMethodID string         `json:"payment_method_id" validate:"required,max=64"`
	AddressID       int64          `json:"address_id,omitempty" validate:"gte=0"`
	Address         *types.Address `json:"address,omitempty"`
	CouponCode      string         `json:"coupon_code,omitempty" validate:"max=64"`
}

func (r checkoutRequest) toRequest() (checkout.Request, error) {
	req := checkout.Request{
		PaymentMethodID: strings.TrimSpace(r.PaymentMethodID),
		AddressID:       r.AddressID,
		Address:         r.Address,
		CouponCode:      r.CouponCode,
	}
	if strings.TrimSpace(r.Namespace) != "" {
		ns, err := cart.ParseNamespace(r.Namespace)
		if err != nil {
			return checkout.Request{}, err
		}
		req.Namespace = ns
	}
	return req, nil
}

// CheckoutRun places one order per store of the remote cart. A partial
// failure answers 502 with the per-store progress in the error details.
func CheckoutRun(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := payload.toRequest()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		progress, err := svc.Checkout(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, progress)
	}
}

func CheckoutProgress(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		progress, ok := svc.Progress(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no checkout in progress"))
			return
		}
		responses.WriteSuccess(w, progress)
	}
}

// CheckoutDiscard forgets a finished run so the next one starts fresh.
func CheckoutDiscard(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		if err := svc.Discard(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
