package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

type addLineRequest struct {
	ID         int64        `json:"id" validate:"required,gt=0"`
	StoreID    int64        `json:"store_id" validate:"gte=0"`
	Name       string       `json:"name" validate:"max=255"`
	Image      string       `json:"image,omitempty" validate:"max=1024"`
	Price      types.Amount `json:"price,omitempty"`
	TotalPrice types.Amount `json:"total_price,omitempty"`
	Quantity   int          `json:"quantity" validate:"gte=0"`
}

func (r addLineRequest) line() cart.Line {
	return cart.Line{
		ID:         r.ID,
		StoreID:    r.StoreID,
		Name:       validators.SanitizeString(r.Name, 255),
		Image:      r.Image,
		Price:      r.Price,
		TotalPrice: r.TotalPrice,
		Quantity:   r.Quantity,
	}
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func cartUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
}

// CartSummary returns the lines of ns with their total.
func CartSummary(svc cart.Service, ns cart.Namespace, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		summary, err := svc.Summary(r.Context(), ns)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CartAdd merges one line into ns.
func CartAdd(svc cart.Service, ns cart.Namespace, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		for field, amount := range map[string]types.Amount{"price": payload.Price, "total_price": payload.TotalPrice} {
			if amount != "" && !amount.Valid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
					WithDetails(map[string]string{field: "is invalid"}))
				return
			}
		}

		if _, err := svc.Add(r.Context(), ns, payload.line()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), ns)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, summary)
	}
}

// CartClear empties ns.
func CartClear(svc cart.Service, ns cart.Namespace, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		if err := svc.Clear(r.Context(), ns); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// CartLineQuantity sets the quantity of one line; below one removes it.
func CartLineQuantity(svc cart.Service, ns cart.Namespace, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.SetQuantity(r.Context(), ns, id, *payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), ns)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func CartLineRemove(svc cart.Service, ns cart.Namespace, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		id, err := validators.ParseIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := svc.Remove(r.Context(), ns, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), ns)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// RemoteCartFetch pulls the authoritative cart view from the gateway.
func RemoteCartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		view, err := svc.FetchRemote(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// RemoteCartQuantity edits one product of the held cart view.
func RemoteCartQuantity(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		storeID, productID, err := remoteLineParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.SetRemoteQuantity(r.Context(), storeID, productID, *payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func RemoteCartRemove(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			cartUnavailable(w, r, logg)
			return
		}
		storeID, productID, err := remoteLineParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveRemoteLine(r.Context(), storeID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func remoteLineParams(r *http.Request) (int64, int64, error) {
	storeID, err := validators.ParseIDParam(r, "storeId")
	if err != nil {
		return 0, 0, err
	}
	productID, err := validators.ParseIDParam(r, "productId")
	if err != nil {
		return 0, 0, err
	}
	return storeID, productID, nil
}
