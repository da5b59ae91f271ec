package helpers

import (
	"strings"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/angelmondragon/storefront/pkg/validate"
)

// ValidatePaymentMethod ensures a payment method was picked.
func ValidatePaymentMethod(id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	return nil
}

// ValidateAddress ensures the delivery address is complete.
func ValidateAddress(addr types.Address) error {
	if addr.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	return validate.Struct(addr.Normalize())
}

// ValidateStores rejects a cart view with nothing to check out.
func ValidateStores(cart *types.RemoteCart) error {
	if cart == nil || len(cart.Stores) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, store := range cart.Stores {
		if store.StoreID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains a store without id")
		}
	}
	return nil
}
