package cart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Namespace names one local list. Its value is the storage key.
type Namespace string

const (
	NamespaceCart   Namespace = storage.KeyCartItems
	NamespaceBasket Namespace = storage.KeyBasket
)

// ParseNamespace maps route and CLI spellings onto a Namespace.
func ParseNamespace(value string) (Namespace, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cart", "cartitems", "products":
		return NamespaceCart, nil
	case "basket", "packages":
		return NamespaceBasket, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "namespace must be cart or basket")
}

// Mirrored reports whether adds to this namespace are reconciled with the
// remote cart. Basket adds stay local.
func (n Namespace) Mirrored() bool {
	return n == NamespaceCart
}

// Line is one product or package held locally. Descriptive fields are copied
// at add time and never refreshed.
type Line struct {
	ID         int64        `json:"id"`
	StoreID    int64        `json:"store_id"`
	Name       string       `json:"name"`
	Image      string       `json:"image,omitempty"`
	Price      types.Amount `json:"price,omitempty"`
	TotalPrice types.Amount `json:"total_price,omitempty"`
	Quantity   int          `json:"quantity"`
}

// UnitPrice is price when set, otherwise total_price (packages carry only the latter).
func (l Line) UnitPrice() decimal.Decimal {
	if l.Price != "" {
		return l.Price.Decimal()
	}
	return l.TotalPrice.Decimal()
}

// Subtotal is unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// FromProduct builds a line for the product cart.
func FromProduct(p types.Product, quantity int) Line {
	return Line{
		ID:       p.ID,
		StoreID:  p.StoreID,
		Name:     p.Name,
		Image:    p.CoverImage,
		Price:    p.Price,
		Quantity: quantity,
	}
}

// FromPackage builds a line for the basket.
func FromPackage(p types.Package, quantity int) Line {
	return Line{
		ID:         p.ID,
		StoreID:    p.StoreID,
		Name:       p.Name,
		Image:      p.Image,
		TotalPrice: p.TotalPrice,
		Quantity:   quantity,
	}
}
