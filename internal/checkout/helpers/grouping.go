package helpers

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/types"
)

// StoreTotals captures the per-store figures shown next to checkout progress.
type StoreTotals struct {
	StoreID   int64
	StoreName string
	Total     decimal.Decimal
	ItemCount int
}

// TotalsByStore returns one entry per store in the order the cart view
// returned them. Duplicate store ids are merged into the first occurrence.
func TotalsByStore(cart *types.RemoteCart) []StoreTotals {
	if cart == nil {
		return nil
	}
	index := make(map[int64]int, len(cart.Stores))
	results := make([]StoreTotals, 0, len(cart.Stores))
	for _, store := range cart.Stores {
		pos, ok := index[store.StoreID]
		if !ok {
			pos = len(results)
			index[store.StoreID] = pos
			results = append(results, StoreTotals{StoreID: store.StoreID, StoreName: store.StoreName})
		}
		totals := results[pos]
		for _, product := range store.Products {
			totals.Total = totals.Total.Add(productTotal(product))
			totals.ItemCount += product.Quantity
		}
		results[pos] = totals
	}
	return results
}

func productTotal(product types.RemoteProduct) decimal.Decimal {
	if product.ProductTotal != "" {
		return product.ProductTotal.Decimal()
	}
	return product.ProductPrice.Decimal().Mul(decimal.NewFromInt(int64(product.Quantity)))
}
