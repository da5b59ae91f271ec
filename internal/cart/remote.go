package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/types"
)

// cloneRemote deep-copies the store and product slices.
func cloneRemote(c *types.RemoteCart) *types.RemoteCart {
	if c == nil {
		return nil
	}
	out := &types.RemoteCart{CartTotalPrice: c.CartTotalPrice, Stores: make([]types.RemoteStore, len(c.Stores))}
	for i, s := range c.Stores {
		s.Products = append([]types.RemoteProduct(nil), s.Products...)
		out.Stores[i] = s
	}
	return out
}

// Recompute rebuilds product, store and cart totals from price times
// quantity, the same aggregation the marketplace performs.
func Recompute(c *types.RemoteCart) {
	cartTotal := decimal.Zero
	for i := range c.Stores {
		storeTotal := decimal.Zero
		for j := range c.Stores[i].Products {
			p := &c.Stores[i].Products[j]
			lineTotal := p.ProductPrice.Decimal().Mul(decimal.NewFromInt(int64(p.Quantity)))
			p.ProductTotal = types.AmountFromDecimal(lineTotal)
			storeTotal = storeTotal.Add(lineTotal)
		}
		c.Stores[i].StoreTotalPrice = types.AmountFromDecimal(storeTotal)
		cartTotal = cartTotal.Add(storeTotal)
	}
	c.CartTotalPrice = types.AmountFromDecimal(cartTotal)
}

// SetRemoteQuantity returns a copy of c with the product's quantity changed
// and totals recomputed. A quantity below 1 removes the product.
func SetRemoteQuantity(c *types.RemoteCart, storeID, productID int64, quantity int) (*types.RemoteCart, bool) {
	if quantity < 1 {
		return RemoveRemoteLine(c, storeID, productID)
	}
	out := cloneRemote(c)
	if out == nil {
		return nil, false
	}
	found := false
	for i := range out.Stores {
		if out.Stores[i].StoreID != storeID {
			continue
		}
		for j := range out.Stores[i].Products {
			if out.Stores[i].Products[j].ProductID == productID {
				out.Stores[i].Products[j].Quantity = quantity
				found = true
			}
		}
	}
	if found {
		Recompute(out)
	}
	return out, found
}

// RemoveRemoteLine returns a copy of c without the product. Stores left with
// no products are dropped.
func RemoveRemoteLine(c *types.RemoteCart, storeID, productID int64) (*types.RemoteCart, bool) {
	out := cloneRemote(c)
	if out == nil {
		return nil, false
	}
	found := false
	stores := out.Stores[:0]
	for _, s := range out.Stores {
		if s.StoreID == storeID {
			kept := s.Products[:0]
			for _, p := range s.Products {
				if p.ProductID == productID {
					found = true
					continue
				}
				kept = append(kept, p)
			}
			s.Products = kept
			if len(s.Products) == 0 {
				continue
			}
		}
		stores = append(stores, s)
	}
	out.Stores = stores
	if found {
		Recompute(out)
	}
	return out, found
}
