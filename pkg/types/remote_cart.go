package types

// RemoteCart is the authoritative multi-store cart returned by the gateway.
type RemoteCart struct {
	CartTotalPrice Amount        `json:"cart_total_price"`
	Stores         []RemoteStore `json:"stores"`
}

// RemoteStore is one store's slice of the remote cart.
type RemoteStore struct {
	StoreID         int64           `json:"store_id"`
	StoreName       string          `json:"store_name"`
	StoreImage      string          `json:"store_image,omitempty"`
	Products        []RemoteProduct `json:"products"`
	StoreTotalPrice Amount          `json:"store_total_price"`
}

// RemoteProduct is one product line in a remote store.
type RemoteProduct struct {
	ProductID              int64  `json:"product_id"`
	ProductName            string `json:"product_name"`
	ProductCoverImage      string `json:"product_cover_image,omitempty"`
	ProductDescription     string `json:"product_description,omitempty"`
	ProductPrice           Amount `json:"product_price"`
	ProductDiscountedPrice Amount `json:"product_discounted_price,omitempty"`
	Quantity               int    `json:"quantity"`
	ProductTotal           Amount `json:"product_total"`
}

// StoreIDs returns the store ids in response order.
func (c RemoteCart) StoreIDs() []int64 {
	ids := make([]int64, 0, len(c.Stores))
	for _, s := range c.Stores {
		ids = append(ids, s.StoreID)
	}
	return ids
}
