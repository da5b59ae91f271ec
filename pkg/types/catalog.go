package types

// Category groups products on the marketplace.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"category_name"`
	Color string `json:"color,omitempty"`
}

// ProductVariant is a purchasable variation of a product.
type ProductVariant struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Amount `json:"price"`
	Stock int    `json:"stock"`
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

// Product is a catalog entry as served by the marketplace API. Only the
// fields the storefront reads are kept; unknown fields are dropped when the
// catalog is cached.
type Product struct {
	ID              int64            `json:"id"`
	StoreID         int64            `json:"store_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Price           Amount           `json:"price"`
	DiscountedPrice Amount           `json:"discounted_price,omitempty"`
	Stock           int              `json:"stock"`
	CoverImage      string           `json:"cover_image,omitempty"`
	Images          []string         `json:"images,omitempty"`
	Rating          string           `json:"rating,omitempty"`
	Categories      []Category       `json:"categories,omitempty"`
	Variants        []ProductVariant `json:"variants,omitempty"`
}

// PackageItem is one product bundled inside a package.
type PackageItem struct {
	ID        int64   `json:"id"`
	PackageID int64   `json:"package_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// Package is a bundle of products sold as a single basket line.
type Package struct {
	ID           int64         `json:"id"`
	StoreID      int64         `json:"store_id"`
	Name         string        `json:"name"`
	TotalPrice   Amount        `json:"total_price"`
	NumberOfUses int           `json:"number_of_uses,omitempty"`
	Image        string        `json:"image,omitempty"`
	Items        []PackageItem `json:"items,omitempty"`
}
