package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/storefront/internal/storage"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const fetchKey = "products"

// Source is the remote catalog.
type Source interface {
	ListProducts(ctx context.Context) ([]types.Product, error)
	ListPackages(ctx context.Context) ([]types.Package, error)
	GetPackage(ctx context.Context, id int64) (*types.Package, error)
	ListCategories(ctx context.Context) ([]types.Category, error)
	CategoryProducts(ctx context.Context, categoryID int64) ([]types.Product, error)
	BestSellers(ctx context.Context) ([]types.Product, error)
}

// Service serves the product catalog from the local cache, fetching it once
// when absent. Browsing lists degrade to empty when the remote fails.
type Service interface {
	Products(ctx context.Context) []types.Product
	Refresh(ctx context.Context) ([]types.Product, error)
	Packages(ctx context.Context) []types.Package
	Package(ctx context.Context, id int64) (*types.Package, error)
	Categories(ctx context.Context) []types.Category
	CategoryProducts(ctx context.Context, categoryID int64) []types.Product
	BestSellers(ctx context.Context) []types.Product
}

type service struct {
	source Source
	store  storage.Store
	logg   *logger.Logger
	group  singleflight.Group
}

// NewService wires the catalog.
func NewService(source Source, store storage.Store, logg *logger.Logger) (Service, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if store == nil {
		return nil, fmt.Errorf("local store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{source: source, store: store, logg: logg}, nil
}

// Products returns the cached catalog. On a cache miss the catalog is fetched
// once, concurrent callers sharing the fetch; a failed fetch yields an empty
// catalog.
func (s *service) Products(ctx context.Context) []types.Product {
	if cached, ok := s.cached(ctx); ok {
		return cached
	}

	v, err, _ := s.group.Do(fetchKey, func() (interface{}, error) {
		// another caller may have filled the cache while we waited
		if cached, ok := s.cached(ctx); ok {
			return cached, nil
		}
		return s.fetchAndCache(ctx)
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog fetch failed, serving empty catalog")
		return []types.Product{}
	}
	return v.([]types.Product)
}

// Refresh forces a fetch. On failure the cache is kept and the error returned.
func (s *service) Refresh(ctx context.Context) ([]types.Product, error) {
	v, err, _ := s.group.Do(fetchKey, func() (interface{}, error) {
		return s.fetchAndCache(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Product), nil
}

func (s *service) fetchAndCache(ctx context.Context) ([]types.Product, error) {
	products, err := s.source.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []types.Product{}
	}
	if err := storage.SaveJSON(ctx, s.store, storage.KeyProducts, products); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog cache write failed")
	}
	s.logg.Info(s.logg.WithField(ctx, "count", len(products)), "catalog cached")
	return products, nil
}

func (s *service) cached(ctx context.Context) ([]types.Product, bool) {
	var products []types.Product
	if !storage.LoadJSON(ctx, s.store, s.logg, storage.KeyProducts, &products) || products == nil {
		return nil, false
	}
	return products, true
}

func (s *service) Packages(ctx context.Context) []types.Package {
	pkgs, err := s.source.ListPackages(ctx)
	if err != nil || pkgs == nil {
		s.degraded(ctx, "packages", err)
		return []types.Package{}
	}
	return pkgs
}

// Package is the one catalog read that reports errors: a detail view has
// nothing to fall back to.
func (s *service) Package(ctx context.Context, id int64) (*types.Package, error) {
	return s.source.GetPackage(ctx, id)
}

func (s *service) Categories(ctx context.Context) []types.Category {
	cats, err := s.source.ListCategories(ctx)
	if err != nil || cats == nil {
		s.degraded(ctx, "categories", err)
		return []types.Category{}
	}
	return cats
}

func (s *service) CategoryProducts(ctx context.Context, categoryID int64) []types.Product {
	products, err := s.source.CategoryProducts(ctx, categoryID)
	if err != nil || products == nil {
		s.degraded(ctx, "category products", err)
		return []types.Product{}
	}
	return products
}

func (s *service) BestSellers(ctx context.Context) []types.Product {
	products, err := s.source.BestSellers(ctx)
	if err != nil || products == nil {
		s.degraded(ctx, "best sellers", err)
		return []types.Product{}
	}
	return products
}

func (s *service) degraded(ctx context.Context, what string, err error) {
	if err == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"list": what, "error": err.Error()}), "catalog list unavailable, serving empty list")
}
