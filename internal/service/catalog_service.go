package service

import (
	"context"
	"fmt"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// CatalogService reads the product catalog.
type CatalogService struct {
	products domain.ProductStore
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(products domain.ProductStore) *CatalogService {
	return &CatalogService{products: products}
}

// GetProduct retrieves a single product.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("catalog_service: get product %q: %w", id, err)
	}
	return product, nil
}

// ListProducts returns the catalog.
func (s *CatalogService) ListProducts(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	products, err := s.products.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("catalog_service: list products: %w", err)
	}
	return products, nil
}
