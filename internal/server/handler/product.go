package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// CatalogService defines the methods that the product handler requires.
type CatalogService interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error)
}

// ProductHandler serves product catalog HTTP endpoints.
type ProductHandler struct {
	catalog CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a ProductHandler with the given service and logger.
func NewProductHandler(catalog CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// listProductsResponse wraps the list products response.
type listProductsResponse struct {
	Products []domain.Product `json:"products"`
}

// ListProducts returns the product catalog.
// GET /api/products?limit=50&offset=0
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list products failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	if products == nil {
		products = []domain.Product{}
	}

	writeJSON(w, http.StatusOK, listProductsResponse{Products: products})
}

// GetProduct returns a single product.
// GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing product id")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get product failed",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}
