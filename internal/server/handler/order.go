package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/service"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (domain.Order, error)
	Advance(ctx context.Context, p domain.Principal, id string) (domain.AdvanceResult, error)
	GetOrder(ctx context.Context, p domain.Principal, id string) (domain.Order, error)
	ListOrders(ctx context.Context, p domain.Principal, userID string, opts domain.ListOpts) ([]domain.Order, error)
}

// OrderHandler serves order-related HTTP endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// createOrderRequest is the JSON body for placing a new order.
type createOrderRequest struct {
	Type  string `json:"type"`
	Items []struct {
		ProductID string  `json:"product_id"`
		Quantity  float64 `json:"quantity"`
	} `json:"items"`
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// CreateOrder places a new order for the authenticated user.
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "at least one item is required")
		return
	}

	in := service.CreateOrderInput{
		UserID: p.ID,
		Type:   domain.OrderType(req.Type),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, service.CreateOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limited")
		case errors.Is(err, domain.ErrInvalidOrder):
			writeError(w, http.StatusBadRequest, "invalid order")
		default:
			h.logger.ErrorContext(r.Context(), "handler: create order failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to create order")
		}
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListOrders returns the authenticated user's orders. Admins may pass
// ?user_id= to list another user's orders.
// GET /api/orders?user_id=...&limit=50&offset=0
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = p.ID
	}

	orders, err := h.orders.ListOrders(r.Context(), p, userID, parseListOpts(r))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// GetOrder returns a single order with its items.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), p, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			h.logger.ErrorContext(r.Context(), "handler: get order failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get order")
		}
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// processOrderResponse is returned by ProcessOrder. Positions is present
// only when the step delivered the order.
type processOrderResponse struct {
	ID        string             `json:"id"`
	Status    domain.OrderStatus `json:"status"`
	Positions []domain.Position  `json:"positions,omitempty"`
}

// ProcessOrder advances the order one step along the fulfillment lifecycle.
// Reaching delivered materializes one position per order item atomically with
// the status change. The caller must own the order or be an admin.
// POST /api/orders/{id}/process
func (h *OrderHandler) ProcessOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	res, err := h.orders.Advance(r.Context(), p, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusForbidden, "forbidden")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusConflict, "order already delivered")
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "concurrent update, retry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: process order failed",
				slog.String("order_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to process order")
		}
		return
	}

	writeJSON(w, http.StatusOK, processOrderResponse{
		ID:        res.Order.ID,
		Status:    res.Order.Status,
		Positions: res.Positions,
	})
}
