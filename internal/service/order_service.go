package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/metrics"
)

// createRateLimit bounds order creation per user within createRateWindow.
const (
	createRateLimit  = 10
	createRateWindow = time.Minute
)

// CreateOrderItem is one line of an order creation request.
type CreateOrderItem struct {
	ProductID string
	Quantity  float64
}

// CreateOrderInput is the validated payload for placing a new order.
type CreateOrderInput struct {
	UserID string
	Type   domain.OrderType
	Items  []CreateOrderItem
}

// OrderService handles order placement and the lifecycle that turns a
// delivered order into ownership positions.
type OrderService struct {
	orders   domain.OrderStore
	products domain.ProductStore
	limiter  domain.RateLimiter
	bus      domain.SignalBus
	audit    domain.AuditStore
	metrics  *metrics.Metrics
	node     *snowflake.Node
	taxRate  float64
	logger   *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
// node generates globally unique human-facing order numbers; taxRate is the
// flat tax fraction applied to the subtotal (e.g. 0.07).
func NewOrderService(
	orders domain.OrderStore,
	products domain.ProductStore,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	m *metrics.Metrics,
	node *snowflake.Node,
	taxRate float64,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		limiter:  limiter,
		bus:      bus,
		audit:    audit,
		metrics:  m,
		node:     node,
		taxRate:  taxRate,
		logger:   logger,
	}
}

// CreateOrder prices the requested items against the current catalog,
// persists the order in pending status, publishes an event on the signal bus,
// and writes an audit log entry. Unit prices are snapshotted from the catalog
// at creation time; later catalog changes never reprice an existing order.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	allowed, err := s.limiter.Allow(ctx, "orders:"+in.UserID, createRateLimit, createRateWindow)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.Order{}, domain.ErrRateLimited
	}

	if len(in.Items) == 0 {
		return domain.Order{}, fmt.Errorf("order_service: %w: no items", domain.ErrInvalidOrder)
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()

	var subtotal float64
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, reqItem := range in.Items {
		product, err := s.products.GetByID(ctx, reqItem.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Order{}, fmt.Errorf("order_service: %w: unknown product %s", domain.ErrInvalidOrder, reqItem.ProductID)
			}
			return domain.Order{}, fmt.Errorf("order_service: load product %s: %w", reqItem.ProductID, err)
		}
		if !product.InStock {
			return domain.Order{}, fmt.Errorf("order_service: %w: product %s out of stock", domain.ErrInvalidOrder, product.ID)
		}
		if reqItem.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("order_service: %w: non-positive quantity for %s", domain.ErrInvalidOrder, product.ID)
		}

		lineTotal := roundCents(product.Price * reqItem.Quantity)
		items = append(items, domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    reqItem.Quantity,
			UnitPrice:   product.Price,
			TotalPrice:  lineTotal,
		})
		subtotal += lineTotal
	}

	subtotal = roundCents(subtotal)
	taxes := roundCents(subtotal * s.taxRate)

	order := domain.Order{
		ID:          orderID,
		UserID:      in.UserID,
		Type:        in.Type,
		Status:      domain.OrderStatusPending,
		OrderNumber: "GS-" + s.node.Generate().String(),
		Currency:    "USD",
		Subtotal:    subtotal,
		Taxes:       taxes,
		TotalAmount: roundCents(subtotal + taxes),
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := order.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: validate: %w", err)
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: create order: %w", err)
	}

	s.metrics.OrdersCreated.Inc()

	s.publishOrderEvent(ctx, "order_created", order)

	if auditErr := s.audit.Log(ctx, "order_created", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"type":         string(order.Type),
		"total":        order.TotalAmount,
		"items":        len(order.Items),
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "order_service: audit log failed",
			slog.String("order_id", order.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order_service: order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("user_id", order.UserID),
		slog.Float64("total", order.TotalAmount),
	)

	return order, nil
}

// Advance moves the order one step along the lifecycle. The caller must be
// the order's owner or an admin. A conflict with a concurrent advance is
// retried once against the fresh state; a second conflict surfaces to the
// caller. Delivery returns the positions created in the same transaction.
func (s *OrderService) Advance(ctx context.Context, p domain.Principal, id string) (domain.AdvanceResult, error) {
	owned, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.AdvanceResult{}, fmt.Errorf("order_service: advance order %q: %w", id, err)
	}
	if !p.CanAccessUser(owned.UserID) {
		return domain.AdvanceResult{}, domain.ErrUnauthorized
	}

	start := time.Now()

	res, err := s.orders.Advance(ctx, id)
	if errors.Is(err, domain.ErrConflict) {
		s.metrics.TransitionConflicts.Inc()
		s.logger.WarnContext(ctx, "order_service: advance conflict, retrying",
			slog.String("order_id", id),
		)
		res, err = s.orders.Advance(ctx, id)
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.TransitionConflicts.Inc()
		}
	}
	s.metrics.AdvanceDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			s.metrics.TransitionRejected.Inc()
		}
		return domain.AdvanceResult{}, fmt.Errorf("order_service: advance order %q: %w", id, err)
	}

	s.metrics.OrderTransitions.WithLabelValues(string(res.Order.Status)).Inc()

	s.publishOrderEvent(ctx, "order_advanced", res.Order)

	detail := map[string]any{
		"order_id": res.Order.ID,
		"status":   string(res.Order.Status),
	}
	if len(res.Positions) > 0 {
		s.metrics.PositionsCreated.Add(float64(len(res.Positions)))
		detail["positions"] = len(res.Positions)

		evt, _ := json.Marshal(map[string]any{
			"event":    "positions_created",
			"order_id": res.Order.ID,
			"user_id":  res.Order.UserID,
			"count":    len(res.Positions),
		})
		if pubErr := s.bus.Publish(ctx, "positions", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "order_service: publish positions event failed",
				slog.String("order_id", res.Order.ID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	if auditErr := s.audit.Log(ctx, "order_advanced", detail); auditErr != nil {
		s.logger.WarnContext(ctx, "order_service: audit log failed",
			slog.String("order_id", res.Order.ID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order_service: order advanced",
		slog.String("order_id", res.Order.ID),
		slog.String("status", string(res.Order.Status)),
		slog.Int("positions", len(res.Positions)),
	)

	return res, nil
}

// GetOrder retrieves a single order, enforcing that the caller may only see
// their own orders unless they are an admin.
func (s *OrderService) GetOrder(ctx context.Context, p domain.Principal, id string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: get order %q: %w", id, err)
	}
	if !p.CanAccessUser(order.UserID) {
		return domain.Order{}, domain.ErrUnauthorized
	}
	return order, nil
}

// ListOrders returns the given user's orders, enforcing ownership.
func (s *OrderService) ListOrders(ctx context.Context, p domain.Principal, userID string, opts domain.ListOpts) ([]domain.Order, error) {
	if !p.CanAccessUser(userID) {
		return nil, domain.ErrUnauthorized
	}
	orders, err := s.orders.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list orders for %q: %w", userID, err)
	}
	return orders, nil
}

func (s *OrderService) publishOrderEvent(ctx context.Context, event string, order domain.Order) {
	evt, _ := json.Marshal(map[string]string{
		"event":        event,
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"status":       string(order.Status),
	})
	if pubErr := s.bus.Publish(ctx, "orders", evt); pubErr != nil {
		s.logger.WarnContext(ctx, "order_service: publish event failed",
			slog.String("order_id", order.ID),
			slog.String("error", pubErr.Error()),
		)
	}
}

// roundCents rounds a dollar amount to whole cents.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
