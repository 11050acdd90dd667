package domain

import "time"

// OrderType indicates whether this is a buy or sell order.
type OrderType string

const (
	OrderTypeBuy  OrderType = "buy"
	OrderTypeSell OrderType = "sell"
)

// OrderStatus tracks the order fulfillment lifecycle. Transitions are
// monotonic and one-directional along the fixed sequence
// pending -> confirmed -> processing -> shipped -> delivered.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// statusSequence is the total order of progression. There is no branching:
// an order never skips a step and never moves backward.
var statusSequence = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// NextOrderStatus returns the single valid successor of the given status.
// It returns ErrInvalidState when the status is terminal (delivered) or not
// part of the lifecycle at all. Advancing past the terminal status is an
// error, not a no-op.
func NextOrderStatus(s OrderStatus) (OrderStatus, error) {
	for i, cur := range statusSequence {
		if cur != s {
			continue
		}
		if i == len(statusSequence)-1 {
			return "", ErrInvalidState
		}
		return statusSequence[i+1], nil
	}
	return "", ErrInvalidState
}

// IsTerminal reports whether the status permits no further transition.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// Order is a customer's buy/sell request for one or more products, tracked
// through the fixed delivery lifecycle. Totals are computed at creation and
// immutable afterwards; only the lifecycle engine mutates Status.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Type        OrderType   `json:"type"`
	Status      OrderStatus `json:"status"`
	OrderNumber string      `json:"order_number"`
	Currency    string      `json:"currency"`
	Subtotal    float64     `json:"subtotal"`
	Taxes       float64     `json:"taxes"`
	TotalAmount float64     `json:"total_amount"`
	Items       []OrderItem `json:"items,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem is one line within an order: a product, quantity, and price
// snapshot taken at order creation time. Items have no existence outside
// their order.
type OrderItem struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
}

// Validate checks the creation-time invariants of an order. Totals use an
// epsilon comparison because they are computed from float arithmetic.
func (o Order) Validate() error {
	if o.UserID == "" {
		return ErrInvalidOrder
	}
	if o.Type != OrderTypeBuy && o.Type != OrderTypeSell {
		return ErrInvalidOrder
	}
	if len(o.Items) == 0 {
		return ErrInvalidOrder
	}
	for _, it := range o.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return ErrInvalidOrder
		}
	}
	if diff := o.Subtotal + o.Taxes - o.TotalAmount; diff > 1e-6 || diff < -1e-6 {
		return ErrInvalidOrder
	}
	return nil
}
