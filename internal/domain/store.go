package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AdvanceResult is the outcome of a single lifecycle step. Positions is
// non-empty only when the step landed on the terminal delivered status.
type AdvanceResult struct {
	Order     Order
	Positions []Position
}

// OrderStore persists orders and their items, and drives the lifecycle
// transaction.
type OrderStore interface {
	// Create inserts the order together with all of its items atomically.
	Create(ctx context.Context, order Order) error

	// GetByID returns the order with its items loaded.
	GetByID(ctx context.Context, id string) (Order, error)

	// ListByUser returns the user's orders (items not loaded).
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Order, error)

	// Advance moves the order one step along the lifecycle inside a single
	// transaction, holding a row lock on the order for its duration. When the
	// step lands on the delivered status it also inserts one position per
	// order item in the same transaction.
	//
	// Errors: ErrNotFound if the order does not exist, ErrInvalidState if the
	// order is already delivered, ErrConflict if a concurrent advance won the
	// race or the transaction failed to serialize.
	Advance(ctx context.Context, id string) (AdvanceResult, error)

	// ListDeliveredBefore returns delivered orders last updated strictly
	// before the cutoff, for archival.
	ListDeliveredBefore(ctx context.Context, before time.Time) ([]Order, error)
}

// PositionStore persists ownership positions.
type PositionStore interface {
	GetByID(ctx context.Context, id string) (Position, error)
	ListActive(ctx context.Context, userID string) ([]Position, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Position, error)
	// UpdateMarketPrice refreshes the mutable market price of every active
	// position holding the given product.
	UpdateMarketPrice(ctx context.Context, productID string, price float64) (int64, error)
}

// ProductStore reads the product catalog.
type ProductStore interface {
	GetByID(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, opts ListOpts) ([]Product, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
