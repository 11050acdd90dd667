package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaterializePositions builds exactly one Position per OrderItem for an order
// entering the delivered status. The item's unit price at order creation is
// used as both purchase price and initial market price: delivery does not
// re-fetch the current spot price, the customer owns the metal at the price
// they were charged.
//
// An item with a non-positive persisted quantity is a data-integrity error;
// the whole batch fails rather than silently skipping the item. The returned
// positions are not considered created until the surrounding transaction
// commits.
func MaterializePositions(order Order, items []OrderItem, now time.Time) ([]Position, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("materialize order %s: no items: %w", order.ID, ErrInvalidOrder)
	}

	positions := make([]Position, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("materialize order %s: item %s has quantity %v: %w",
				order.ID, it.ID, it.Quantity, ErrInvalidOrder)
		}

		positions = append(positions, Position{
			ID:            uuid.NewString(),
			UserID:        order.UserID,
			ProductID:     it.ProductID,
			PurchaseDate:  now,
			PurchasePrice: it.UnitPrice,
			MarketPrice:   it.UnitPrice,
			Quantity:      it.Quantity,
			Status:        PositionStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return positions, nil
}
