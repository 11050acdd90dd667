package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializePositions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	order := Order{ID: "o1", UserID: "u1"}
	items := []OrderItem{
		{ID: "i1", OrderID: "o1", ProductID: "p1", Quantity: 2, UnitPrice: 100},
		{ID: "i2", OrderID: "o1", ProductID: "p2", Quantity: 1, UnitPrice: 50},
	}

	positions, err := MaterializePositions(order, items, now)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	for i, pos := range positions {
		assert.NotEmpty(t, pos.ID)
		assert.Equal(t, "u1", pos.UserID)
		assert.Equal(t, items[i].ProductID, pos.ProductID)
		assert.Equal(t, items[i].Quantity, pos.Quantity)
		// Purchase price and initial market price are both the unit price
		// the customer was charged, never a re-fetched spot price.
		assert.Equal(t, items[i].UnitPrice, pos.PurchasePrice)
		assert.Equal(t, items[i].UnitPrice, pos.MarketPrice)
		assert.Equal(t, PositionStatusActive, pos.Status)
		assert.Equal(t, now, pos.PurchaseDate)
	}

	// Generated ids are unique.
	assert.NotEqual(t, positions[0].ID, positions[1].ID)
}

func TestMaterializePositions_NoItems(t *testing.T) {
	_, err := MaterializePositions(Order{ID: "o1"}, nil, time.Now())
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestMaterializePositions_NonPositiveQuantity(t *testing.T) {
	order := Order{ID: "o1", UserID: "u1"}
	items := []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 2, UnitPrice: 100},
		{ID: "i2", ProductID: "p2", Quantity: 0, UnitPrice: 50},
	}

	// A corrupt item fails the whole batch, not just that item.
	positions, err := MaterializePositions(order, items, time.Now())
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Nil(t, positions)
}
