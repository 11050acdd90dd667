package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextOrderStatus_Sequence(t *testing.T) {
	tests := []struct {
		current OrderStatus
		next    OrderStatus
	}{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusConfirmed, OrderStatusProcessing},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
	}

	for _, tt := range tests {
		t.Run(string(tt.current), func(t *testing.T) {
			next, err := NextOrderStatus(tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.next, next)
		})
	}
}

func TestNextOrderStatus_TerminalRejected(t *testing.T) {
	_, err := NextOrderStatus(OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNextOrderStatus_UnknownRejected(t *testing.T) {
	_, err := NextOrderStatus(OrderStatus("cancelled"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestNextOrderStatus_Monotonic(t *testing.T) {
	// Walking the full sequence from pending visits every status exactly
	// once, in order, and then refuses to continue.
	status := OrderStatusPending
	var visited []OrderStatus

	for {
		next, err := NextOrderStatus(status)
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidState)
			break
		}
		visited = append(visited, next)
		status = next
	}

	assert.Equal(t, []OrderStatus{
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
	}, visited)
	assert.True(t, status.IsTerminal())
}

func TestOrderValidate(t *testing.T) {
	valid := Order{
		UserID:      "u1",
		Type:        OrderTypeBuy,
		Subtotal:    250,
		Taxes:       25,
		TotalAmount: 275,
		Items: []OrderItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: 100},
			{ProductID: "p2", Quantity: 1, UnitPrice: 50},
		},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Order)
	}{
		{"missing user", func(o *Order) { o.UserID = "" }},
		{"bad type", func(o *Order) { o.Type = "short" }},
		{"no items", func(o *Order) { o.Items = nil }},
		{"zero quantity", func(o *Order) { o.Items[0].Quantity = 0 }},
		{"negative price", func(o *Order) { o.Items[0].UnitPrice = -1 }},
		{"totals mismatch", func(o *Order) { o.TotalAmount = 300 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			o.Items = append([]OrderItem(nil), valid.Items...)
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)
		})
	}
}
