//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// These tests need a real PostgreSQL instance; point
// GOLDSPHERE_TEST_DATABASE_DSN at a disposable database and run with
// -tags integration.
func testClient(t *testing.T) *Client {
	t.Helper()

	dsn := os.Getenv("GOLDSPHERE_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("GOLDSPHERE_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.RunMigrations(ctx))

	_, err = client.Pool().Exec(ctx, `TRUNCATE orders, order_items, positions CASCADE`)
	require.NoError(t, err)

	return client
}

func seedStoredOrder(t *testing.T, store *OrderStore, userID string) domain.Order {
	t.Helper()

	now := time.Now().UTC()
	orderID := uuid.NewString()
	o := domain.Order{
		ID:          orderID,
		UserID:      userID,
		Type:        domain.OrderTypeBuy,
		Status:      domain.OrderStatusPending,
		OrderNumber: "GS-" + uuid.NewString(),
		Currency:    "USD",
		Subtotal:    7800,
		Taxes:       546,
		TotalAmount: 8346,
		Items: []domain.OrderItem{
			{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				ProductID:   "gold-bar-100g",
				ProductName: "Gold Bar 100g",
				Quantity:    1,
				UnitPrice:   7800,
				TotalPrice:  7800,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(context.Background(), o))
	return o
}

// advanceTo walks the order from pending to the wanted status.
func advanceTo(t *testing.T, store *OrderStore, id string, want domain.OrderStatus) {
	t.Helper()
	for {
		res, err := store.Advance(context.Background(), id)
		require.NoError(t, err)
		if res.Order.Status == want {
			return
		}
	}
}

func countPositions(t *testing.T, client *Client, userID string) int {
	t.Helper()
	var n int
	err := client.Pool().QueryRow(context.Background(),
		`SELECT COUNT(*) FROM positions WHERE user_id = $1`, userID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestOrderStoreAdvance_Lifecycle(t *testing.T) {
	client := testClient(t)
	store := NewOrderStore(client.Pool())
	ctx := context.Background()

	o := seedStoredOrder(t, store, "u-lifecycle")

	wantStatuses := []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	}
	for _, want := range wantStatuses {
		res, err := store.Advance(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, want, res.Order.Status)

		if want == domain.OrderStatusDelivered {
			require.Len(t, res.Positions, 1)
			assert.Equal(t, 7800.0, res.Positions[0].PurchasePrice)
			assert.Equal(t, 7800.0, res.Positions[0].MarketPrice)
		} else {
			assert.Empty(t, res.Positions)
		}
	}

	assert.Equal(t, 1, countPositions(t, client, "u-lifecycle"))

	// Delivered is terminal.
	_, err := store.Advance(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestOrderStoreAdvance_PositionInsertFailureRollsBack(t *testing.T) {
	client := testClient(t)
	store := NewOrderStore(client.Pool())
	ctx := context.Background()

	o := seedStoredOrder(t, store, "u-blocked")
	advanceTo(t, store, o.ID, domain.OrderStatusShipped)

	// Make every position insert for this user fail, so the delivered step
	// dies after the status update has already been written inside the
	// transaction.
	_, err := client.Pool().Exec(ctx,
		`ALTER TABLE positions ADD CONSTRAINT positions_block_insert CHECK (user_id <> 'u-blocked')`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = client.Pool().Exec(context.Background(),
			`ALTER TABLE positions DROP CONSTRAINT IF EXISTS positions_block_insert`)
	})

	_, err = store.Advance(ctx, o.ID)
	require.Error(t, err)

	// The whole transaction rolled back: the order is still shipped and no
	// position row survived.
	got, err := store.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	assert.Equal(t, 0, countPositions(t, client, "u-blocked"))
}

func TestOrderStoreAdvance_ConcurrentSingleWinner(t *testing.T) {
	client := testClient(t)
	store := NewOrderStore(client.Pool())
	ctx := context.Background()

	o := seedStoredOrder(t, store, "u-race")
	advanceTo(t, store, o.ID, domain.OrderStatusShipped)

	errs := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := store.Advance(ctx, o.ID)
			errs <- err
		}()
	}

	var wins, losses int
	for range 2 {
		err := <-errs
		if err == nil {
			wins++
			continue
		}
		losses++
		// The loser either hit the serialization/check-and-set conflict or
		// observed the winner's terminal status after the lock was released.
		assert.True(t,
			errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrInvalidState),
			"unexpected loser error: %v", err)
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	got, err := store.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, got.Status)
	assert.Equal(t, 1, countPositions(t, client, "u-race"))
}
