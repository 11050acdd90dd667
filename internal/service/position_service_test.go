package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsphere/goldsphere/internal/domain"
)

func TestPortfolio(t *testing.T) {
	positions := newFakePositionStore()
	positions.positions["p1"] = domain.Position{
		ID: "p1", UserID: "u1", ProductID: "gold-bar-100g",
		Quantity: 2, PurchasePrice: 7500, MarketPrice: 7800,
		Status: domain.PositionStatusActive,
	}
	positions.positions["p2"] = domain.Position{
		ID: "p2", UserID: "u1", ProductID: "silver-coin",
		Quantity: 10, PurchasePrice: 30, MarketPrice: 28,
		Status: domain.PositionStatusActive,
	}
	// Closed positions are excluded from valuation.
	positions.positions["p3"] = domain.Position{
		ID: "p3", UserID: "u1", ProductID: "gold-bar-100g",
		Quantity: 1, PurchasePrice: 7000, MarketPrice: 7800,
		Status: domain.PositionStatusClosed,
	}

	cache := newFakePriceCache()
	cache.prices["gold"] = 2400

	svc := NewPositionService(positions, cache, testLogger())
	owner := domain.Principal{ID: "u1", Role: domain.RoleUser}

	summary, err := svc.Portfolio(context.Background(), owner, "u1", []string{"gold", "silver"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Positions)
	assert.InDelta(t, 2*7500+10*30.0, summary.CostBasis, 1e-9)
	assert.InDelta(t, 2*7800+10*28.0, summary.MarketValue, 1e-9)
	assert.InDelta(t, summary.MarketValue-summary.CostBasis, summary.UnrealizedGain, 1e-9)

	// Only cached metals appear in the spot map.
	assert.Equal(t, map[string]float64{"gold": 2400}, summary.SpotPrices)
	assert.WithinDuration(t, time.Now(), summary.AsOf, time.Minute)
}

func TestPortfolio_Ownership(t *testing.T) {
	svc := NewPositionService(newFakePositionStore(), newFakePriceCache(), testLogger())

	stranger := domain.Principal{ID: "u2", Role: domain.RoleUser}
	_, err := svc.Portfolio(context.Background(), stranger, "u1", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetPosition_Ownership(t *testing.T) {
	positions := newFakePositionStore()
	positions.positions["p1"] = domain.Position{
		ID: "p1", UserID: "u1", Status: domain.PositionStatusActive,
	}
	svc := NewPositionService(positions, newFakePriceCache(), testLogger())

	_, err := svc.GetPosition(context.Background(), domain.Principal{ID: "u1", Role: domain.RoleUser}, "p1")
	assert.NoError(t, err)

	_, err = svc.GetPosition(context.Background(), domain.Principal{ID: "u2", Role: domain.RoleUser}, "p1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.GetPosition(context.Background(), domain.Principal{ID: "u1", Role: domain.RoleUser}, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
