package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/platform/metalprices"
)

type fakeFeed struct {
	quotes []metalprices.SpotQuote
	err    error
	calls  int
}

func (f *fakeFeed) GetSpotPrices(_ context.Context, _ []string) ([]metalprices.SpotQuote, error) {
	f.calls++
	return f.quotes, f.err
}

type fakePriceCache struct {
	prices map[string]float64
}

func newFakePriceCache() *fakePriceCache {
	return &fakePriceCache{prices: map[string]float64{}}
}

func (f *fakePriceCache) SetPrice(_ context.Context, metal string, price float64, _ time.Time) error {
	f.prices[metal] = price
	return nil
}

func (f *fakePriceCache) GetPrice(_ context.Context, metal string) (float64, time.Time, error) {
	p, ok := f.prices[metal]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now(), nil
}

func (f *fakePriceCache) GetPrices(_ context.Context, metals []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, m := range metals {
		if p, ok := f.prices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

type fakePositionStore struct {
	positions map[string]domain.Position
	repriced  map[string]float64
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{
		positions: map[string]domain.Position{},
		repriced:  map[string]float64{},
	}
}

func (f *fakePositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	p, ok := f.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePositionStore) ListActive(_ context.Context, userID string) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if p.UserID == userID && p.Status == domain.PositionStatusActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositionStore) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePositionStore) UpdateMarketPrice(_ context.Context, productID string, price float64) (int64, error) {
	f.repriced[productID] = price
	var touched int64
	for id, p := range f.positions {
		if p.ProductID == productID && p.Status == domain.PositionStatusActive {
			p.MarketPrice = price
			f.positions[id] = p
			touched++
		}
	}
	return touched, nil
}

type fakeLocks struct {
	held bool
}

func (f *fakeLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

func TestMarketDataPoll(t *testing.T) {
	now := time.Now().UTC()
	feed := &fakeFeed{quotes: []metalprices.SpotQuote{
		{Metal: "gold", Price: 2400, Timestamp: now},
		{Metal: "silver", Price: 30, Timestamp: now},
	}}
	cache := newFakePriceCache()
	positions := newFakePositionStore()
	positions.positions["pos1"] = domain.Position{
		ID: "pos1", UserID: "u1", ProductID: "gold-bar-100g",
		Quantity: 1, PurchasePrice: 7500, MarketPrice: 7500,
		Status: domain.PositionStatusActive,
	}
	products := &fakeProductStore{products: map[string]domain.Product{
		"gold-bar-100g": {ID: "gold-bar-100g", Metal: "gold", WeightGrams: 100},
	}}
	bus := newFakeBus()

	svc := NewMarketDataService(feed, cache, products, positions, &fakeLocks{}, bus,
		newTestMetrics(), time.Minute, testLogger())

	require.NoError(t, svc.Poll(context.Background()))

	// Quotes cached and ticked out on the bus.
	assert.Equal(t, 2400.0, cache.prices["gold"])
	assert.Equal(t, 30.0, cache.prices["silver"])
	assert.Equal(t, 2, bus.published["prices"])

	// 100g of gold at 2400/ozt.
	want := 2400.0 / 31.1034768 * 100
	assert.InDelta(t, want, positions.repriced["gold-bar-100g"], 1e-9)
	assert.InDelta(t, want, positions.positions["pos1"].MarketPrice, 1e-9)
}

func TestMarketDataPoll_LockHeldSkips(t *testing.T) {
	feed := &fakeFeed{}
	svc := NewMarketDataService(feed, newFakePriceCache(), &fakeProductStore{}, newFakePositionStore(),
		&fakeLocks{held: true}, newFakeBus(), newTestMetrics(), time.Minute, testLogger())

	require.NoError(t, svc.Poll(context.Background()))
	assert.Zero(t, feed.calls)
}
