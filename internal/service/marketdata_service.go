package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goldsphere/goldsphere/internal/domain"
	"github.com/goldsphere/goldsphere/internal/metrics"
	"github.com/goldsphere/goldsphere/internal/platform/metalprices"
)

// gramsPerTroyOunce converts feed quotes (USD per troy ounce) into per-gram
// prices for product revaluation.
const gramsPerTroyOunce = 31.1034768

// pollLockKey serializes polling across instances; only the lock holder
// talks to the upstream feed.
const pollLockKey = "marketdata:poll"

// PriceFeed is the upstream spot price source.
type PriceFeed interface {
	GetSpotPrices(ctx context.Context, metals []string) ([]metalprices.SpotQuote, error)
}

// MarketDataService polls the spot price feed on an interval, caches the
// quotes, revalues active positions, and publishes price ticks on the bus.
type MarketDataService struct {
	feed      PriceFeed
	cache     domain.PriceCache
	products  domain.ProductStore
	positions domain.PositionStore
	locks     domain.LockManager
	bus       domain.SignalBus
	metrics   *metrics.Metrics
	interval  time.Duration
	logger    *slog.Logger
}

// NewMarketDataService creates a MarketDataService.
func NewMarketDataService(
	feed PriceFeed,
	cache domain.PriceCache,
	products domain.ProductStore,
	positions domain.PositionStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	m *metrics.Metrics,
	interval time.Duration,
	logger *slog.Logger,
) *MarketDataService {
	return &MarketDataService{
		feed:      feed,
		cache:     cache,
		products:  products,
		positions: positions,
		locks:     locks,
		bus:       bus,
		metrics:   m,
		interval:  interval,
		logger:    logger,
	}
}

// Run polls until the context is cancelled. An immediate first poll warms the
// cache before the first tick.
func (s *MarketDataService) Run(ctx context.Context) error {
	if err := s.Poll(ctx); err != nil {
		s.logger.WarnContext(ctx, "marketdata: initial poll failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				s.logger.WarnContext(ctx, "marketdata: poll failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Poll fetches spot quotes once, under the distributed poll lock. When
// another instance holds the lock the poll is skipped without error.
func (s *MarketDataService) Poll(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, pollLockKey, s.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil
		}
		return fmt.Errorf("marketdata: acquire poll lock: %w", err)
	}
	defer unlock()

	s.metrics.SpotPollsTotal.Inc()

	quotes, err := s.feed.GetSpotPrices(ctx, metalprices.Metals)
	if err != nil {
		s.metrics.SpotPollErrors.Inc()
		return fmt.Errorf("marketdata: fetch spot prices: %w", err)
	}

	for _, q := range quotes {
		if err := s.cache.SetPrice(ctx, q.Metal, q.Price, q.Timestamp); err != nil {
			s.logger.WarnContext(ctx, "marketdata: cache spot price failed",
				slog.String("metal", q.Metal),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.metrics.SpotPrice.WithLabelValues(q.Metal).Set(q.Price)

		evt, _ := json.Marshal(map[string]any{
			"event": "spot_price",
			"metal": q.Metal,
			"price": q.Price,
			"ts":    q.Timestamp.Unix(),
		})
		if pubErr := s.bus.Publish(ctx, "prices", evt); pubErr != nil {
			s.logger.WarnContext(ctx, "marketdata: publish price tick failed",
				slog.String("metal", q.Metal),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	if err := s.revaluePositions(ctx, quotes); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "marketdata: poll complete",
		slog.Int("quotes", len(quotes)),
	)
	return nil
}

// revaluePositions recomputes each product's market price from its metal's
// spot quote and weight, then pushes the price onto every active position
// holding that product.
func (s *MarketDataService) revaluePositions(ctx context.Context, quotes []metalprices.SpotQuote) error {
	spotByMetal := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		spotByMetal[q.Metal] = q.Price
	}

	products, err := s.products.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("marketdata: list products: %w", err)
	}

	for _, product := range products {
		spot, ok := spotByMetal[product.Metal]
		if !ok {
			continue
		}
		price := spot / gramsPerTroyOunce * product.WeightGrams

		touched, err := s.positions.UpdateMarketPrice(ctx, product.ID, price)
		if err != nil {
			s.logger.WarnContext(ctx, "marketdata: revalue positions failed",
				slog.String("product_id", product.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if touched > 0 {
			s.metrics.PositionsRevalued.Add(float64(touched))
		}
	}

	return nil
}
