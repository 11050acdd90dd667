package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// PortfolioSummary is a point-in-time valuation of a user's active holdings.
type PortfolioSummary struct {
	UserID         string             `json:"user_id"`
	Positions      int                `json:"positions"`
	CostBasis      float64            `json:"cost_basis"`
	MarketValue    float64            `json:"market_value"`
	UnrealizedGain float64            `json:"unrealized_gain"`
	SpotPrices     map[string]float64 `json:"spot_prices"`
	AsOf           time.Time          `json:"as_of"`
}

// PositionService reads ownership positions and values portfolios.
type PositionService struct {
	positions domain.PositionStore
	prices    domain.PriceCache
	logger    *slog.Logger
}

// NewPositionService creates a PositionService.
func NewPositionService(positions domain.PositionStore, prices domain.PriceCache, logger *slog.Logger) *PositionService {
	return &PositionService{
		positions: positions,
		prices:    prices,
		logger:    logger,
	}
}

// GetPosition retrieves a single position, enforcing ownership.
func (s *PositionService) GetPosition(ctx context.Context, p domain.Principal, id string) (domain.Position, error) {
	pos, err := s.positions.GetByID(ctx, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get position %q: %w", id, err)
	}
	if !p.CanAccessUser(pos.UserID) {
		return domain.Position{}, domain.ErrUnauthorized
	}
	return pos, nil
}

// ListPositions returns the user's positions, enforcing ownership.
func (s *PositionService) ListPositions(ctx context.Context, p domain.Principal, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	if !p.CanAccessUser(userID) {
		return nil, domain.ErrUnauthorized
	}
	positions, err := s.positions.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("position_service: list positions for %q: %w", userID, err)
	}
	return positions, nil
}

// Portfolio values the user's active positions at their current market
// prices and attaches the latest cached spot prices for context. Spot prices
// missing from the cache are simply omitted; valuation uses the per-position
// market price, which the market data poller keeps fresh.
func (s *PositionService) Portfolio(ctx context.Context, p domain.Principal, userID string, metals []string) (PortfolioSummary, error) {
	if !p.CanAccessUser(userID) {
		return PortfolioSummary{}, domain.ErrUnauthorized
	}

	positions, err := s.positions.ListActive(ctx, userID)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("position_service: list active for %q: %w", userID, err)
	}

	summary := PortfolioSummary{
		UserID:    userID,
		Positions: len(positions),
		AsOf:      time.Now().UTC(),
	}
	for _, pos := range positions {
		summary.CostBasis += pos.PurchasePrice * pos.Quantity
		summary.MarketValue += pos.MarketValue()
		summary.UnrealizedGain += pos.UnrealizedGain()
	}

	spot, err := s.prices.GetPrices(ctx, metals)
	if err != nil {
		// Valuation still stands without spot context.
		s.logger.WarnContext(ctx, "position_service: spot prices unavailable",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		spot = map[string]float64{}
	}
	summary.SpotPrices = spot

	return summary, nil
}
