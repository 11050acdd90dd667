package domain

import "time"

// PositionStatus tracks whether a position is active or closed.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
)

// Position records owned quantity of a product. A position is created exactly
// once, as a side effect of its order reaching the terminal delivered status;
// it carries no foreign key back to the order. MarketPrice is mutable and
// refreshed externally by the market data service.
type Position struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ProductID      string         `json:"product_id"`
	PortfolioID    *string        `json:"portfolio_id,omitempty"`
	PurchaseDate   time.Time      `json:"purchase_date"`
	PurchasePrice  float64        `json:"purchase_price"`
	MarketPrice    float64        `json:"market_price"`
	Quantity       float64        `json:"quantity"`
	Status         PositionStatus `json:"status"`
	CustodyService *string        `json:"custody_service,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MarketValue returns the position's value at the current market price.
func (p Position) MarketValue() float64 {
	return p.MarketPrice * p.Quantity
}

// UnrealizedGain returns the gain over the purchase price.
func (p Position) UnrealizedGain() float64 {
	return (p.MarketPrice - p.PurchasePrice) * p.Quantity
}
