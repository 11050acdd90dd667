package domain

import "time"

// Product is a catalog entry for a tradable precious-metal item. The catalog
// is read-only from this service's perspective; order creation snapshots the
// product name and price into order items.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Metal       string    `json:"metal"` // gold, silver, platinum, palladium
	WeightGrams float64   `json:"weight_grams"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	InStock     bool      `json:"in_stock"`
	UpdatedAt   time.Time `json:"updated_at"`
}
