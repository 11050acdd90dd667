package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest spot metal prices.
type PriceCache interface {
	SetPrice(ctx context.Context, metal string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, metal string) (float64, time.Time, error)
	GetPrices(ctx context.Context, metals []string) (map[string]float64, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub event delivery between services and the
// WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
