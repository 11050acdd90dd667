package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goldsphere/goldsphere/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes.
// Each metal's spot price is stored as a hash at key "spot:{metal}" with
// fields "price" and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func spotKey(metal string) string {
	return "spot:" + metal
}

// SetPrice stores the latest spot price and timestamp for a metal.
func (pc *PriceCache) SetPrice(ctx context.Context, metal string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, spotKey(metal), fields).Err(); err != nil {
		return fmt.Errorf("redis: set spot price %s: %w", metal, err)
	}
	return nil
}

// GetPrice retrieves the latest spot price and timestamp for a metal.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, metal string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, spotKey(metal)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get spot price %s: %w", metal, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse spot price %s: %w", metal, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse spot ts %s: %w", metal, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest spot prices for multiple metals using a
// pipeline. Metals whose keys do not exist are silently omitted from the
// result map.
func (pc *PriceCache) GetPrices(ctx context.Context, metals []string) (map[string]float64, error) {
	if len(metals) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(metals))
	for _, m := range metals {
		cmds[m] = pipe.HGetAll(ctx, spotKey(m))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get spot prices pipeline: %w", err)
	}

	result := make(map[string]float64, len(metals))
	for m, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		priceStr, ok := vals["price"]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		result[m] = price
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
