package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const latestPriceKeyPrefix = "price:latest:"

// PriceCache mirrors the latest committed price per symbol in Redis so
// the read path can skip the database. The price store remains the source
// of truth; cache misses fall through to it.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a price cache. ttl bounds staleness if the refresh job
// stops writing through.
func New(client *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PriceCache{client: client, ttl: ttl}
}

// SetLatest stores the latest price for a symbol
func (c *PriceCache) SetLatest(ctx context.Context, symbol string, price decimal.Decimal) error {
	err := c.client.Set(ctx, latestPriceKeyPrefix+symbol, price.String(), c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", symbol, err)
	}
	return nil
}

// GetLatest returns the cached price for a symbol. The second return is
// false on a miss.
func (c *PriceCache) GetLatest(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, latestPriceKeyPrefix+symbol).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to read cached price for %s: %w", symbol, err)
	}

	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached price for %s: %w", symbol, err)
	}
	return price, true, nil
}
