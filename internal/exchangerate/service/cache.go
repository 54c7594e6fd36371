package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/importduty/internal/cache"
	"github.com/smallbiznis/importduty/internal/exchangerate/domain"
)

const ratesCacheKey = "importduty:rates:latest"

// rateCache keeps the latest rates in redis when a client is configured and
// in process memory otherwise.
type rateCache struct {
	client *redis.Client
	local  cache.Cache[string, domain.Rates]
}

func NewRateCache(client *redis.Client) domain.RateCache {
	return &rateCache{
		client: client,
		local:  cache.NewTTLCache[string, domain.Rates](),
	}
}

func (c *rateCache) Get(ctx context.Context) (domain.Rates, bool, error) {
	if c.client == nil {
		rates, ok := c.local.Get(ratesCacheKey)
		return rates, ok, nil
	}

	raw, err := c.client.Get(ctx, ratesCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rates domain.Rates
	if err := json.Unmarshal(raw, &rates); err != nil {
		return nil, false, err
	}
	return rates, true, nil
}

func (c *rateCache) Set(ctx context.Context, rates domain.Rates, ttl time.Duration) error {
	if c.client == nil {
		c.local.Set(ratesCacheKey, rates, ttl)
		return nil
	}
	payload, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ratesCacheKey, payload, ttl).Err()
}
