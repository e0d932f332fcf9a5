package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fuelbook/backend/internal/domain"
)

const defaultPrefix = "fuelbook:report:"

// RedisReportCache versions keys by a per-pump generation counter, so invalidating a
// pump is a single INCR and stale entries age out through their TTL.
type RedisReportCache struct {
	client *redis.Client
	prefix string
}

func NewRedisReportCache(client *redis.Client, prefix string) *RedisReportCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisReportCache{client: client, prefix: prefix}
}

func (c *RedisReportCache) Get(ctx context.Context, pumpID string, key string) (*domain.CashReconciliationReport, bool, error) {
	dataKey, err := c.dataKey(ctx, pumpID, key)
	if err != nil {
		return nil, false, err
	}
	val, err := c.client.Get(ctx, dataKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var report domain.CashReconciliationReport
	if err := json.Unmarshal([]byte(val), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, pumpID string, key string, value *domain.CashReconciliationReport, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	dataKey, err := c.dataKey(ctx, pumpID, key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dataKey, payload, ttl).Err()
}

func (c *RedisReportCache) Invalidate(ctx context.Context, pumpID string) error {
	return c.client.Incr(ctx, c.generationKey(pumpID)).Err()
}

func (c *RedisReportCache) generationKey(pumpID string) string {
	return c.prefix + "gen:" + pumpID
}

func (c *RedisReportCache) dataKey(ctx context.Context, pumpID string, key string) (string, error) {
	gen, err := c.client.Get(ctx, c.generationKey(pumpID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s%s:%d:%s", c.prefix, pumpID, gen, key), nil
}
