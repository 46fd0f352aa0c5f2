package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medshop/backend/internal/domain"
)

type RedisDashboardCache struct {
	client redis.UniversalClient
}

func NewRedisDashboardCache(addr string, password string, db int) *RedisDashboardCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDashboardCache{client: client}
}

// NewRedisDashboardCacheFromClient wraps an existing client.
func NewRedisDashboardCacheFromClient(client redis.UniversalClient) *RedisDashboardCache {
	return &RedisDashboardCache{client: client}
}

func (c *RedisDashboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDashboardCache) Close() error {
	return c.client.Close()
}

func (c *RedisDashboardCache) Get(ctx context.Context, storeID string) (*domain.DashboardStats, bool, error) {
	val, err := c.client.Get(ctx, dashboardKey(storeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

func (c *RedisDashboardCache) Set(ctx context.Context, storeID string, value *domain.DashboardStats, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dashboardKey(storeID), payload, ttl).Err()
}

func (c *RedisDashboardCache) Invalidate(ctx context.Context, storeID string) error {
	return c.client.Del(ctx, dashboardKey(storeID)).Err()
}
