package cache

import (
	"context"
	"time"

	"medshop/backend/internal/domain"
)

// DashboardCache holds computed dashboard snapshots per store. A miss is
// reported as (nil, false, nil).
type DashboardCache interface {
	Get(ctx context.Context, storeID string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, storeID string, value *domain.DashboardStats, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

func dashboardKey(storeID string) string {
	return "medshop:dashboard:" + storeID
}
