package service

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/metrics"
)

const dashboardListSize = 10

// Dashboard returns the store overview. Snapshots are cached per store and
// dropped on every mutation, so a cache failure only costs a recompute.
func (s *Service) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	cached, ok, err := s.cache.Get(ctx, s.storeID)
	switch {
	case err != nil:
		metrics.DashboardCacheHits.WithLabelValues("error").Inc()
		s.log.Warn("dashboard cache read failed", zap.String("store_id", s.storeID), zap.Error(err))
	case ok:
		metrics.DashboardCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.DashboardCacheHits.WithLabelValues("miss").Inc()
	}

	stats, err := s.computeDashboard(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, s.storeID, stats, s.cacheTTL); err != nil {
		s.log.Warn("dashboard cache write failed", zap.String("store_id", s.storeID), zap.Error(err))
	}
	return stats, nil
}

func (s *Service) computeDashboard(ctx context.Context) (*domain.DashboardStats, error) {
	summaries, err := s.summarizeAll(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSales(ctx, s.storeID, domain.SaleFilter{})
	if err != nil {
		return nil, err
	}
	customers, err := s.repo.ListCustomers(ctx, s.storeID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.repo.ListExpenses(ctx, s.storeID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	today := s.today()
	stats := &domain.DashboardStats{
		StoreID:            s.storeID,
		GeneratedAt:        now,
		TotalSales:         decimal.Zero,
		TodaySales:         decimal.Zero,
		OutstandingBalance: decimal.Zero,
		TotalCustomers:     len(customers),
		TotalMedicines:     len(summaries),
	}

	firstDay := today.AddDate(0, 0, -6)
	daily := make(map[string]*domain.DailySales, 7)
	stats.SalesLast7Days = make([]domain.DailySales, 0, 7)
	for day := firstDay; !day.After(today); day = day.AddDate(0, 0, 1) {
		stats.SalesLast7Days = append(stats.SalesLast7Days, domain.DailySales{Date: day.Format("2006-01-02"), Total: decimal.Zero})
	}
	for i := range stats.SalesLast7Days {
		daily[stats.SalesLast7Days[i].Date] = &stats.SalesLast7Days[i]
	}

	for _, sale := range sales {
		stats.TotalSales = stats.TotalSales.Add(sale.Total)
		stats.TotalBills++
		if !sale.CreatedAt.Before(today) {
			stats.TodaySales = stats.TodaySales.Add(sale.Total)
			stats.TodayBills++
		}
		if bucket, ok := daily[sale.CreatedAt.UTC().Format("2006-01-02")]; ok {
			bucket.Total = bucket.Total.Add(sale.Total)
			bucket.Bills++
		}
	}

	for _, customer := range customers {
		if customer.Balance.IsPositive() {
			stats.OutstandingBalance = stats.OutstandingBalance.Add(customer.Balance)
		}
	}

	expenseStats := summarizeExpenses(expenses, today)
	stats.TotalExpenses = expenseStats.Total
	stats.MonthExpenses = expenseStats.ThisMonth

	var lowStock, nearExpiry []domain.StockSummary
	categories := make(map[string]*domain.CategoryStock)
	for _, summary := range summaries {
		if summary.IsLowStock {
			lowStock = append(lowStock, summary)
		}
		if summary.IsNearExpiry {
			nearExpiry = append(nearExpiry, summary)
		}
		if summary.IsExpired {
			stats.ExpiredCount++
		}

		name := summary.Medicine.Category
		if name == "" {
			name = "Uncategorized"
		}
		bucket, ok := categories[name]
		if !ok {
			bucket = &domain.CategoryStock{Category: name}
			categories[name] = bucket
		}
		bucket.Medicines++
		bucket.Stock += summary.TotalStock
	}

	slices.SortStableFunc(lowStock, func(a, b domain.StockSummary) int {
		return a.TotalStock - b.TotalStock
	})
	slices.SortStableFunc(nearExpiry, func(a, b domain.StockSummary) int {
		return a.NearestExpiry.Compare(*b.NearestExpiry)
	})
	stats.LowStockCount = len(lowStock)
	stats.NearExpiryCount = len(nearExpiry)
	stats.LowStock = firstN(lowStock, dashboardListSize)
	stats.NearExpiry = firstN(nearExpiry, dashboardListSize)

	stats.Categories = make([]domain.CategoryStock, 0, len(categories))
	for _, bucket := range categories {
		stats.Categories = append(stats.Categories, *bucket)
	}
	slices.SortFunc(stats.Categories, func(a, b domain.CategoryStock) int {
		return strings.Compare(a.Category, b.Category)
	})
	return stats, nil
}

func firstN(items []domain.StockSummary, n int) []domain.StockSummary {
	if len(items) > n {
		items = items[:n]
	}
	if items == nil {
		return []domain.StockSummary{}
	}
	return items
}
