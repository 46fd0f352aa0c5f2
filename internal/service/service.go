package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"medshop/backend/internal/billing"
	"medshop/backend/internal/cache"
	"medshop/backend/internal/domain"
	"medshop/backend/internal/inventory"
	"medshop/backend/internal/metrics"
	"medshop/backend/internal/store"
	"medshop/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	StoreID  string
	TaxRate  decimal.Decimal
	CacheTTL time.Duration
	Settings domain.Settings
	// Now is the clock used for expiry checks and dashboards. Defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	repo     store.Repository
	cache    cache.DashboardCache
	log      *zap.Logger
	storeID  string
	taxRate  decimal.Decimal
	cacheTTL time.Duration
	settings domain.Settings
	now      func() time.Time
}

func New(repo store.Repository, dashboardCache cache.DashboardCache, logger *zap.Logger, opts Options) *Service {
	if opts.StoreID == "" {
		opts.StoreID = "main-store"
	}
	if opts.TaxRate.IsZero() {
		opts.TaxRate = billing.DefaultTaxRate
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if dashboardCache == nil {
		dashboardCache = cache.NoopDashboardCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Settings.TaxRate = opts.TaxRate.String()

	return &Service{
		repo:     repo,
		cache:    dashboardCache,
		log:      logger.Named("service"),
		storeID:  opts.StoreID,
		taxRate:  opts.TaxRate,
		cacheTTL: opts.CacheTTL,
		settings: opts.Settings,
		now:      opts.Now,
	}
}

func (s *Service) StoreID() string {
	return s.storeID
}

func (s *Service) Settings() domain.Settings {
	return s.settings
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	day := inventory.Day(s.now())
	if date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return nil, store.Invalid("date must be YYYY-MM-DD")
		}
		day = parsed
	}
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, s.storeID, day, day.AddDate(0, 0, 1), limit)
}

func (s *Service) today() time.Time {
	return inventory.Day(s.now())
}

// retryOnConflict runs fn again once when it lost a stock race.
func (s *Service) retryOnConflict(op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, store.ErrConflict) {
		return err
	}
	metrics.StockConflicts.Inc()
	s.log.Warn("stock conflict, retrying", zap.String("op", op), zap.Error(err))
	err = fn()
	if errors.Is(err, store.ErrConflict) {
		metrics.StockConflicts.Inc()
	}
	return err
}

func (s *Service) invalidateDashboard(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, s.storeID); err != nil {
		s.log.Warn("dashboard cache invalidation failed", zap.String("store_id", s.storeID), zap.Error(err))
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		StoreID:    s.storeID,
		Actor:      fmt.Sprintf("%s (%s)", actor.Username, actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

// recordSaleOutcome feeds the allocation counters.
func recordSaleOutcome(units int, err error) {
	switch {
	case err == nil:
		metrics.SalesCommitted.Inc()
		metrics.UnitsAllocated.Add(float64(units))
	case errors.Is(err, store.ErrInsufficientStock):
		metrics.InsufficientStock.Inc()
	}
}

// normalizePage applies the list defaults: page from 1, size 50, at most 200.
func normalizePage(page int, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	if size > 200 {
		size = 200
	}
	return page, size
}

func paginate[T any](items []T, page int, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}
