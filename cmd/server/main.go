package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medshop/backend/internal/cache"
	"medshop/backend/internal/config"
	"medshop/backend/internal/domain"
	"medshop/backend/internal/httpapi"
	"medshop/backend/internal/logger"
	"medshop/backend/internal/service"
	"medshop/backend/internal/store"
	"medshop/backend/internal/store/memory"
	pgstore "medshop/backend/internal/store/postgres"
	sqlitestore "medshop/backend/internal/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not read .env: %v", err)
	}

	cfg := config.Load()
	zlog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	if err := validateSecurityConfig(cfg); err != nil {
		zlog.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openRepository(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("repository unavailable", zap.Error(err))
	}

	dashboardCache := cache.DashboardCache(cache.NoopDashboardCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			zlog.Warn("redis unavailable, dashboard cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = redisCache.Close()
		} else {
			dashboardCache = redisCache
			closers = append(closers, redisCache.Close)
			zlog.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zlog.Info("cache: noop")
	}

	svc := service.New(repo, dashboardCache, zlog, service.Options{
		StoreID:  cfg.StoreID,
		TaxRate:  cfg.TaxRate,
		CacheTTL: time.Duration(cfg.DashboardCacheTTLSeconds) * time.Second,
		Settings: domain.Settings{
			ShopName:    cfg.ShopName,
			ShopAddress: cfg.ShopAddress,
			ShopPhone:   cfg.ShopPhone,
		},
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if cfg.SeedAdminUsername != "" && cfg.SeedAdminPassword != "" {
		created, err := auth.EnsureAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword)
		if err != nil {
			zlog.Fatal("seed admin account", zap.Error(err))
		}
		if created {
			zlog.Info("seeded admin account", zap.String("username", cfg.SeedAdminUsername))
		}
	}
	api := httpapi.New(svc, auth, zlog, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("medshop backend listening", zap.String("addr", cfg.Address()), zap.String("store_id", cfg.StoreID))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Error("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

// openRepository picks postgres, then sqlite, then the seeded in-memory store.
// A configured database that cannot be reached is fatal; there is no silent
// fallback to memory.
func openRepository(ctx context.Context, cfg config.Config, zlog *zap.Logger) (store.Repository, []func() error, error) {
	closers := make([]func() error, 0, 2)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		zlog.Info("repository: postgres", zap.Bool("auto_migrate", cfg.AutoMigrate))
		return pg, closers, nil
	case cfg.SQLitePath != "":
		lite, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		closers = append(closers, lite.Close)
		if cfg.AutoMigrate {
			if err := lite.Migrate(ctx); err != nil {
				_ = lite.Close()
				return nil, nil, fmt.Errorf("sqlite migrate: %w", err)
			}
		}
		zlog.Info("repository: sqlite", zap.String("path", cfg.SQLitePath))
		return lite, closers, nil
	default:
		if cfg.IsProduction() {
			return nil, nil, errors.New("DATABASE_URL or SQLITE_PATH must be set in production")
		}
		mem := memory.NewSeeded(cfg.StoreID)
		if mem.UsesDevCredentials() {
			zlog.Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
		}
		zlog.Info("repository: in-memory demo data", zap.String("store_id", cfg.StoreID))
		return mem, closers, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}
