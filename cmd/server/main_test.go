package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"medshop/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{AuthSecret: "short"}); err == nil {
		t.Fatalf("expected short AUTH_SECRET to be rejected")
	}
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", SeedAdminPassword: "admin"})
	if err == nil {
		t.Fatalf("expected weak seed admin password to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", SeedAdminPassword: "correct-horse"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenRepositoryRefusesMemoryInProduction(t *testing.T) {
	if _, _, err := openRepository(context.Background(), config.Config{AppEnv: "production"}, zap.NewNop()); err == nil {
		t.Fatalf("expected production without a database to fail")
	}
	repo, closers, err := openRepository(context.Background(), config.Config{AppEnv: "development", StoreID: "main-store"}, zap.NewNop())
	if err != nil || repo == nil || len(closers) != 0 {
		t.Fatalf("expected seeded memory store, got %v %v", repo, err)
	}
}

func TestOpenRepositoryMigratesSQLite(t *testing.T) {
	cfg := config.Config{SQLitePath: t.TempDir() + "/medshop.db", AutoMigrate: true}
	repo, closers, err := openRepository(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()
	if _, err := repo.ListMedicines(context.Background(), "main-store"); err != nil {
		t.Fatalf("expected migrated schema, got %v", err)
	}
}
