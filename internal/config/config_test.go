package config

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("SEED_ADMIN_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.SeedAdminPassword != "" {
		t.Fatalf("expected empty SEED_ADMIN_PASSWORD when unset, got %q", cfg.SeedAdminPassword)
	}
}

func TestLoadParsesListsAndFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DASHBOARD_CACHE_TTL_SECONDS", "0")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "abc")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("TAX_RATE", "0.12")

	cfg := Load()
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Fatalf("expected %v, got %v", want, cfg.AllowedOrigins)
	}
	if cfg.DashboardCacheTTLSeconds != 30 || cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallbacks, got ttl=%d token=%d", cfg.DashboardCacheTTLSeconds, cfg.AccessTokenTTLMinutes)
	}
	if cfg.AutoMigrate {
		t.Fatalf("expected AUTO_MIGRATE=false to be honored")
	}
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.12")) {
		t.Fatalf("expected tax rate 0.12, got %s", cfg.TaxRate)
	}
}

func TestLoadRejectsOutOfRangeTaxRate(t *testing.T) {
	t.Setenv("TAX_RATE", "5")

	cfg := Load()
	if !cfg.TaxRate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("expected default tax rate, got %s", cfg.TaxRate)
	}
}
