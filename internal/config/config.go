package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port                     string
	AppEnv                   string
	LogLevel                 string
	AllowedOrigins           []string
	DatabaseURL              string
	SQLitePath               string
	AutoMigrate              bool
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	DashboardCacheTTLSeconds int
	StoreID                  string
	AuthSecret               string
	AccessTokenTTLMinutes    int
	SeedAdminUsername        string
	SeedAdminPassword        string
	ShopName                 string
	ShopAddress              string
	ShopPhone                string
	TaxRate                  decimal.Decimal
}

func Load() Config {
	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		AppEnv:                   getEnv("APP_ENV", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:           getEnvSlice("ALLOWED_ORIGINS", []string{"http://127.0.0.1:3000", "http://localhost:3000"}),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		SQLitePath:               os.Getenv("SQLITE_PATH"),
		AutoMigrate:              getEnvBool("AUTO_MIGRATE", true),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvInt("REDIS_DB", 0, 0),
		DashboardCacheTTLSeconds: getEnvInt("DASHBOARD_CACHE_TTL_SECONDS", 30, 1),
		StoreID:                  getEnv("DEFAULT_STORE_ID", "main-store"),
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		SeedAdminUsername:        strings.TrimSpace(os.Getenv("SEED_ADMIN_USERNAME")),
		SeedAdminPassword:        os.Getenv("SEED_ADMIN_PASSWORD"),
		ShopName:                 getEnv("SHOP_NAME", "MedShop Pharmacy"),
		ShopAddress:              os.Getenv("SHOP_ADDRESS"),
		ShopPhone:                os.Getenv("SHOP_PHONE"),
		TaxRate:                  getEnvDecimal("TAX_RATE", decimal.RequireFromString("0.05")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getEnvInt falls back when the value is missing, malformed or below min.
func getEnvInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func getEnvBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}

func getEnvSlice(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	val, err := decimal.NewFromString(raw)
	if err != nil || val.IsNegative() || val.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fallback
	}
	return val
}
