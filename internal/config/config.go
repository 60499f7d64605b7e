package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseDriver string
	DatabaseURL    string

	// JWT (tokens are minted by the identity provider)
	JWTSecret string

	// Storage
	StoragePath       string
	StorageBaseURL    string
	ImageMaxDimension int // longest side of stored JPEG/PNG scans

	// Background Workers
	WorkerCount       int
	ReconcileInterval time.Duration

	// HTTP edge
	AllowedOrigins []string
	RateLimit      string

	// Sentry
	SentryDSN string

	// Approval emails (Resend)
	ResendAPIKey   string
	FromEmail      string
	ApproverEmails []string
	AppURL         string

	// Balance engine
	BalanceMaxRetries int
	DefaultCurrency   string

	// Invoice registry
	RegistryURL      string
	RegistryAPIKey   string
	RegistryTimeout  time.Duration
	RegistryTaxRates []decimal.Decimal
}

// Load reads configuration from the environment, after loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("STORAGE_PATH", "./storage")
	v.SetDefault("STORAGE_BASE_URL", "/files")
	v.SetDefault("IMAGE_MAX_DIMENSION", 2480)
	v.SetDefault("WORKER_COUNT", 5)
	v.SetDefault("RECONCILE_INTERVAL", "6h")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("FROM_EMAIL", "")
	v.SetDefault("APPROVER_EMAILS", "")
	v.SetDefault("APP_URL", "")
	v.SetDefault("BALANCE_MAX_RETRIES", 5)
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("REGISTRY_URL", "")
	v.SetDefault("REGISTRY_API_KEY", "")
	v.SetDefault("REGISTRY_TIMEOUT", "10s")
	v.SetDefault("REGISTRY_TAX_RATES", "0,1,3,6,9,13")
	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetString("PORT"),
		Environment:       v.GetString("ENVIRONMENT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DatabaseDriver:    strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		StoragePath:       v.GetString("STORAGE_PATH"),
		StorageBaseURL:    strings.TrimRight(v.GetString("STORAGE_BASE_URL"), "/"),
		ImageMaxDimension: v.GetInt("IMAGE_MAX_DIMENSION"),
		WorkerCount:       v.GetInt("WORKER_COUNT"),
		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
		RateLimit:         v.GetString("RATE_LIMIT"),
		SentryDSN:         v.GetString("SENTRY_DSN"),
		ResendAPIKey:      v.GetString("RESEND_API_KEY"),
		FromEmail:         v.GetString("FROM_EMAIL"),
		ApproverEmails:    splitList(v.GetString("APPROVER_EMAILS")),
		AppURL:            v.GetString("APP_URL"),
		BalanceMaxRetries: v.GetInt("BALANCE_MAX_RETRIES"),
		DefaultCurrency:   strings.ToUpper(v.GetString("DEFAULT_CURRENCY")),
		RegistryURL:       v.GetString("REGISTRY_URL"),
		RegistryAPIKey:    v.GetString("REGISTRY_API_KEY"),
		RegistryTimeout:   v.GetDuration("REGISTRY_TIMEOUT"),
	}

	rates, err := ParseTaxRates(v.GetString("REGISTRY_TAX_RATES"))
	if err != nil {
		return nil, err
	}
	cfg.RegistryTaxRates = rates

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.JWTSecret == "" && c.Environment == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.BalanceMaxRetries < 1 {
		return fmt.Errorf("BALANCE_MAX_RETRIES must be at least 1")
	}
	if c.WorkerCount < 1 {
		c.WorkerCount = 1
	}
	return nil
}

// ParseTaxRates parses a comma separated list of percentages such as "0,6,13".
func ParseTaxRates(raw string) ([]decimal.Decimal, error) {
	var rates []decimal.Decimal
	for _, part := range splitList(raw) {
		rate, err := decimal.NewFromString(part)
		if err != nil {
			return nil, fmt.Errorf("invalid tax rate %q: %w", part, err)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
