package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/obrafin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 5, cfg.BalanceMaxRetries)
	assert.Equal(t, 2480, cfg.ImageMaxDimension)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, 6*time.Hour, cfg.ReconcileInterval)
	assert.Equal(t, 10*time.Second, cfg.RegistryTimeout)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Len(t, cfg.RegistryTaxRates, 6)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.ApproverEmails)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DEFAULT_CURRENCY", "hnl")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example/files/")
	t.Setenv("REGISTRY_TAX_RATES", "0, 15")
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("APPROVER_EMAILS", "jefe.obra@example.com,finanzas@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "HNL", cfg.DefaultCurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://cdn.example/files", cfg.StorageBaseURL)
	require.Len(t, cfg.RegistryTaxRates, 2)
	assert.Equal(t, "15", cfg.RegistryTaxRates[1].String())
	assert.Equal(t, 1, cfg.WorkerCount)
	assert.Equal(t, []string{"jefe.obra@example.com", "finanzas@example.com"}, cfg.ApproverEmails)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"DATABASE_URL": ""}},
		{name: "unknown driver", env: map[string]string{"DATABASE_URL": "x", "DATABASE_DRIVER": "mysql"}},
		{name: "production without secret", env: map[string]string{"DATABASE_URL": "x", "ENVIRONMENT": "production", "JWT_SECRET": ""}},
		{name: "no retries", env: map[string]string{"DATABASE_URL": "x", "BALANCE_MAX_RETRIES": "0"}},
		{name: "bad tax rate", env: map[string]string{"DATABASE_URL": "x", "REGISTRY_TAX_RATES": "13,abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseTaxRates(t *testing.T) {
	rates, err := ParseTaxRates(" 0 ,6.5,13 ")
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "6.5", rates[1].String())

	rates, err = ParseTaxRates("")
	require.NoError(t, err)
	assert.Empty(t, rates)
}
