package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Redis.Addr = ""
	cfg.Orders.TaxRate = 1.5
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "orders: tax_rate")
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Database.DSN = "postgres://u:p@db:5432/goldsphere"
	cfg.Database.Host = ""
	cfg.Database.Database = ""
	require.NoError(t, cfg.Validate())
}

func TestValidateArchiveDisabledSkipsS3(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Enabled = false
	cfg.S3.Bucket = ""
	cfg.S3.Endpoint = ""
	require.NoError(t, cfg.Validate())
}

func TestLoadTOMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
log_level = "debug"

[server]
port = 9090
api_key = "file-key"

[marketdata]
base_url = "https://prices.example.com"
poll_interval = "30s"

[orders]
tax_rate = 0.05
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("GOLDSPHERE_SERVER_API_KEY", "env-key")
	t.Setenv("GOLDSPHERE_DATABASE_PASSWORD", "hunter2")
	t.Setenv("GOLDSPHERE_SERVER_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Server.APIKey) // env wins over file
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, 30*time.Second, cfg.MarketData.PollInterval.Duration)
	assert.Equal(t, 0.05, cfg.Orders.TaxRate)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 90, cfg.Archive.RetentionDays)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "secret"
	cfg.Database.Password = "hunter2"
	cfg.S3.SecretKey = "aws-secret"
	cfg.MarketData.APIKey = "feed-key"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.MarketData.APIKey)

	// Original untouched.
	assert.Equal(t, "secret", cfg.Server.APIKey)

	// Mutating the redacted copy's slices must not leak back.
	red.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
