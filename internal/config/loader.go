package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies GOLDSPHERE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known GOLDSPHERE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "GOLDSPHERE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "GOLDSPHERE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "GOLDSPHERE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerSec, "GOLDSPHERE_SERVER_RATE_LIMIT_PER_SEC")

	// ── Database ──
	setStr(&cfg.Database.DSN, "GOLDSPHERE_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "GOLDSPHERE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "GOLDSPHERE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "GOLDSPHERE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "GOLDSPHERE_DATABASE_NAME")
	setStr(&cfg.Database.User, "GOLDSPHERE_DATABASE_USER")
	setStr(&cfg.Database.Password, "GOLDSPHERE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "GOLDSPHERE_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "GOLDSPHERE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "GOLDSPHERE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "GOLDSPHERE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "GOLDSPHERE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "GOLDSPHERE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GOLDSPHERE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "GOLDSPHERE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "GOLDSPHERE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "GOLDSPHERE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "GOLDSPHERE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "GOLDSPHERE_S3_REGION")
	setStr(&cfg.S3.Bucket, "GOLDSPHERE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "GOLDSPHERE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "GOLDSPHERE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "GOLDSPHERE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "GOLDSPHERE_S3_FORCE_PATH_STYLE")

	// ── MarketData ──
	setBool(&cfg.MarketData.Enabled, "GOLDSPHERE_MARKETDATA_ENABLED")
	setStr(&cfg.MarketData.BaseURL, "GOLDSPHERE_MARKETDATA_BASE_URL")
	setStr(&cfg.MarketData.APIKey, "GOLDSPHERE_MARKETDATA_API_KEY")
	setDuration(&cfg.MarketData.PollInterval, "GOLDSPHERE_MARKETDATA_POLL_INTERVAL")

	// ── Orders ──
	setFloat64(&cfg.Orders.TaxRate, "GOLDSPHERE_ORDERS_TAX_RATE")
	setInt64(&cfg.Orders.SnowflakeNode, "GOLDSPHERE_ORDERS_SNOWFLAKE_NODE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "GOLDSPHERE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "GOLDSPHERE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "GOLDSPHERE_ARCHIVE_CRON")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "GOLDSPHERE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
