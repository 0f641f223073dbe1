package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from a TOML file at path, then applies any
// CHAINPULSE_* environment variable overrides. A .env file in the working
// directory is loaded automatically (if present) before env vars are read.
// An empty path skips the file and starts from Defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CHAINPULSE_* environment variables and
// writes non-empty values into the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	// Top-level
	setStr(&cfg.Mode, "CHAINPULSE_MODE")
	setStr(&cfg.LogLevel, "CHAINPULSE_LOG_LEVEL")

	// Dhan
	setStr(&cfg.Dhan.BaseURL, "CHAINPULSE_DHAN_BASE_URL")
	setStr(&cfg.Dhan.ClientID, "CHAINPULSE_DHAN_CLIENT_ID")
	setStr(&cfg.Dhan.AccessToken, "CHAINPULSE_DHAN_ACCESS_TOKEN")
	setStr(&cfg.Dhan.EncryptedTokenPath, "CHAINPULSE_DHAN_ENCRYPTED_TOKEN_PATH")
	setStr(&cfg.Dhan.TokenPassword, "CHAINPULSE_DHAN_TOKEN_PASSWORD")
	setDuration(&cfg.Dhan.Cooldown, "CHAINPULSE_DHAN_COOLDOWN")
	setDuration(&cfg.Dhan.Timeout, "CHAINPULSE_DHAN_TIMEOUT")

	// NSE
	setStr(&cfg.NSE.BaseURL, "CHAINPULSE_NSE_BASE_URL")
	setDuration(&cfg.NSE.Cooldown, "CHAINPULSE_NSE_COOLDOWN")
	setDuration(&cfg.NSE.Timeout, "CHAINPULSE_NSE_TIMEOUT")
	setDuration(&cfg.NSE.SessionTTL, "CHAINPULSE_NSE_SESSION_TTL")

	// Yahoo
	setStr(&cfg.Yahoo.BaseURL, "CHAINPULSE_YAHOO_BASE_URL")
	setDuration(&cfg.Yahoo.Timeout, "CHAINPULSE_YAHOO_TIMEOUT")

	// Ingest
	setDuration(&cfg.Ingest.PrimePause, "CHAINPULSE_INGEST_PRIME_PAUSE")
	setStr(&cfg.Ingest.Preference, "CHAINPULSE_INGEST_PREFERENCE")
	setFloat64(&cfg.Ingest.RiskFreeRate, "CHAINPULSE_INGEST_RISK_FREE_RATE")
	setFloat64(&cfg.Ingest.FallbackIV, "CHAINPULSE_INGEST_FALLBACK_IV")
	setFloat64(&cfg.Ingest.MinTimeToExpiry, "CHAINPULSE_INGEST_MIN_TIME_TO_EXPIRY")
	setStr(&cfg.Ingest.ExchangeTimezone, "CHAINPULSE_INGEST_EXCHANGE_TIMEZONE")
	setDuration(&cfg.Ingest.LockTTL, "CHAINPULSE_INGEST_LOCK_TTL")
	setInt(&cfg.Ingest.Concurrency, "CHAINPULSE_INGEST_CONCURRENCY")
	for i := range cfg.Ingest.Tiers {
		t := &cfg.Ingest.Tiers[i]
		prefix := "CHAINPULSE_TIER_" + strings.ToUpper(t.Name)
		setDuration(&t.Interval, prefix+"_INTERVAL")
		setStringSlice(&t.Symbols, prefix+"_SYMBOLS")
	}

	// Postgres
	setStr(&cfg.Postgres.DSN, "CHAINPULSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CHAINPULSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CHAINPULSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CHAINPULSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CHAINPULSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CHAINPULSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CHAINPULSE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CHAINPULSE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CHAINPULSE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CHAINPULSE_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "CHAINPULSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CHAINPULSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CHAINPULSE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CHAINPULSE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CHAINPULSE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CHAINPULSE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "CHAINPULSE_REDIS_KEY_PREFIX")

	// S3
	setStr(&cfg.S3.Endpoint, "CHAINPULSE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CHAINPULSE_S3_REGION")
	setStr(&cfg.S3.Bucket, "CHAINPULSE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CHAINPULSE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CHAINPULSE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CHAINPULSE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CHAINPULSE_S3_FORCE_PATH_STYLE")

	// Server
	setInt(&cfg.Server.Port, "CHAINPULSE_SERVER_PORT")
	setStringSlice(&cfg.Server.APIKeys, "CHAINPULSE_SERVER_API_KEYS")
	setStringSlice(&cfg.Server.CORSOrigins, "CHAINPULSE_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "CHAINPULSE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "CHAINPULSE_SERVER_RATE_WINDOW")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "CHAINPULSE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CHAINPULSE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramAPIBase, "CHAINPULSE_NOTIFY_TELEGRAM_API_BASE")
	setStr(&cfg.Notify.DiscordWebhookURL, "CHAINPULSE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.MinSeverity, "CHAINPULSE_NOTIFY_MIN_SEVERITY")
	setStringSlice(&cfg.Notify.Rules, "CHAINPULSE_NOTIFY_RULES")
	setDuration(&cfg.Notify.Cooldown, "CHAINPULSE_NOTIFY_COOLDOWN")

	// Sentry
	setStr(&cfg.Sentry.DSN, "CHAINPULSE_SENTRY_DSN")
	setStr(&cfg.Sentry.Environment, "CHAINPULSE_SENTRY_ENVIRONMENT")
	setFloat64(&cfg.Sentry.SampleRate, "CHAINPULSE_SENTRY_SAMPLE_RATE")
}

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
