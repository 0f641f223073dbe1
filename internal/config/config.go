// Package config defines the top-level configuration for chainpulse and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CHAINPULSE_* environment variables.
type Config struct {
	Dhan     DhanConfig     `toml:"dhan"`
	NSE      NSEConfig      `toml:"nse"`
	Yahoo    YahooConfig    `toml:"yahoo"`
	Ingest   IngestConfig   `toml:"ingest"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Sentry   SentryConfig   `toml:"sentry"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DhanConfig holds the primary provider endpoint and credentials. An empty
// or DEMO-prefixed access token selects the demo chain.
type DhanConfig struct {
	BaseURL            string   `toml:"base_url"`
	ClientID           string   `toml:"client_id"`
	AccessToken        string   `toml:"access_token"`
	EncryptedTokenPath string   `toml:"encrypted_token_path"`
	TokenPassword      string   `toml:"token_password"`
	Cooldown           duration `toml:"cooldown"`
	Timeout            duration `toml:"timeout"`
}

// NSEConfig holds the secondary provider parameters.
type NSEConfig struct {
	BaseURL    string   `toml:"base_url"`
	Cooldown   duration `toml:"cooldown"`
	Timeout    duration `toml:"timeout"`
	SessionTTL duration `toml:"session_ttl"`
}

// YahooConfig holds the price-history collaborator parameters.
type YahooConfig struct {
	BaseURL string            `toml:"base_url"`
	Timeout duration          `toml:"timeout"`
	Tickers map[string]string `toml:"tickers"`
}

// TierConfig is one ingestion cadence group.
type TierConfig struct {
	Name     string   `toml:"name"`
	Interval duration `toml:"interval"`
	Symbols  []string `toml:"symbols"`
}

// IngestConfig holds acquisition, normalisation and scheduling parameters.
type IngestConfig struct {
	Tiers            []TierConfig `toml:"tiers"`
	PrimePause       duration     `toml:"prime_pause"`
	Preference       string       `toml:"preference"`
	RiskFreeRate     float64      `toml:"risk_free_rate"`
	FallbackIV       float64      `toml:"fallback_iv"`
	MinTimeToExpiry  float64      `toml:"min_time_to_expiry"`
	ExchangeTimezone string       `toml:"exchange_timezone"`
	LockTTL          duration     `toml:"lock_ttl"`
	Concurrency      int          `toml:"concurrency"`
}

// PostgresConfig holds PostgreSQL connection parameters. Leaving both DSN and
// Host empty keeps snapshots in memory.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr selects the
// in-process lock, bus and rate limiter.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	KeyPrefix  string `toml:"key_prefix"`
}

// S3Config holds object-storage parameters for the raw chain archive. An
// empty Bucket disables archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKeys     []string `toml:"api_keys"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit is the number of requests a client may make per RateWindow.
	// Zero disables limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials and filters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	TelegramAPIBase   string   `toml:"telegram_api_base"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	MinSeverity       string   `toml:"min_severity"`
	Rules             []string `toml:"rules"`
	// Cooldown suppresses repeat notifications of the same rule on the same
	// symbol. Zero disables it.
	Cooldown duration `toml:"cooldown"`
}

// SentryConfig holds error-tracking parameters. An empty DSN disables it.
type SentryConfig struct {
	DSN         string  `toml:"dsn"`
	Environment string  `toml:"environment"`
	SampleRate  float64 `toml:"sample_rate"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Dhan: DhanConfig{
			BaseURL:  "https://api.dhan.co/v2",
			Cooldown: duration{3 * time.Second},
			Timeout:  duration{15 * time.Second},
		},
		NSE: NSEConfig{
			BaseURL:    "https://www.nseindia.com",
			Cooldown:   duration{2 * time.Second},
			Timeout:    duration{15 * time.Second},
			SessionTTL: duration{5 * time.Minute},
		},
		Yahoo: YahooConfig{
			BaseURL: "https://query1.finance.yahoo.com",
			Timeout: duration{10 * time.Second},
		},
		Ingest: IngestConfig{
			Tiers: []TierConfig{
				{Name: "indices", Interval: duration{60 * time.Second}, Symbols: []string{"NIFTY", "BANKNIFTY", "FINNIFTY"}},
				{Name: "equities", Interval: duration{5 * time.Minute}, Symbols: []string{"RELIANCE", "TCS", "HDFCBANK", "INFY"}},
			},
			PrimePause:       duration{2 * time.Second},
			Preference:       string(domain.PreferenceAuto),
			RiskFreeRate:     0.05,
			FallbackIV:       15,
			MinTimeToExpiry:  1e-5,
			ExchangeTimezone: "Asia/Kolkata",
			LockTTL:          duration{2 * time.Minute},
			Concurrency:      4,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "chainpulse",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "chainpulse:",
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"*"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			MinSeverity: string(domain.SeverityMedium),
			Cooldown:    duration{15 * time.Minute},
		},
		Sentry: SentryConfig{
			Environment: "development",
			SampleRate:  1.0,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"ingest": true,
	"serve":  true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for logical consistency and returns an
// error describing every problem found, or nil if the config is valid.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Providers
	if c.Dhan.EncryptedTokenPath != "" && c.Dhan.TokenPassword == "" {
		errs = append(errs, "dhan: token_password is required when encrypted_token_path is set")
	}
	if c.Dhan.Cooldown.Duration < 0 || c.NSE.Cooldown.Duration < 0 {
		errs = append(errs, "cooldown must not be negative")
	}
	if c.NSE.BaseURL == "" {
		errs = append(errs, "nse: base_url must not be empty")
	}

	// Ingest
	if _, err := domain.ParsePreference(c.Ingest.Preference); err != nil {
		errs = append(errs, "ingest: "+err.Error()+" (valid: PRIMARY, SECONDARY, AUTO)")
	}
	if c.Ingest.FallbackIV <= 0 {
		errs = append(errs, "ingest: fallback_iv must be positive")
	}
	if c.Ingest.MinTimeToExpiry <= 0 {
		errs = append(errs, "ingest: min_time_to_expiry must be positive")
	}
	if _, err := time.LoadLocation(c.Ingest.ExchangeTimezone); err != nil {
		errs = append(errs, fmt.Sprintf("ingest: unknown exchange_timezone %q", c.Ingest.ExchangeTimezone))
	}
	if c.Ingest.Concurrency <= 0 {
		errs = append(errs, "ingest: concurrency must be positive")
	}
	needsTiers := c.Mode == "ingest" || c.Mode == "full"
	if needsTiers && len(c.Ingest.Tiers) == 0 {
		errs = append(errs, "ingest: at least one tier is required for mode "+c.Mode)
	}
	seen := make(map[string]bool)
	for i, t := range c.Ingest.Tiers {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("ingest: tiers[%d]: name must not be empty", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Sprintf("ingest: duplicate tier name %q", t.Name))
		}
		seen[t.Name] = true
		if t.Interval.Duration <= 0 {
			errs = append(errs, fmt.Sprintf("ingest: tier %q: interval must be positive", t.Name))
		}
		if len(t.Symbols) == 0 {
			errs = append(errs, fmt.Sprintf("ingest: tier %q: at least one symbol is required", t.Name))
		}
	}

	// Postgres
	if c.Postgres.PoolMaxConns < c.Postgres.PoolMinConns {
		errs = append(errs, "postgres: pool_max_conns must be >= pool_min_conns")
	}

	// Server
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be positive when rate_limit is set")
	}

	// Notify
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}
	if c.Notify.MinSeverity != "" {
		if _, ok := domain.ParseSeverity(c.Notify.MinSeverity); !ok {
			errs = append(errs, fmt.Sprintf("notify: unknown min_severity %q", c.Notify.MinSeverity))
		}
	}
	if c.Notify.Cooldown.Duration < 0 {
		errs = append(errs, "notify: cooldown must not be negative")
	}

	// Sentry
	if c.Sentry.SampleRate < 0 || c.Sentry.SampleRate > 1 {
		errs = append(errs, "sentry: sample_rate must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
