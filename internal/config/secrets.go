package config

import (
	"errors"

	"github.com/alanyoungcy/chainpulse/internal/crypto"
)

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Dhan.AccessToken)
	redact(&out.Dhan.TokenPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	redact(&out.Sentry.DSN)

	if len(cfg.Server.APIKeys) > 0 {
		out.Server.APIKeys = make([]string, len(cfg.Server.APIKeys))
		for i := range out.Server.APIKeys {
			out.Server.APIKeys[i] = redacted
		}
	}
	if cfg.Ingest.Tiers != nil {
		out.Ingest.Tiers = append([]TierConfig(nil), cfg.Ingest.Tiers...)
	}
	if cfg.Yahoo.Tickers != nil {
		out.Yahoo.Tickers = make(map[string]string, len(cfg.Yahoo.Tickers))
		for k, v := range cfg.Yahoo.Tickers {
			out.Yahoo.Tickers[k] = v
		}
	}

	return out
}

// DhanAccessToken resolves the primary provider token: the plain value when
// set, otherwise the encrypted token file. An empty result selects the demo
// chain.
func DhanAccessToken(cfg DhanConfig) (string, error) {
	tok, err := crypto.LoadSecret(crypto.SecretConfig{
		Raw:           cfg.AccessToken,
		EncryptedPath: cfg.EncryptedTokenPath,
		Password:      cfg.TokenPassword,
	})
	if errors.Is(err, crypto.ErrNoSecret) {
		return "", nil
	}
	return tok, err
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
