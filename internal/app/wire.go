package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/chainpulse/internal/acquisition"
	"github.com/alanyoungcy/chainpulse/internal/alert"
	"github.com/alanyoungcy/chainpulse/internal/analytics"
	s3blob "github.com/alanyoungcy/chainpulse/internal/blob/s3"
	"github.com/alanyoungcy/chainpulse/internal/cache/memory"
	"github.com/alanyoungcy/chainpulse/internal/cache/redis"
	"github.com/alanyoungcy/chainpulse/internal/config"
	"github.com/alanyoungcy/chainpulse/internal/domain"
	"github.com/alanyoungcy/chainpulse/internal/errtrack"
	"github.com/alanyoungcy/chainpulse/internal/normalize"
	"github.com/alanyoungcy/chainpulse/internal/notify"
	"github.com/alanyoungcy/chainpulse/internal/platform/dhan"
	"github.com/alanyoungcy/chainpulse/internal/platform/nse"
	"github.com/alanyoungcy/chainpulse/internal/platform/yahoo"
	"github.com/alanyoungcy/chainpulse/internal/service"
	memstore "github.com/alanyoungcy/chainpulse/internal/store/memory"
	"github.com/alanyoungcy/chainpulse/internal/store/postgres"
)

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Infrastructure
	Store       domain.SnapshotStore
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	Archiver    domain.ChainArchiver
	Tracker     errtrack.Tracker
	Notifier    *notify.Notifier

	// Core
	Gateway   *acquisition.Gateway
	Parser    *normalize.Parser
	Analytics *analytics.Engine
	Ingest    *service.IngestService
	Alerts    *service.AlertService
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources. Postgres, Redis and S3 are each
// optional; unset sections fall back to in-process implementations.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(step string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", step, err)
	}

	deps := &Dependencies{}

	// --- Error tracking ---
	tracker, err := errtrack.New(errtrack.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     Version,
		SampleRate:  cfg.Sentry.SampleRate,
	})
	if err != nil {
		return fail("sentry", err)
	}
	deps.Tracker = tracker

	// --- Snapshot store ---
	pgCfg := postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	}
	if pgCfg.Enabled() {
		pgClient, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		deps.Store = postgres.NewSnapshotStore(pgClient.Pool())
		logger.Info("snapshot store: postgres")
	} else {
		deps.Store = memstore.NewSnapshotStore()
		logger.Info("snapshot store: memory")
	}

	// --- Lock, bus and rate limiter ---
	redisCfg := redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
		KeyPrefix:  cfg.Redis.KeyPrefix,
	}
	if redisCfg.Enabled() {
		redisClient, err := redis.New(ctx, redisCfg)
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		logger.Info("cache: redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.LockManager = memory.NewLockManager()
		deps.SignalBus = memory.NewBus()
		deps.RateLimiter = memory.NewRateLimiter()
		logger.Info("cache: memory")
	}

	// --- S3 chain archive ---
	s3Cfg := s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	}
	if s3Cfg.Enabled() {
		s3Client, err := s3blob.New(ctx, s3Cfg)
		if err != nil {
			return fail("s3", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
		logger.Info("chain archive: s3", slog.String("bucket", cfg.S3.Bucket))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIBase,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	minSev, _ := domain.ParseSeverity(cfg.Notify.MinSeverity)
	deps.Notifier = notify.NewNotifier(senders, notify.Options{
		MinSeverity: minSev,
		Rules:       cfg.Notify.Rules,
	}, logger)

	// --- Providers ---
	token, err := config.DhanAccessToken(cfg.Dhan)
	if err != nil {
		return fail("dhan token", err)
	}
	loc := domain.ExchangeLocation(cfg.Ingest.ExchangeTimezone)
	primary := dhan.NewClient(dhan.Options{
		BaseURL:     cfg.Dhan.BaseURL,
		ClientID:    cfg.Dhan.ClientID,
		AccessToken: token,
		Cooldown:    cfg.Dhan.Cooldown.Duration,
		Timeout:     cfg.Dhan.Timeout.Duration,
		Location:    loc,
	}, logger)
	secondary := nse.NewClient(nse.Options{
		BaseURL:    cfg.NSE.BaseURL,
		Cooldown:   cfg.NSE.Cooldown.Duration,
		Timeout:    cfg.NSE.Timeout.Duration,
		SessionTTL: cfg.NSE.SessionTTL.Duration,
	}, logger)
	history := yahoo.NewClient(yahoo.Options{
		BaseURL: cfg.Yahoo.BaseURL,
		Timeout: cfg.Yahoo.Timeout.Duration,
		Tickers: cfg.Yahoo.Tickers,
	}, logger)

	pref, err := domain.ParsePreference(cfg.Ingest.Preference)
	if err != nil {
		return fail("preference", err)
	}
	deps.Gateway = acquisition.NewGateway(primary, secondary, pref, logger)
	logger.Info("providers",
		slog.String("primary", primary.Name()),
		slog.Bool("primary_demo", primary.Demo()),
		slog.String("secondary", secondary.Name()),
		slog.String("preference", string(pref)),
	)

	// --- Core services ---
	deps.Parser = normalize.NewParser(normalize.Options{
		RiskFreeRate:    cfg.Ingest.RiskFreeRate,
		FallbackIV:      cfg.Ingest.FallbackIV,
		MinTimeToExpiry: cfg.Ingest.MinTimeToExpiry,
		Location:        loc,
	}, logger)
	deps.Analytics = analytics.NewEngine(deps.Store, history, logger)

	deps.Ingest = service.NewIngestService(deps.Gateway, deps.Parser, deps.Store, service.IngestDeps{
		Locks:    deps.LockManager,
		Bus:      deps.SignalBus,
		Archiver: deps.Archiver,
		Tracker:  deps.Tracker,
		LockTTL:  cfg.Ingest.LockTTL.Duration,
	}, logger)

	alertDeps := service.AlertDeps{Bus: deps.SignalBus}
	if deps.Notifier.Enabled() {
		alertDeps.Notifier = deps.Notifier
		if cfg.Notify.Cooldown.Duration > 0 {
			alertDeps.Cooldown = notify.NewDedup(cfg.Notify.Cooldown.Duration)
		}
	}
	deps.Alerts = service.NewAlertService(deps.Analytics, alert.NewEngine(), alertDeps, logger)

	closers = append(closers, func() { deps.Tracker.Flush(flushTimeout) })

	return deps, cleanup, nil
}
