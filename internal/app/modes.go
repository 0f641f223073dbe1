package app

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/chainpulse/internal/pipeline"
	"github.com/alanyoungcy/chainpulse/internal/server"
	"github.com/alanyoungcy/chainpulse/internal/server/handler"
	"github.com/alanyoungcy/chainpulse/internal/server/ws"
)

// IngestMode runs the tiered scheduler only.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScheduler(ctx, g, deps)
	return g.Wait()
}

// ServeMode runs the HTTP and WebSocket server over the stored snapshots.
// Snapshots are written by a separate ingest process sharing the store.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the scheduler and the server in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScheduler(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

func (a *App) startScheduler(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	tiers := make([]pipeline.Tier, 0, len(a.cfg.Ingest.Tiers))
	for _, t := range a.cfg.Ingest.Tiers {
		tiers = append(tiers, pipeline.Tier{
			Name:     t.Name,
			Interval: t.Interval.Duration,
			Symbols:  t.Symbols,
		})
	}

	job := pipeline.NewIngestJob(deps.Ingest, deps.Alerts, a.logger)
	sched := pipeline.NewScheduler(tiers, job, pipeline.Options{
		PrimePause:  a.cfg.Ingest.PrimePause.Duration,
		Concurrency: a.cfg.Ingest.Concurrency,
	}, a.logger)

	g.Go(func() error {
		return sched.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, strings.ToLower(a.cfg.Mode), a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKeys:     a.cfg.Server.APIKeys,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Store, hub, a.logger),
		Chains: handler.NewChainHandler(deps.Analytics, a.logger),
		Alerts: handler.NewAlertHandler(deps.Alerts, a.logger),
		Admin:  handler.NewAdminHandler(deps.Gateway, deps.Ingest, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	if len(a.cfg.Server.APIKeys) == 0 {
		a.logger.WarnContext(ctx, "server.api_keys is empty; HTTP API is unauthenticated")
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("server shutdown", slog.String("error", err.Error()))
		}
		return nil
	})
}
