package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swivlabs/swivd/internal/platform/solana"
	"github.com/swivlabs/swivd/internal/resolver"
	"github.com/swivlabs/swivd/internal/server"
	"github.com/swivlabs/swivd/internal/server/handler"
	syncx "github.com/swivlabs/swivd/internal/sync"
)

// FullMode runs the reconciliation engine, the event feed, the resolution
// scheduler, the archiver, and the HTTP API together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	engine := a.buildEngine(deps)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	a.startEventFeed(ctx, g, engine)

	scheduler := a.buildScheduler(deps)
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// SyncMode runs only the reconciliation side: the event feed, the periodic
// sweeps, and optionally the HTTP API.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	g, ctx := errgroup.WithContext(ctx)

	engine := a.buildEngine(deps)
	g.Go(func() error {
		return engine.Run(ctx)
	})
	a.startEventFeed(ctx, g, engine)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ResolveMode runs only the resolution scheduler against an already mirrored
// database, plus the HTTP API when enabled.
func (a *App) ResolveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting resolve mode")

	g, ctx := errgroup.WithContext(ctx)

	scheduler := a.buildScheduler(deps)
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ServeMode runs only the HTTP API over whatever the database already holds.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

func (a *App) buildEngine(deps *Dependencies) *syncx.Engine {
	return syncx.NewEngine(
		syncx.Config{
			ProgramID:        deps.ProgramID,
			FullSyncInterval: a.cfg.Sync.FullSyncInterval.Duration,
			MarketSyncDelay:  a.cfg.Sync.MarketSyncDelay.Duration,
		},
		deps.Ledger,
		deps.Markets,
		deps.Bets,
		deps.Users,
		deps.Protocol,
		deps.Leaderboard,
		deps.Notifier,
		a.logger,
	)
}

func (a *App) buildScheduler(deps *Dependencies) *resolver.Scheduler {
	return resolver.NewScheduler(
		resolver.Config{
			ProgramID:    deps.ProgramID,
			TickInterval: a.cfg.Resolver.TickInterval.Duration,
			SendRetries:  a.cfg.Resolver.SendRetries,
			LockTTL:      a.cfg.Resolver.LockTTL.Duration,
		},
		deps.Markets,
		deps.Oracle,
		deps.Prices,
		deps.Locks,
		deps.Ledger,
		deps.Signer,
		deps.Leaderboard,
		deps.Notifier,
		a.logger,
	)
}

// startEventFeed subscribes to program logs over WebSocket and routes decoded
// events into the engine.
func (a *App) startEventFeed(ctx context.Context, g *errgroup.Group, engine *syncx.Engine) {
	feed := solana.NewEventFeed(a.cfg.Solana.WSURL, a.cfg.Solana.ProgramID, engine.HandleEvent, a.logger)
	g.Go(func() error {
		return feed.Run(ctx)
	})
}

// startHTTPServer builds the API handler set and runs the server until the
// group context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	pingers := map[string]handler.Pinger{"postgres": deps.PG}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(pingers, a.logger),
		Markets:     handler.NewMarketHandler(deps.Markets, a.logger),
		Bets:        handler.NewBetHandler(deps.Bets, deps.Markets, a.logger),
		Protocol:    handler.NewProtocolHandler(deps.Protocol, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(deps.Leaderboard, a.logger),
		Stats:       handler.NewStatsHandler(deps.Stats, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown error", slog.Any("error", err))
		}
		return ctx.Err()
	})
}
