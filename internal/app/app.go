// Package app provides the top-level application lifecycle management for the
// trading backend. It wires together all dependencies (stores, caches, blob
// storage, services, and the HTTP/WebSocket server) and runs them until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goldsphere/goldsphere/internal/config"
	"github.com/goldsphere/goldsphere/internal/pipeline"
	"github.com/goldsphere/goldsphere/internal/platform/metalprices"
	"github.com/goldsphere/goldsphere/internal/server"
	"github.com/goldsphere/goldsphere/internal/server/handler"
	"github.com/goldsphere/goldsphere/internal/server/ws"
	"github.com/goldsphere/goldsphere/internal/service"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, builds the service
// layer, starts the server and background workers, and blocks until the
// context is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("port", a.cfg.Server.Port),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Service layer.
	orderSvc := service.NewOrderService(
		deps.OrderStore, deps.ProductStore, deps.RateLimiter, deps.SignalBus,
		deps.AuditStore, deps.Metrics, deps.Node, a.cfg.Orders.TaxRate, a.logger,
	)
	positionSvc := service.NewPositionService(deps.PositionStore, deps.PriceCache, a.logger)
	catalogSvc := service.NewCatalogService(deps.ProductStore)

	// WebSocket hub bridging the Redis bus to browser clients.
	hub := ws.NewHub(deps.SignalBus, deps.Metrics, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	// Spot price poller.
	if a.cfg.MarketData.Enabled {
		feed := metalprices.NewClient(a.cfg.MarketData.BaseURL, a.cfg.MarketData.APIKey)
		marketSvc := service.NewMarketDataService(
			feed, deps.PriceCache, deps.ProductStore, deps.PositionStore,
			deps.LockManager, deps.SignalBus, deps.Metrics,
			a.cfg.MarketData.PollInterval.Duration, a.logger,
		)
		g.Go(func() error {
			err := marketSvc.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	// Cold-storage archiver on a cron schedule.
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, deps.Metrics, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			err := archiver.RunCron(ctx, a.cfg.Archive.Cron)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	// HTTP server.
	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimitPerSec: a.cfg.Server.RateLimitPerSec,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(deps.Postgres, deps.Redis, a.logger),
			Orders:    handler.NewOrderHandler(orderSvc, a.logger),
			Positions: handler.NewPositionHandler(positionSvc, a.logger),
			Products:  handler.NewProductHandler(catalogSvc, a.logger),
			Prices:    handler.NewPriceHandler(deps.PriceCache, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
