package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/hotelease-portal/config"
	"github.com/target/hotelease-portal/internal/observability/tracing"
)

// RuntimeDeps groups connected infrastructure for Run.
type RuntimeDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // nil when no component needs Postgres
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// Run wires the broker and serves until ctx is cancelled or a component fails.
func Run(ctx context.Context, deps RuntimeDeps) error {
	if deps.Config == nil {
		return errors.New("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		ServiceName: cfg.Observability.Tracing.ServiceName,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		Insecure:    cfg.Observability.Tracing.Insecure,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if terr := shutdownTracing(flushCtx); terr != nil {
			logger.Error("tracing shutdown failed", "error", terr)
		}
	}()

	provider, err := BuildAuthProvider(AuthConfig{Auth: cfg.Auth, Logger: logger})
	if err != nil {
		return err
	}

	services, err := CreateServices(ServiceDeps{
		Config:      cfg,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Provider:    provider,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	srv, err := NewHTTPServer(HTTPServerConfig{Config: cfg, Services: services, Logger: logger})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(gctx, srv, logger) })
	g.Go(func() error { return services.Reaper.Run(gctx) })
	if services.Relay != nil {
		g.Go(func() error { return services.Relay.Run(gctx) })
	}

	err = g.Wait()
	logger.Info("broker stopped", "portals", services.Registry.Len())
	return err
}
