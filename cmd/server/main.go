// Package main is the entry point for the card shop server.
// It wires together all modules and exposes the serve, migrate and
// sync-rates commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/unitygrave/cardshop/internal/app"
	"github.com/unitygrave/cardshop/internal/platform/config"
	"github.com/unitygrave/cardshop/internal/platform/httpserver"
	"github.com/unitygrave/cardshop/internal/platform/postgres"
	"github.com/unitygrave/cardshop/internal/platform/spanner"
	"github.com/unitygrave/cardshop/modules/catalog"
)

func main() {
	cliApp := &cli.App{
		Name:  "cardshop",
		Usage: "trading card storefront: catalog, carts, checkout and orders",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server and the exchange rate sync loop",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the audit database migrations and the Spanner schema",
				Action: migrate,
			},
			{
				Name:   "sync-rates",
				Usage:  "fetch exchange rates once and exit",
				Action: syncRates,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	logger.Info("starting card shop", slog.String("storage", cfg.StorageDriver))

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	server := httpserver.New(application.ServerConfig(), application.Handler, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return application.Catalog.RunRateSync(ctx, cfg.RateSyncInterval)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("server stopped")
	return err
}

func migrate(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	if cfg.AuditDatabaseURL != "" {
		if err := postgres.Migrate(cfg.AuditDatabaseURL); err != nil {
			return err
		}
		logger.Info("audit migrations applied")
	}

	if cfg.StorageDriver == config.StorageSpanner {
		spannerCfg := spanner.Config{
			ProjectID:  cfg.SpannerProjectID,
			InstanceID: cfg.SpannerInstanceID,
			DatabaseID: cfg.SpannerDatabaseID,
		}
		n, err := spanner.ApplySchema(c.Context, spannerCfg)
		if err != nil {
			return err
		}
		logger.Info("spanner schema applied", slog.String("dsn", spannerCfg.DSN()), slog.Int("statements", n))
	}
	return nil
}

func syncRates(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	application, err := app.Build(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.Catalog.SyncRates(c.Context)
	if errors.Is(err, catalog.ErrRateSyncDisabled) {
		return fmt.Errorf("%w: set RATE_FEED_URL", err)
	}
	if err != nil {
		return err
	}
	logger.Info("exchange rates synced", slog.Any("updated", result.Updated), slog.Any("skipped", result.Skipped))
	return nil
}
