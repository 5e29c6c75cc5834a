package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	srv "github.com/mohammad-safakhou/claimcheck/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCMD(load configLoader) *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			logger, err := newLogger(cfg.General)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newPipelineApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			api := srv.New(a.pipeline, a.hub, a.research,
				srv.WithHeartbeat(cfg.Server.HeartbeatInterval),
				srv.WithCleanupDefault(cfg.Pipeline.CleanupAudio),
				srv.WithMetricsPath(cfg.Telemetry.MetricsPath),
				srv.WithLogger(logger),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.hub.Run(gctx) })
			g.Go(func() error { return api.Start(cfg.Server.Address) })
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.Info("shutting down")
				err := api.Shutdown(shutdownCtx)
				if perr := a.pipeline.Shutdown(shutdownCtx); perr != nil {
					logger.Warn("pipeline did not drain before shutdown deadline", zap.Error(perr))
				}
				return err
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	return serve
}
