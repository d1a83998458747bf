package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/config"
	"github.com/alfredjeanlab/rednight/internal/events"
	"github.com/alfredjeanlab/rednight/internal/idgen"
	"github.com/alfredjeanlab/rednight/internal/metrics"
	"github.com/alfredjeanlab/rednight/internal/reconcile"
	"github.com/alfredjeanlab/rednight/internal/server"
	"github.com/alfredjeanlab/rednight/internal/service"
)

// healthRefresh is how often the gRPC health status is re-probed.
const healthRefresh = 15 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP and gRPC servers",
		GroupID: "system",
		Args:    cobra.NoArgs,
		// Override PersistentPreRunE so we don't create a client.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&c.configPath, "config", "", "path to a TOML config file")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Create event publisher.
	var publisher events.Publisher
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			be.Close()
			return err
		}
		publisher = pub
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		publisher = &events.NoopPublisher{}
		logger.Info("events disabled (REDNIGHT_NATS_URL not set)")
	}

	gen, err := idgen.NewGenerator(cfg.NodeID)
	if err != nil {
		publisher.Close()
		be.Close()
		return err
	}

	// Create server components.
	m := metrics.New()
	svcOpts := []service.Option{
		service.WithPublisher(publisher),
		service.WithMetrics(m),
		service.WithLogger(logger),
	}
	envs := service.NewEnvironmentCoordinator(gen, be.envs, be.blobs, svcOpts...)
	configs := service.NewConfigCoordinator(gen, be.configs, be.blobs, svcOpts...)

	srvOpts := []server.Option{server.WithMetrics(m), server.WithLogger(logger)}
	for name, p := range be.checks {
		srvOpts = append(srvOpts, server.WithCheck(name, p))
	}
	srv := server.New(envs, configs, srvOpts...)
	grpcServer, healthServer := srv.NewGRPCServer()

	// Start gRPC listener.
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		publisher.Close()
		be.Close()
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	healthCtx, stopHealth := context.WithCancel(ctx)
	go srv.WatchHealth(healthCtx, healthServer, healthRefresh)

	// Start HTTP server.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.NewHTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Start the reconcile sweeper if enabled.
	var sweeper *reconcile.Sweeper
	if cfg.ReconcileInterval > 0 {
		sweeper = reconcile.New(be.blobs, be.blobs, be.envs, be.configs, reconcile.Options{
			Interval: cfg.ReconcileInterval,
			Grace:    cfg.ReconcileGrace,
			DryRun:   cfg.ReconcileDryRun,
			Metrics:  m,
			Logger:   logger,
		})
		sweeper.Start()
		logger.Info("reconcile sweeper started", "interval", cfg.ReconcileInterval, "dry_run", cfg.ReconcileDryRun)
	}

	logger.Info("rednight server started",
		"backend", cfg.Backend,
		"node_id", gen.Node(),
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case serveErr = <-errCh:
		logger.Error("server error, shutting down", "err", serveErr)
	}

	// Graceful shutdown.
	if sweeper != nil {
		sweeper.Stop()
		logger.Info("reconcile sweeper stopped")
	}

	stopHealth()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	configs.WaitCompensations()

	if err := publisher.Close(); err != nil {
		logger.Error("error closing publisher", "err", err)
	}
	if err := be.Close(); err != nil {
		logger.Error("error closing store", "err", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}
