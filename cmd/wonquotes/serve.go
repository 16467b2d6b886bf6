package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	opshttp "github.com/fyrsmithlabs/wonquotes/internal/http"
	"github.com/fyrsmithlabs/wonquotes/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pricing tools over MCP stdio",
		Long: `Serve the knowledge base and pricing tools to an MCP client over stdio.

When http.enabled is set (or --http-addr is given) the health and Prometheus
metrics endpoints are served alongside. Logs go to stderr; stdout carries the
MCP protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, _ *printer) error {
				if httpAddr != "" {
					a.cfg.HTTP.Enabled = true
					a.cfg.HTTP.Addr = httpAddr
				}
				return serve(ctx, a)
			})
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "serve /health and /metrics on this address")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	srv, err := mcp.NewServer(&mcp.Config{
		Name:          "wonquotes",
		Version:       version,
		Logger:        a.logger,
		MeterProvider: a.telemetry.MeterProvider(),
	}, mcp.Services{
		KnowledgeBase: a.store,
		Matcher:       a.engine,
		History:       a.history,
		Estimator:     a.estimator,
		Oracle:        a.oracle,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ops *opshttp.Server
	errCh := make(chan error, 1)
	if a.cfg.HTTP.Enabled {
		z := a.logger.Underlying().Named("http")
		ops, err = opshttp.NewServer(a.oracle, a.registry, z,
			&opshttp.Config{Addr: a.cfg.HTTP.Addr},
			opshttp.WithTelemetry(a.telemetry),
			opshttp.WithVersion(version),
			opshttp.WithMeterProvider(a.telemetry.MeterProvider()),
		)
		if err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
		go func() {
			if err := ops.Start(); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}

	runErr := srv.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if ops != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout.Duration())
		defer done()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn(ctx, "http server shutdown failed", zap.Error(err))
		}
	}

	select {
	case err := <-errCh:
		return errors.Join(runErr, err)
	default:
	}
	return runErr
}
