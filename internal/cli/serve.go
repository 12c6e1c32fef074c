package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/strata/pkg/adapters/http"
	"github.com/aretw0/strata/pkg/adapters/mcp"
)

const shutdownTimeout = 5 * time.Second

// RunServe exposes the engine over HTTP on addr until ctx ends. Metrics are
// served on /metrics, or on their own listener when metricsAddr is set.
func RunServe(ctx context.Context, opts Options, addr string) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	st, err := createStack(ctx, opts.Dir, cfg, logger, stackOptions{debug: opts.Debug})
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	handlerOpts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
	servers := []*http.Server{}
	if cfg.MetricsAddr == "" {
		handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(st.Metrics.Handler()))
	} else {
		mux := http.NewServeMux()
		mux.Handle("/metrics", st.Metrics.Handler())
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
	}
	servers = append(servers, &http.Server{
		Addr:              addr,
		Handler:           httpAdapter.NewHandler(st.Engine, handlerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	})

	return serveUntilDone(ctx, logger, servers...)
}

// serveUntilDone runs every server and shuts them all down when ctx ends or
// any of them fails.
func serveUntilDone(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	// Channel to listen for errors coming from the listeners.
	serverErrors := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			logger.Info("Listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()
	}

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Start shutdown...")
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "addr", srv.Addr, "err", err)
			_ = srv.Close()
		}
	}
	logger.Info("Server stopped gracefully")
	return runErr
}

// RunMCP serves the engine as MCP tools over stdio or SSE.
func RunMCP(ctx context.Context, opts Options, transport string, port int) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	st, err := createStack(ctx, opts.Dir, cfg, logger, stackOptions{debug: opts.Debug})
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	srv := mcp.NewServer(st.Engine, mcp.WithLogger(logger))
	switch transport {
	case "stdio":
		// Logs already go to Stderr and never corrupt JSON-RPC on Stdout.
		logger.Info("Starting Strata MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		logger.Info("Starting Strata MCP Server (SSE)", "port", port)
		if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("MCP Server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
