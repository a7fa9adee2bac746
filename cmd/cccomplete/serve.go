package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/cccomplete/internal/debug"
	"github.com/standardbeagle/cccomplete/internal/mcp"
)

// metricsServer serves reg on /metrics.
func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := openManager(c, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	root := m.Config().Project.Root
	start := time.Now()
	if err := m.ParseProject(ctx, nil); err != nil {
		// A file that fails to read should not keep the rest from being watched.
		fmt.Fprintf(errWriter(c), "Warning: %v\n", err)
		if ctx.Err() != nil {
			return nil
		}
	}
	fmt.Fprintf(c.App.Writer, "Parsed %s in %v (%d tokens)\n", root, time.Since(start).Round(time.Millisecond), m.Tree().Len())

	if err := m.Watch(ctx); err != nil {
		return err
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if addr := c.String("metrics-addr"); addr != "" {
		srv = metricsServer(addr, m.Registry())
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		fmt.Fprintf(c.App.Writer, "Metrics on http://%s/metrics\n", addr)
	}
	fmt.Fprintf(c.App.Writer, "Watching %s, press Ctrl+C to stop\n", root)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	stats := m.WatchStats()
	if err := m.StopWatching(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Stopped after %d events\n", stats.EventsProcessed)
	return serveErr
}

func mcpCommand(c *cli.Context) error {
	// stdout carries the protocol, so traces go to a file or nowhere
	log := debug.Discard()
	if c.Bool("debug") {
		path, err := log.OpenFile("")
		if err != nil {
			return err
		}
		defer log.Close()
		fmt.Fprintf(errWriter(c), "MCP debug log: %s\n", path)
	} else {
		log.SetQuiet(true)
	}

	m, err := openManager(c, log)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("index") {
		start := time.Now()
		if err := m.ParseProject(ctx, nil); err != nil {
			log.Log(debug.ComponentMCP, "initial parse: %v", err)
		}
		log.Log(debug.ComponentMCP, "initial parse done in %v", time.Since(start))
	}

	srv, err := mcp.NewServer(m)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	if err := srv.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
