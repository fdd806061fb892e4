package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pspoerri/roofmeasure/internal/area"
	"github.com/pspoerri/roofmeasure/internal/pitch"
	"github.com/pspoerri/roofmeasure/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start an HTTP server exposing area, adjustment, estimate and raster decode
endpoints, plus /health and /metrics.

Examples:
  # Start server on default port 8080
  roofmeasure serve

  # Listen on all interfaces with a Solar API key
  ROOFMEASURE_FETCH_API_KEY=... roofmeasure serve --bind 0.0.0.0 --port 3000`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringP("bind", "b", "localhost", "bind address")
	cmd.Flags().IntP("port", "p", 8080, "port to listen on")
	cmd.Flags().String("api-key", "", "API key appended to requests to the configured API hosts")
	cmd.Flags().String("method", "orb", "default area formula (orb|s2)")
	cmd.Flags().String("format", "png", "default image format of decoded rasters")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	method, err := area.ParseMethod(cfg.Area.Method)
	if err != nil {
		return err
	}
	defaultPitch, err := pitch.ParseCategory(cfg.Estimate.DefaultPitch)
	if err != nil {
		return err
	}

	fetcher := newFetcher(cfg.Fetch)
	defer fetcher.Close()

	srv := server.New(server.Options{
		Version:      version,
		Fetcher:      fetcher,
		Format:       cfg.Encode.Format,
		Quality:      cfg.Encode.Quality,
		AreaMethod:   method,
		DefaultPitch: defaultPitch,
		DefaultWaste: cfg.Estimate.DefaultWaste,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       slog.Default(),
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting roofmeasure server", "addr", httpServer.Addr, "version", version)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigCh:
		slog.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
