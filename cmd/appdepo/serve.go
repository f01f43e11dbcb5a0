package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/appdepo/internal/adapter/driving/http"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and the background release checker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("listen") {
			cfg.ListenAddr = flagListen
		}
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "HTTP listen address (APPDEPO_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"download_dir", cfg.DownloadDir,
		"check_interval", cfg.CheckInterval,
		"stale_after", cfg.StaleAfter,
		"installer", cfg.InstallCommand != "",
	)

	// Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := wire(ctx, cfg, wireOptions{})
	if err != nil {
		return err
	}
	defer svc.Close()

	checkDone := make(chan struct{})
	go func() {
		svc.checks.Start(ctx)
		close(checkDone)
	}()

	handler := httphandler.NewServeMux(httphandler.NewHandler(httphandler.Services{
		Track:       svc.track,
		Checks:      svc.checks,
		Releases:    svc.releases,
		Downloads:   svc.downloads,
		Credentials: svc.credentials,
		Provider:    svc.provider,
	}, slog.Default()), slog.Default(), svc.registry)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	slog.Info("appdepo started", "listen_addr", cfg.ListenAddr, "authenticated", svc.provider.Authenticated())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		slog.Error("http server error", "error", runErr)
		stop()
	}
	slog.Info("shutting down")

	// Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	<-checkDone

	slog.Info("shutdown complete")
	return runErr
}
