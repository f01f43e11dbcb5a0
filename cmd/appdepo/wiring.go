package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	featuredadapter "github.com/ericfisherdev/appdepo/internal/adapter/driven/featured"
	githubadapter "github.com/ericfisherdev/appdepo/internal/adapter/driven/github"
	installeradapter "github.com/ericfisherdev/appdepo/internal/adapter/driven/installer"
	metricsadapter "github.com/ericfisherdev/appdepo/internal/adapter/driven/metrics"
	sqliteadapter "github.com/ericfisherdev/appdepo/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/appdepo/internal/application"
	"github.com/ericfisherdev/appdepo/internal/config"
	"github.com/ericfisherdev/appdepo/internal/domain/model"
	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// services is the composition root shared by serve and the one-shot commands.
type services struct {
	db          *sqliteadapter.DB
	store       *sqliteadapter.TrackedAppRepo
	registry    *prometheus.Registry
	provider    *application.GitHubClientProvider
	track       *application.TrackService
	checks      *application.CheckService
	releases    *application.ReleaseService
	downloads   *application.DownloadService
	credentials *application.CredentialService
}

type wireOptions struct {
	noInstall bool
}

func wire(ctx context.Context, c *config.Config, opts wireOptions) (*services, error) {
	// Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, c.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", c.DBPath)

	// Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("schema ready", "version", version)

	store := sqliteadapter.NewTrackedAppRepo(db)

	// Stored credentials need the encryption key; without it the store is left
	// unset so token updates report driven.ErrEncryptionKeyNotSet.
	var credStore driven.CredentialStore
	if c.HasSecretKey() {
		repo, err := sqliteadapter.NewCredentialRepo(db, c.SecretKey)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		credStore = repo
	}

	factory := func(token string) driven.GitHubClient { return githubadapter.NewClient(token) }
	provider := application.NewGitHubClientProvider(nil, false)
	credentials := application.NewCredentialService(credStore, provider, factory, c.GitHubToken)

	token := credentials.ResolveToken(ctx)
	provider.Replace(factory(token), token != "")
	if token == "" {
		slog.Info("no github token configured, using anonymous api access")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metricsadapter.NewRecorder(registry)

	var installer driven.Installer
	if c.InstallCommand != "" && !opts.noInstall {
		exec, err := installeradapter.NewExecInstaller(c.InstallCommand)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		installer = exec
	}

	featured := featuredadapter.NewSource(&http.Client{Timeout: 30 * time.Second}, c.FeaturedURL)

	checks := application.NewCheckService(store, provider, recorder, c.CheckInterval, c.StaleAfter, c.CheckConcurrency)

	return &services{
		db:          db,
		store:       store,
		registry:    registry,
		provider:    provider,
		track:       application.NewTrackService(store, provider, featured, slog.Default()),
		checks:      checks,
		releases:    application.NewReleaseService(store, provider, checks),
		downloads:   application.NewDownloadService(store, provider, installer, recorder, c.DownloadDir, slog.Default()),
		credentials: credentials,
	}, nil
}

func (s *services) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.downloads.Shutdown(shutdownCtx); err != nil {
		slog.Error("download shutdown error", "error", err)
	}

	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// resolveApp accepts either a numeric app ID or "owner/repo".
func (s *services) resolveApp(ctx context.Context, arg string) (*model.TrackedApp, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return s.track.Get(ctx, id)
	}

	owner, repo, err := application.ParseOwnerRepo(arg)
	if err != nil {
		return nil, err
	}
	app, err := s.store.GetByOwnerRepo(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("%s: %w", arg, driven.ErrAppNotFound)
	}
	return app, nil
}
