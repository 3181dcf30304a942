// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/markit/internal/api"
	"github.com/tomtom215/markit/internal/auth"
	"github.com/tomtom215/markit/internal/authz"
	"github.com/tomtom215/markit/internal/config"
	"github.com/tomtom215/markit/internal/database"
	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/markers"
	"github.com/tomtom215/markit/internal/supervisor"
	"github.com/tomtom215/markit/internal/supervisor/services"
	"github.com/tomtom215/markit/internal/upload"
)

const storeCheckInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available, so this goes through the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("db_path", cfg.Database.Path).
		Str("storage_backend", cfg.Storage.Backend).
		Int("moderators", len(cfg.Security.Moderators)).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize marker store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing marker store")
		}
	}()
	logging.Info().Msg("Marker store initialized")

	store, closeStore, err := newObjectStore(ctx, &cfg.Storage)
	if err != nil {
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize object store")
	}
	defer closeStore()

	uploader := upload.NewOrchestrator(store, upload.Config{
		Transform:      upload.DefaultTransform(cfg.Storage.Folder, cfg.Storage.CropSize),
		Timeout:        cfg.Storage.UploadTimeout,
		BreakerEnabled: cfg.Storage.BreakerEnabled,
	})

	authorizer, err := authz.NewAuthorizer(cfg.Security.Moderators)
	if err != nil {
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize authorizer")
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	handler := api.NewHandler(cfg, db,
		markers.NewSubmissionWorkflow(db, uploader),
		markers.NewModerationWorkflow(db, authorizer),
		markers.NewPublicView(db),
	)
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager, cfg.Security.CookieName), cfg)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// The zerolog bridge feeds sutureslog.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewStoreMonitorService(db, storeCheckInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Markit stopped")
}

// newObjectStore opens the configured image backend. The returned func
// releases it.
func newObjectStore(ctx context.Context, cfg *config.StorageConfig) (upload.ObjectStore, func(), error) {
	switch cfg.Backend {
	case config.BackendLocal:
		store, err := upload.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("dir", store.Dir()).Msg("Storing images on local disk")
		return store, func() {}, nil

	default:
		store, err := upload.NewGCSStore(ctx, cfg.Bucket, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("bucket", cfg.Bucket).Msg("Storing images in Google Cloud Storage")
		return store, func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing object store")
			}
		}, nil
	}
}
