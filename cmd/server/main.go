/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the facility-services API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.yaml, .env, TC_* environment)
  2. Build the zap logger
  3. Open the SQLite store (runs the schema manager)
  4. Create metrics, token issuer and API handler
  5. Start the stats scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML config (default: $TC_CONFIG or config.yaml)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection

SEE ALSO:
  - config/config.go: Configuration keys and environment overrides
  - api/server.go: Router configuration
  - cmd/tcadmin: Maintenance CLI
*/
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/api"
	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/config"
	"github.com/tcworks/tcmanage/metrics"
	"github.com/tcworks/tcmanage/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New(logger)

	store, err := sqlite.Open(cfg.Database.Path, sqlite.Options{
		Logger:           logger,
		Observer:         m,
		BusyTimeout:      cfg.Database.BusyTimeout(),
		ResetCredentials: cfg.Auth.ResetCredentials,
		Bootstrap:        cfg.Auth.Bootstrap,
		BcryptCost:       cfg.Auth.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	secret := cfg.Server.TokenSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("no token secret configured, using a random one; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}

	handler := api.NewHandler(store, api.Options{
		Auth: auth.Options{
			AllowPlaintext: cfg.Auth.AllowPlaintext,
			UpgradeLegacy:  cfg.Auth.UpgradeLegacy,
			Cost:           cfg.Auth.BcryptCost,
		},
		Tokens:    tokens,
		PhotoDir:  cfg.Storage.PhotoDir,
		MaxPhotos: cfg.Storage.MaxPhotosPerImport,
		Metrics:   m,
		Logger:    logger,
	})

	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Gatherer:    prometheus.DefaultGatherer,
	})

	scheduler := api.NewStatsScheduler(store, m, logger)
	scheduler.Interval = cfg.Scheduler.StatsInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Path),
			zap.String("photo_dir", cfg.Storage.PhotoDir))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
