/*
Package main is the entry point for the Partydeck session server.

It is responsible for loading configuration, initializing the global logging
system, wiring the connected-user registry to its telemetry collaborators,
starting the timeout sweeper and the HTTP server, and gracefully handling
operating system interrupt signals (SIGINT, SIGTERM).
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"partydeck/internal/app/db"
	"partydeck/internal/app/presence"
	"partydeck/internal/app/telemetry"
	"partydeck/internal/configs"
	"partydeck/internal/handler"
	"partydeck/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("max_users", cfg.MaxUsers).
		Bool("broadcast_connects", cfg.BroadcastConnectsAndDisconnects).
		Dur("ping_timeout", cfg.PingTimeout).
		Dur("idle_timeout", cfg.IdleTimeout).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry sink: Postgres-backed when a DSN is configured.
	var recorder presence.Telemetry = presence.NopTelemetry{}
	var pgPool *pgxpool.Pool
	if cfg.DatabaseDSN != "" {
		pgPool, err = db.NewPool(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to initialize telemetry database")
		}
		defer pgPool.Close()

		recorder = telemetry.NewPGRecorder(pgPool)
	}

	// Geolocation: external HTTP resolver when an endpoint is configured.
	var geo presence.GeoResolver = presence.NopGeoResolver{}
	if cfg.GeoEndpoint != "" {
		geo = telemetry.NewHTTPGeoResolver(cfg.GeoEndpoint)
	}

	// The connected-user registry and its timeout sweeper.
	registry := presence.NewConnectedUsers(
		cfg.BroadcastConnectsAndDisconnects,
		cfg.MaxUsers,
		geo,
		recorder,
		presence.WithTimeouts(cfg.PingTimeout, cfg.IdleTimeout),
	)

	sweeper := presence.NewSweeper(registry, cfg.SweepInterval)
	go sweeper.Run(ctx)

	// Optional S3 event archive.
	if cfg.ArchiveBucketName != "" && pgPool != nil {
		archiver, err := telemetry.NewArchiver(telemetry.ArchiveConfig{
			BucketName:      cfg.ArchiveBucketName,
			Endpoint:        cfg.ArchiveEndpoint,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			SecretAccessKey: cfg.ArchiveSecretAccessKey,
			Interval:        cfg.ArchiveInterval,
		}, pgPool)
		if err != nil {
			logx.Fatal(err, "Failed to initialize event archiver")
		}
		go archiver.Run(ctx)
	}

	// Setup HTTP server and routes
	deps := handler.NewAppDeps(registry, cfg)
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// Write timeout must exceed the long-poll wait.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Partydeck Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
