package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ge-labs/dink-server/internal/blob"
	"github.com/ge-labs/dink-server/internal/config"
	"github.com/ge-labs/dink-server/internal/extractor"
	"github.com/ge-labs/dink-server/internal/handlers"
	"github.com/ge-labs/dink-server/internal/logging"
	"github.com/ge-labs/dink-server/internal/server"
	"github.com/ge-labs/dink-server/internal/service"
	"github.com/ge-labs/dink-server/internal/storage"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service(handlers.ServiceName))
	logging.SetDefault(logger)

	slog.Info("Starting dink-server",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("base_url", cfg.Server.BaseURL),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Local attachment store; also the fallback when S3 is enabled. A
	// non-writable upload dir falls back to a temp directory inside
	// NewLocalStore.
	local, err := blob.NewLocalStore(cfg.Uploads.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize upload directory: %v", err)
	}
	if local.Dir() != cfg.Uploads.Dir {
		slog.Warn("Upload dir not writable, using temp fallback",
			slog.String("configured", cfg.Uploads.Dir),
			slog.String("effective", local.Dir()),
		)
	}

	var blobs blob.Store = local
	if cfg.S3.Enabled {
		s3, err := blob.NewS3Store(blob.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize S3 attachment store: %v", err)
		}
		blobs = blob.NewFallbackStore(s3, local)
		slog.Info("Attachment storage: s3",
			slog.String("endpoint", cfg.S3.Endpoint),
			slog.String("bucket", cfg.S3.Bucket),
		)
	} else {
		slog.Info("Attachment storage: local", slog.String("dir", local.Dir()))
	}

	// Event store. Mongo connectivity is a hard startup requirement: without
	// persistence every ingested event would be lost.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.NewMongoStore(ctx, storage.MongoConfig{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
	})
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to event store: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			slog.Warn("Event store close failed", slog.String("error", err.Error()))
		}
	}()
	slog.Info("Connected to event store",
		slog.String("database", cfg.Mongo.Database),
		slog.String("collection", cfg.Mongo.Collection),
	)

	// Wire the pipeline
	ex := extractor.New(blobs, logger.Logger)
	ingestService := service.NewIngestService(store, ex, cfg.Server.BaseURL, logger)
	queryService := service.NewQueryService(store)

	handler := handlers.New(ingestService, queryService, store, blobs.Name(), logger)
	router := server.NewRouter(handler, local.Dir())

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("dink-server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server stopped")
}
