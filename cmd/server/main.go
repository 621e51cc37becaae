// Package main provides the API server entry point for the portfolio importer.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portfolio-importer/internal/api"
	"github.com/portfolio-importer/internal/config"
	"github.com/portfolio-importer/internal/logging"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/retry"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer logger.Sync()

	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Postgres often comes up after the server in container setups
	var postgres *storage.PostgresDB
	err = retry.Do(context.Background(), retry.DefaultRetryConfig("connect postgres"), func(ctx context.Context, attempt int) error {
		db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			return err
		}
		postgres = db
		return nil
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	if cfg.Database.AutoMigrate {
		if err := storage.RunMigrations(cfg.Database.Postgres.URL(), storage.DefaultMigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		logger.Info("Migrations applied")
	}

	checks := map[string]api.Pinger{"postgres": postgres}

	// Redis only backs replay fingerprints; imports work without it
	var replays service.ReplayRegistry
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable; replay detection disabled")
	} else {
		defer redis.Close()
		replays = storage.NewReplayRegistry(redis, cfg.Import.ReplayTTL)
		checks["redis"] = redis
	}

	tables, err := refdata.LoadOrDefault(cfg.Import.RefDataPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load reference data")
	}

	// Repositories
	accountRepo := storage.NewPlatformAccountRepository(postgres)
	holdingRepo := storage.NewHoldingRepository(postgres)
	historyRepo := storage.NewImportHistoryRepository(postgres)
	transactionRepo := storage.NewTransactionRepository(postgres)

	// Services
	pipeline := service.NewPipeline(tables, cfg.Import.HeaderScanRows, cfg.Import.HeaderMatchRatio)
	importService := service.NewImportService(
		accountRepo,
		holdingRepo,
		historyRepo,
		transactionRepo,
		replays,
		pipeline,
		service.NewImportMonitor(),
		service.ImportOptions{
			MaxUploadBytes: cfg.Import.MaxUploadBytes,
			RejectReplays:  cfg.Import.RejectReplays,
		},
	)
	accountService := service.NewAccountService(accountRepo, holdingRepo, historyRepo, transactionRepo)

	serverConfig := &api.ServerConfig{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      60 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		MaxUploadBytes:   cfg.Import.MaxUploadBytes,
		UploadsPerMinute: cfg.RateLimit.UploadsPerMinute,
		UploadBurst:      cfg.RateLimit.UploadBurst,
	}

	server := api.NewServer(serverConfig, importService, accountService, checks, logger)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":           cfg.Server.Host,
		"port":           cfg.Server.Port,
		"reject_replays": cfg.Import.RejectReplays,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
