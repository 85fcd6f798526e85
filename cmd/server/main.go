package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotosm/tm-extractor/internal/api"
	"github.com/hotosm/tm-extractor/internal/config"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/service"
	"github.com/hotosm/tm-extractor/internal/storage"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.LoadFromEnv()
	logCfg.ServiceName = "tm-extractor-api"
	appLogger := logger.New(logCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	template, err := cfg.LoadTemplate()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load extraction template")
	}

	results, err := storage.NewResultStore(&storage.Config{
		Backend:     cfg.Results.Backend,
		Path:        cfg.Results.Path,
		S3Endpoint:  cfg.Results.S3.Endpoint,
		S3AccessKey: cfg.Results.S3.AccessKey,
		S3SecretKey: cfg.Results.S3.SecretKey,
		S3Bucket:    cfg.Results.S3.Bucket,
		S3Region:    cfg.Results.S3.Region,
		S3Key:       cfg.Results.S3.Key,
		S3UseSSL:    cfg.Results.S3.UseSSL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize result store")
	}

	rawdata := service.NewRawDataService(&service.RawDataConfig{
		BaseURL:       cfg.RawData.BaseURL,
		AuthToken:     cfg.RawData.AuthToken,
		Timeout:       time.Duration(cfg.RawData.Timeout) * time.Second,
		MaxRetries:    cfg.RawData.MaxRetries,
		RateLimitWait: time.Duration(cfg.RawData.RateLimitWait) * time.Second,
		BackoffBase:   cfg.RawData.BackoffBase,
	}, appLogger)

	tm := service.NewTaskingManagerService(&service.TaskingManagerConfig{
		BaseURL:     cfg.TaskingManager.BaseURL,
		APIKey:      cfg.TaskingManager.APIKey,
		Timeout:     time.Duration(cfg.TaskingManager.Timeout) * time.Second,
		MaxRetries:  cfg.RawData.MaxRetries,
		BackoffBase: cfg.RawData.BackoffBase,
	}, appLogger)

	submit := service.NewSubmitService(tm, rawdata, template, appLogger, &service.SubmitConfig{
		Workers: cfg.Extract.Workers,
	})

	tracker := service.NewTrackerService(rawdata, appLogger, &service.TrackerConfig{
		PollInterval: time.Duration(cfg.Extract.PollInterval) * time.Second,
		MaxWait:      time.Duration(cfg.Extract.PollMaxWait) * time.Second,
	})

	router := api.SetupRouter(submit, tracker, rawdata, results, cfg, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
