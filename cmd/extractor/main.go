package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hotosm/tm-extractor/internal/config"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/service"
	"github.com/hotosm/tm-extractor/internal/storage"
)

func main() {
	projects := flag.String("projects", "", "Comma-separated list of project IDs to process")
	active := flag.Int("active", 0, "Fetch and process projects active in the last N hours")
	track := flag.Bool("track", false, "Track task status until completion and save results (may take a long time)")
	templatePath := flag.String("config", "", "Path to the extraction-config template JSON")
	verbose := flag.Bool("verbose", false, "Enable verbose debug logging")
	flag.Parse()

	logCfg := logger.LoadFromEnv()
	logCfg.ServiceName = "tm-extractor"
	if *verbose {
		logCfg.Level = "debug"
	}
	appLogger := logger.New(logCfg)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	projectIDs, err := parseProjectIDs(*projects)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid -projects value")
	}
	if len(projectIDs) == 0 && *active <= 0 {
		appLogger.Fatal("Either -projects or -active is required")
	}
	if len(projectIDs) > 0 && *active > 0 {
		appLogger.Fatal("-projects and -active are mutually exclusive")
	}

	// CONFIG_PATH points at the optional YAML config; -config overrides the
	// extraction template location from it
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *templatePath != "" {
		cfg.Extract.TemplatePath = *templatePath
	}

	template, err := cfg.LoadTemplate()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load extraction template")
	}

	if cfg.TaskingManager.APIKey == "" {
		appLogger.Warn("TASKING_MANAGER_API_KEY not set. Private projects may not be accessible.")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.SetRunID(ctx, uuid.New().String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	result, err := submit.Run(ctx, service.SubmitOptions{
		Projects:          projectIDs,
		ActiveWindowHours: *active,
	})
	if err != nil {
		appLogger.WithError(err).Warn("Batch run interrupted")
		return
	}

	if len(result.TaskIDs) == 0 {
		appLogger.Warn("No tasks were submitted")
		return
	}
	appLogger.WithField(logger.FieldCount, len(result.TaskIDs)).
		Info("Successfully submitted tasks")

	if !*track {
		return
	}

	appLogger.Info("Tracking task status...")
	report, err := tracker.Track(ctx, result.TaskIDs)
	if err != nil {
		appLogger.WithError(err).Warn("Tracking interrupted, partial report not saved")
		return
	}

	if err := results.Save(ctx, report); err != nil {
		appLogger.WithError(err).Error("Failed to write results")
		return
	}
	appLogger.WithField("location", results.Location()).Info("Results saved")
}

func parseProjectIDs(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
