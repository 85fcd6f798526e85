package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hotosm/tm-extractor/internal/domain"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/mapping"
	"github.com/hotosm/tm-extractor/internal/metrics"
)

// SubmitService drives the batch: resolve projects, derive a request config
// for each, submit it, and collect the assigned task IDs. Projects are
// independent; a failed or skipped project never aborts the batch.
type SubmitService struct {
	tm       *TaskingManagerService
	rawdata  *RawDataService
	template *domain.Template
	logger   *logger.Logger
	workers  int
}

// SubmitConfig holds configuration for the submission pipeline.
type SubmitConfig struct {
	Workers int
}

// NewSubmitService creates a new submission pipeline.
func NewSubmitService(
	tm *TaskingManagerService,
	rawdata *RawDataService,
	template *domain.Template,
	log *logger.Logger,
	cfg *SubmitConfig,
) *SubmitService {
	workers := 1
	if cfg != nil && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	return &SubmitService{
		tm:       tm,
		rawdata:  rawdata,
		template: template,
		logger:   log,
		workers:  workers,
	}
}

func (s *SubmitService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// BatchStats holds counters for one batch run.
type BatchStats struct {
	TotalProjects int64
	Submitted     int64
	Skipped       int64
	Failed        int64
	StartTime     time.Time
	EndTime       time.Time
}

// BatchResult is the outcome of one batch run: the task IDs of every
// successful submission, plus the counters. Skips and failures are observable
// via logs and stats but never appear in TaskIDs.
type BatchResult struct {
	TaskIDs []string
	Stats   BatchStats
}

// SubmitOptions selects which projects a batch run covers. Projects lists
// explicit project IDs; ActiveWindowHours additionally pulls every project
// active within the trailing window (0 disables the active query).
type SubmitOptions struct {
	Projects          []int
	ActiveWindowHours int
}

// Run resolves the requested projects and submits an extraction for each.
func (s *SubmitService) Run(ctx context.Context, opts SubmitOptions) (*BatchResult, error) {
	stats := BatchStats{StartTime: time.Now()}

	features := s.resolve(ctx, opts)
	if len(features) == 0 {
		s.log(ctx).Warn("No projects to process")
		stats.EndTime = time.Now()
		return &BatchResult{Stats: stats}, nil
	}
	stats.TotalProjects = int64(len(features))

	s.log(ctx).WithField(logger.FieldCount, len(features)).
		Info("Started processing projects")

	featuresChan := make(chan domain.ProjectFeature, s.workers*2)
	resultsChan := make(chan submitOutcome, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, featuresChan, resultsChan)
		}()
	}

	var taskIDs []string
	done := make(chan struct{})
	go func() {
		for outcome := range resultsChan {
			switch {
			case outcome.skipped:
				atomic.AddInt64(&stats.Skipped, 1)
			case outcome.err != nil:
				atomic.AddInt64(&stats.Failed, 1)
				s.log(ctx).WithField(logger.FieldProjectID, outcome.projectID).
					WithError(outcome.err).Error("Failed to process project")
			default:
				atomic.AddInt64(&stats.Submitted, 1)
				taskIDs = append(taskIDs, outcome.taskID)
			}
		}
		close(done)
	}()

	for _, feature := range features {
		select {
		case featuresChan <- feature:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	close(featuresChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()

	s.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalProjects,
		"submitted": stats.Submitted,
		"skipped":   stats.Skipped,
		"failed":    stats.Failed,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Batch submission completed")

	return &BatchResult{TaskIDs: taskIDs, Stats: stats}, ctx.Err()
}

// resolve gathers project features from explicit IDs and the active-project
// query. Resolver failures degrade to per-project absence; a failed active
// query yields no partial results.
func (s *SubmitService) resolve(ctx context.Context, opts SubmitOptions) []domain.ProjectFeature {
	var features []domain.ProjectFeature

	if len(opts.Projects) > 0 {
		s.log(ctx).WithField(logger.FieldCount, len(opts.Projects)).
			Info("Tasking Manager projects supplied")
		for _, projectID := range opts.Projects {
			if ctx.Err() != nil {
				break
			}
			feature, err := s.tm.ProjectDetails(ctx, projectID)
			if err != nil {
				s.log(ctx).WithField(logger.FieldProjectID, projectID).
					WithError(err).Error("Failed to fetch project details")
				continue
			}
			features = append(features, *feature)
		}
	}

	if opts.ActiveWindowHours > 0 && ctx.Err() == nil {
		s.log(ctx).WithField("interval_hours", opts.ActiveWindowHours).
			Info("Retrieving active projects")
		active, err := s.tm.ActiveProjects(ctx, opts.ActiveWindowHours)
		if err != nil {
			s.log(ctx).WithError(err).Warn("No active projects found")
		} else {
			s.log(ctx).WithField(logger.FieldCount, len(active)).
				Info("Active projects fetched")
			features = append(features, active...)
		}
	}

	return features
}

type submitOutcome struct {
	projectID int
	taskID    string
	skipped   bool
	err       error
}

func (s *SubmitService) worker(ctx context.Context, features <-chan domain.ProjectFeature, results chan<- submitOutcome) {
	for feature := range features {
		select {
		case <-ctx.Done():
			return
		default:
		}

		outcome := submitOutcome{projectID: feature.Properties.ProjectID}
		outcome.taskID, outcome.skipped, outcome.err = s.processProject(ctx, feature)
		results <- outcome
	}
}

// processProject normalizes a project's mapping types, derives its request
// config and submits it. A project with no supported mapping type is skipped,
// not failed.
func (s *SubmitService) processProject(ctx context.Context, feature domain.ProjectFeature) (string, bool, error) {
	projectID := feature.Properties.ProjectID

	mappingTypes := mapping.NormalizeAll(feature.Properties.MappingTypes)
	if len(mappingTypes) == 0 {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldProjectID: projectID,
			"mapping_types":       feature.Properties.MappingTypes,
		}).Info("Skipped project, mapping types not supported yet")
		metrics.ProjectsProcessedTotal.WithLabelValues("skipped").Inc()
		return "", true, nil
	}

	cfg := BuildSnapshotConfig(s.template, projectID, mappingTypes, feature.Geometry)
	body, err := json.Marshal(cfg)
	if err != nil {
		metrics.ProjectsProcessedTotal.WithLabelValues("failed").Inc()
		return "", false, fmt.Errorf("failed to encode request config for project %d: %w", projectID, err)
	}

	taskID, err := s.rawdata.SubmitSnapshot(ctx, body)
	if err != nil {
		metrics.ProjectsProcessedTotal.WithLabelValues("failed").Inc()
		return "", false, err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldProjectID: projectID,
		logger.FieldTaskID:    taskID,
	}).Info("Extraction submitted")
	metrics.ProjectsProcessedTotal.WithLabelValues("submitted").Inc()
	return taskID, false, nil
}
