package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hotosm/tm-extractor/internal/domain"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/metrics"
)

// TaskingManagerService resolves project metadata from the Tasking Manager:
// single project lookups and time-windowed active-project queries. Failures
// degrade to per-project absence; only the caller decides whether a missing
// batch aborts anything.
type TaskingManagerService struct {
	client      *resty.Client
	baseURL     string
	maxRetries  int
	backoffBase float64
	logger      *logger.Logger
}

// TaskingManagerConfig holds configuration for the Tasking Manager client.
// APIKey is optional; without it private projects are not accessible.
type TaskingManagerConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase float64
}

// NewTaskingManagerService creates a new Tasking Manager client.
func NewTaskingManagerService(cfg *TaskingManagerConfig, log *logger.Logger) *TaskingManagerService {
	client := resty.New()
	client.SetHeader("accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", cfg.APIKey)
	}
	client.SetTimeout(cfg.Timeout)

	return &TaskingManagerService{
		client:      client,
		baseURL:     cfg.BaseURL,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		logger:      log,
	}
}

func (s *TaskingManagerService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ProjectDetails fetches one project and shapes it into a ProjectFeature.
// A response missing mappingTypes or areaOfInterest counts as transient and
// is retried; a 404 is terminal for the project. Exhausted retries return an
// error and the batch continues without this project.
func (s *TaskingManagerService) ProjectDetails(ctx context.Context, projectID int) (*domain.ProjectFeature, error) {
	url := fmt.Sprintf("%s/projects/%d/?as_file=false&abbreviated=false", s.baseURL, projectID)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetriesTotal.WithLabelValues("project").Inc()
		}

		var raw map[string]json.RawMessage
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&raw).
			ForceContentType("application/json").
			Get(url)

		switch {
		case err != nil:
			metrics.APIRequestsTotal.WithLabelValues("project", "failure").Inc()
			s.log(ctx).WithField(logger.FieldProjectID, projectID).
				WithError(err).Warn("Error fetching project")

		case resp.StatusCode() == http.StatusNotFound:
			// terminal for this project, no further retries
			metrics.APIRequestsTotal.WithLabelValues("project", "failure").Inc()
			return nil, fmt.Errorf("project %d not found", projectID)

		case !resp.IsSuccess():
			metrics.APIRequestsTotal.WithLabelValues("project", "failure").Inc()
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldProjectID: projectID,
				logger.FieldStatus:    resp.StatusCode(),
			}).Warn("API error fetching project")

		default:
			feature, ok := projectFeatureFromDetails(projectID, raw)
			if ok {
				metrics.APIRequestsTotal.WithLabelValues("project", "success").Inc()
				return feature, nil
			}
			metrics.APIRequestsTotal.WithLabelValues("project", "failure").Inc()
			s.log(ctx).WithField(logger.FieldProjectID, projectID).
				Warn("Missing required fields in project response")
		}

		if err := sleepContext(ctx, backoffDelay(s.backoffBase, attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to fetch project details %d after %d retries", projectID, s.maxRetries)
}

// projectFeatureFromDetails requires both mappingTypes and areaOfInterest to
// be present; anything else makes the response unusable.
func projectFeatureFromDetails(projectID int, raw map[string]json.RawMessage) (*domain.ProjectFeature, bool) {
	rawTypes, ok := raw["mappingTypes"]
	if !ok {
		return nil, false
	}
	geometry, ok := raw["areaOfInterest"]
	if !ok {
		return nil, false
	}

	var mappingTypes []interface{}
	if err := json.Unmarshal(rawTypes, &mappingTypes); err != nil {
		return nil, false
	}

	return &domain.ProjectFeature{
		Type: "Feature",
		Properties: domain.ProjectProperties{
			ProjectID:    projectID,
			MappingTypes: mappingTypes,
		},
		Geometry: geometry,
	}, true
}

// ActiveProjects fetches all projects active within the trailing window, in
// hours. A response without a features field is transient; after exhausting
// retries the whole active-project fetch is reported failed, with no partial
// results.
func (s *TaskingManagerService) ActiveProjects(ctx context.Context, intervalHours int) ([]domain.ProjectFeature, error) {
	url := fmt.Sprintf("%s/projects/queries/active/?interval=%d", s.baseURL, intervalHours)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetriesTotal.WithLabelValues("active_projects").Inc()
		}

		var raw map[string]json.RawMessage
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&raw).
			ForceContentType("application/json").
			Get(url)

		switch {
		case err != nil:
			metrics.APIRequestsTotal.WithLabelValues("active_projects", "failure").Inc()
			s.log(ctx).WithField(logger.FieldAttempt, attempt+1).
				WithError(err).Warn("Active projects request failed")

		case !resp.IsSuccess():
			metrics.APIRequestsTotal.WithLabelValues("active_projects", "failure").Inc()
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldStatus:  resp.StatusCode(),
				logger.FieldAttempt: attempt + 1,
			}).Warn("Active projects request failed")

		default:
			rawFeatures, ok := raw["features"]
			if ok {
				var features []domain.ProjectFeature
				if err := json.Unmarshal(rawFeatures, &features); err == nil {
					metrics.APIRequestsTotal.WithLabelValues("active_projects", "success").Inc()
					return features, nil
				}
				s.log(ctx).Warn("Unparseable features in active projects response")
			} else {
				s.log(ctx).Warn("Missing features in active projects response")
			}
			metrics.APIRequestsTotal.WithLabelValues("active_projects", "failure").Inc()
		}

		if err := sleepContext(ctx, backoffDelay(s.backoffBase, attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to fetch active projects after %d retries", s.maxRetries)
}
