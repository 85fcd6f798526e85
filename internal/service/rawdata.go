package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hotosm/tm-extractor/internal/domain"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/metrics"
)

// RawDataService is the client for the raw-data generation API. It owns the
// retry policy for both the snapshot submission POST and the status GET:
// bounded attempts, exponential backoff for transient failures, and a
// dedicated long wait when the API signals rate limiting.
type RawDataService struct {
	client        *resty.Client
	baseURL       string
	maxRetries    int
	rateLimitWait time.Duration
	backoffBase   float64
	logger        *logger.Logger
}

// RawDataConfig holds configuration for the raw-data API client.
type RawDataConfig struct {
	BaseURL       string
	AuthToken     string
	Timeout       time.Duration
	MaxRetries    int
	RateLimitWait time.Duration
	BackoffBase   float64
}

// NewRawDataService creates a new raw-data API client.
func NewRawDataService(cfg *RawDataConfig, log *logger.Logger) *RawDataService {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Access-Token", cfg.AuthToken)
	client.SetTimeout(cfg.Timeout)

	return &RawDataService{
		client:        client,
		baseURL:       cfg.BaseURL,
		maxRetries:    cfg.MaxRetries,
		rateLimitWait: cfg.RateLimitWait,
		backoffBase:   cfg.BackoffBase,
		logger:        log,
	}
}

func (s *RawDataService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// isRateLimited reports whether the status code signals rate limiting or
// upstream overload, which gets the long wait instead of exponential backoff.
func isRateLimited(code int) bool {
	return code == 429 || code == 502
}

// SubmitSnapshot posts a derived request config to /custom/snapshot/ and
// returns the task ID the API assigned. A 2xx body without a task_id is a
// malformed success and fails immediately; transient failures are retried up
// to MaxRetries. The returned error means "this submission failed", never
// "abort the batch".
func (s *RawDataService) SubmitSnapshot(ctx context.Context, requestConfig []byte) (string, error) {
	url := s.baseURL + "/custom/snapshot/"

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		var out domain.SubmitResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(requestConfig).
			SetResult(&out).
			ForceContentType("application/json").
			Post(url)

		if err != nil {
			metrics.APIRequestsTotal.WithLabelValues("snapshot", "failure").Inc()
			if attempt == s.maxRetries {
				return "", fmt.Errorf("snapshot submission failed after %d retries: %w", s.maxRetries, err)
			}
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldAttempt: attempt + 1,
			}).WithError(err).Warn("Snapshot request error, backing off")
			metrics.RetriesTotal.WithLabelValues("snapshot").Inc()
			if err := sleepContext(ctx, backoffDelay(s.backoffBase, attempt)); err != nil {
				return "", err
			}
			continue
		}

		code := resp.StatusCode()
		switch {
		case isRateLimited(code):
			metrics.APIRequestsTotal.WithLabelValues("snapshot", "failure").Inc()
			if attempt == s.maxRetries {
				return "", fmt.Errorf("snapshot submission rate limited (HTTP %d) after %d retries", code, s.maxRetries)
			}
			s.log(ctx).WithField(logger.FieldStatus, code).
				Warn("Rate limit reached, waiting before retrying")
			metrics.RateLimitWaitsTotal.Inc()
			if err := sleepContext(ctx, s.rateLimitWait); err != nil {
				return "", err
			}

		case code < 200 || code >= 300:
			metrics.APIRequestsTotal.WithLabelValues("snapshot", "failure").Inc()
			if attempt == s.maxRetries {
				return "", fmt.Errorf("snapshot submission returned HTTP %d after %d retries: %s", code, s.maxRetries, resp.Body())
			}
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldStatus:  code,
				logger.FieldAttempt: attempt + 1,
			}).Warn("Snapshot request failed, backing off")
			metrics.RetriesTotal.WithLabelValues("snapshot").Inc()
			if err := sleepContext(ctx, backoffDelay(s.backoffBase, attempt)); err != nil {
				return "", err
			}

		default:
			if out.TaskID == "" {
				// malformed success, not a transient failure: do not retry
				metrics.APIRequestsTotal.WithLabelValues("snapshot", "failure").Inc()
				return "", fmt.Errorf("invalid snapshot response, task_id missing: %s", resp.Body())
			}
			metrics.APIRequestsTotal.WithLabelValues("snapshot", "success").Inc()
			return out.TaskID, nil
		}
	}

	return "", fmt.Errorf("snapshot submission failed after %d retries", s.maxRetries)
}

// TaskStatus fetches the current status of a task from /tasks/status/{id}/,
// retrying transient failures with exponential backoff. After exhausting
// retries it returns the last error; callers record the task as failed.
func (s *RawDataService) TaskStatus(ctx context.Context, taskID string) (*domain.TaskStatusResponse, error) {
	url := fmt.Sprintf("%s/tasks/status/%s/", s.baseURL, taskID)

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RetriesTotal.WithLabelValues("task_status").Inc()
			if err := sleepContext(ctx, backoffDelay(s.backoffBase, attempt-1)); err != nil {
				return nil, err
			}
		}

		var out domain.TaskStatusResponse
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&out).
			ForceContentType("application/json").
			Get(url)

		if err != nil {
			lastErr = err
		} else if !resp.IsSuccess() {
			lastErr = fmt.Errorf("task status returned HTTP %d: %s", resp.StatusCode(), resp.Body())
		} else {
			metrics.APIRequestsTotal.WithLabelValues("task_status", "success").Inc()
			metrics.TaskPollsTotal.Inc()
			return &out, nil
		}

		metrics.APIRequestsTotal.WithLabelValues("task_status", "failure").Inc()
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldTaskID:  taskID,
			logger.FieldAttempt: attempt + 1,
		}).WithError(lastErr).Warn("Task status request failed")
	}

	return nil, fmt.Errorf("task status for %s failed after %d retries: %w", taskID, s.maxRetries, lastErr)
}
