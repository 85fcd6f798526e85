package service

import (
	"context"
	"time"

	"github.com/hotosm/tm-extractor/internal/domain"
	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/metrics"
)

// TrackerService polls submitted tasks until each reaches a terminal status
// and assembles the final report. Tasks are polled one at a time; each task
// gets one immediate poll, then a fixed-interval loop while the task reports
// PENDING or STARTED.
type TrackerService struct {
	rawdata      *RawDataService
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *logger.Logger
}

// TrackerConfig holds configuration for the status tracker. MaxWait bounds
// how long one task is polled; zero keeps the poll-forever behavior and
// leaves cancellation to the caller's context.
type TrackerConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// NewTrackerService creates a new status tracker.
func NewTrackerService(rawdata *RawDataService, log *logger.Logger, cfg *TrackerConfig) *TrackerService {
	return &TrackerService{
		rawdata:      rawdata,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		logger:       log,
	}
}

func (t *TrackerService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return t.logger
}

// Track polls every task to completion and returns the report. On a completed
// run the report holds exactly one entry per task ID: the success payload, a
// failure marker, or the no-result placeholder. If the context is cancelled
// the partial report is returned together with the context error; callers
// must not persist it as a finished artifact.
func (t *TrackerService) Track(ctx context.Context, taskIDs []string) (domain.Report, error) {
	report := make(domain.Report, len(taskIDs))

	if len(taskIDs) == 0 {
		t.log(ctx).Warn("No tasks to track")
		return report, nil
	}

	total := len(taskIDs)
	for i, taskID := range taskIDs {
		if err := t.trackOne(ctx, taskID, report); err != nil {
			return report, err
		}
		t.log(ctx).WithFields(logger.Fields{
			logger.FieldTaskID: taskID,
			"completed":        i + 1,
			"total":            total,
		}).Info("Task finished")
	}

	return report, nil
}

// trackOne polls a single task until terminal and records its outcome in the
// report. The only error it returns is context cancellation; every other
// failure becomes a report entry.
func (t *TrackerService) trackOne(ctx context.Context, taskID string, report domain.Report) error {
	start := time.Now()
	defer func() {
		metrics.TaskDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	resp, err := t.rawdata.TaskStatus(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.SetFailure(taskID, err.Error())
		metrics.TasksTrackedTotal.WithLabelValues("failure").Inc()
		return nil
	}

	switch {
	case resp.Status == domain.TaskStatusSuccess:
		report.SetResult(taskID, resp.Result)
		metrics.TasksTrackedTotal.WithLabelValues("success").Inc()
		return nil

	case resp.Status.Running():
		t.log(ctx).WithFields(logger.Fields{
			logger.FieldTaskID: taskID,
			logger.FieldStatus: string(resp.Status),
		}).Info("Task is running, waiting for completion")
		return t.waitForCompletion(ctx, taskID, start, report)

	default:
		// unexpected status: record as failed rather than looping forever
		report.SetFailure(taskID, resp.Message)
		metrics.TasksTrackedTotal.WithLabelValues("failure").Inc()
		t.log(ctx).WithFields(logger.Fields{
			logger.FieldTaskID: taskID,
			logger.FieldStatus: string(resp.Status),
		}).Warn("Task reported an unexpected status")
		return nil
	}
}

func (t *TrackerService) waitForCompletion(ctx context.Context, taskID string, start time.Time, report domain.Report) error {
	waitingCount := 0
	for {
		if t.maxWait > 0 && time.Since(start) >= t.maxWait {
			report.SetFailure(taskID, "no terminal status within the maximum wait")
			metrics.TasksTrackedTotal.WithLabelValues("failure").Inc()
			t.log(ctx).WithFields(logger.Fields{
				logger.FieldTaskID: taskID,
				"max_wait":         t.maxWait.String(),
			}).Warn("Gave up waiting for task")
			return nil
		}

		if err := sleepContext(ctx, t.pollInterval); err != nil {
			return err
		}
		waitingCount++
		if waitingCount%5 == 0 {
			t.log(ctx).WithFields(logger.Fields{
				logger.FieldTaskID: taskID,
				"waited":           (time.Duration(waitingCount) * t.pollInterval).String(),
			}).Info("Still waiting for task")
		}

		resp, err := t.rawdata.TaskStatus(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			report.SetFailure(taskID, err.Error())
			metrics.TasksTrackedTotal.WithLabelValues("failure").Inc()
			return nil
		}

		switch {
		case resp.Status.Terminal():
			report.SetResult(taskID, resp.Result)
			if resp.Status == domain.TaskStatusSuccess {
				metrics.TasksTrackedTotal.WithLabelValues("success").Inc()
			} else {
				metrics.TasksTrackedTotal.WithLabelValues("failure").Inc()
			}
			t.log(ctx).WithFields(logger.Fields{
				logger.FieldTaskID: taskID,
				logger.FieldStatus: string(resp.Status),
			}).Info("Task reached terminal status")
			return nil

		case resp.Status.Running():
			// keep polling

		default:
			report.SetFailure(taskID, resp.Message)
			metrics.TasksTrackedTotal.WithLabelValues("failure").Inc()
			t.log(ctx).WithFields(logger.Fields{
				logger.FieldTaskID: taskID,
				logger.FieldStatus: string(resp.Status),
			}).Warn("Task reported an unexpected status")
			return nil
		}
	}
}
