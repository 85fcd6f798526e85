package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hotosm/tm-extractor/internal/logger"
	"github.com/hotosm/tm-extractor/internal/service"
	"github.com/hotosm/tm-extractor/internal/storage"
)

// ExtractHandler exposes the batch pipeline over HTTP: trigger a run, and
// check a single task's status.
type ExtractHandler struct {
	submit  *service.SubmitService
	tracker *service.TrackerService
	rawdata *service.RawDataService
	results storage.ResultStore
	logger  *logger.Logger
}

// NewExtractHandler creates a new extract handler.
func NewExtractHandler(
	submit *service.SubmitService,
	tracker *service.TrackerService,
	rawdata *service.RawDataService,
	results storage.ResultStore,
	log *logger.Logger,
) *ExtractHandler {
	return &ExtractHandler{
		submit:  submit,
		tracker: tracker,
		rawdata: rawdata,
		results: results,
		logger:  log,
	}
}

// extractRequest mirrors the original trigger event shape.
type extractRequest struct {
	Projects            []int `json:"projects"`
	FetchActiveProjects int   `json:"fetch_active_projects"`
	Track               bool  `json:"track"`
}

// Extract runs a batch submission and returns the submitted task IDs.
// When track is requested the status tracking continues in the background
// after the response; the report lands in the configured result store.
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Projects) == 0 && req.FetchActiveProjects <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either projects or fetch_active_projects is required"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.submit.Run(ctx, service.SubmitOptions{
		Projects:          req.Projects,
		ActiveWindowHours: req.FetchActiveProjects,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Track && len(result.TaskIDs) > 0 {
		// tracking outlives the request; detach from the request context
		trackCtx := logger.FromContext(ctx).WithContext(context.Background())
		go h.trackAndSave(trackCtx, result.TaskIDs)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Processing complete",
		"tasks_submitted": len(result.TaskIDs),
		"task_ids":        result.TaskIDs,
	})
}

func (h *ExtractHandler) trackAndSave(ctx context.Context, taskIDs []string) {
	report, err := h.tracker.Track(ctx, taskIDs)
	if err != nil {
		h.logger.WithError(err).Warn("Tracking interrupted, report not saved")
		return
	}
	if err := h.results.Save(ctx, report); err != nil {
		h.logger.WithError(err).Error("Failed to save results")
		return
	}
	h.logger.WithField("location", h.results.Location()).Info("Results saved")
}

// TaskStatus proxies a single task's status from the raw-data API.
func (h *ExtractHandler) TaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	status, err := h.rawdata.TaskStatus(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
