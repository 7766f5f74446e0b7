package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/service/queue"
	"github.com/Domenick1991/travelquotes/internal/worker"
	"github.com/gin-gonic/gin"
)

const (
	defaultBatchSize = 100
	maxBatchSize     = 1000
)

// BatchRunner claims and dispatches one batch of jobs.
type BatchRunner interface {
	RunBatch(ctx context.Context, jobType string, batchSize int) (worker.BatchSummary, error)
}

type JobHandler struct {
	queue  queue.JobQueue
	runner BatchRunner
}

type enqueueJobRequest struct {
	JobType        string                     `json:"jobType"`
	CorrelationID  string                     `json:"correlationId"`
	AvailableAfter *time.Time                 `json:"availableAfter"`
	Payload        domain.FlightSearchPayload `json:"payload"`
}

type runBatchRequest struct {
	JobType   string `json:"jobType"`
	BatchSize int    `json:"batchSize"`
}

type jobResponse struct {
	ID             string `json:"id"`
	JobType        string `json:"jobType"`
	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	CorrelationID  string `json:"correlationId,omitempty"`
	CreatedAt      string `json:"createdAt"`
	AvailableAfter string `json:"availableAfter,omitempty"`
	StartedAt      string `json:"startedAt,omitempty"`
	CompletedAt    string `json:"completedAt,omitempty"`
	LastError      string `json:"lastError,omitempty"`
	RetryOf        string `json:"retryOf,omitempty"`
}

func NewJobHandler(q queue.JobQueue, runner BatchRunner) *JobHandler {
	return &JobHandler{queue: q, runner: runner}
}

func (h *JobHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.enqueue)
	router.POST("/run", h.run)
	router.GET("/pending", h.pending)
	router.GET("/:id", h.get)
}

func (h *JobHandler) enqueue(c *gin.Context) {
	var req enqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Payload.QuoteID() == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "payload.id is required"})
		return
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = req.Payload.QuoteID()
	}

	job, err := h.queue.Enqueue(c.Request.Context(), req.Payload, queue.EnqueueOptions{
		JobType:        req.JobType,
		CorrelationID:  correlationID,
		AvailableAfter: req.AvailableAfter,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJobResponse(job))
}

func (h *JobHandler) run(c *gin.Context) {
	var req runBatchRequest
	// an empty body runs a default FlightSearch batch
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.JobType == "" {
		req.JobType = domain.JobTypeFlightSearch
	}
	summary, err := h.runner.RunBatch(c.Request.Context(), req.JobType, clampBatch(req.BatchSize))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *JobHandler) pending(c *gin.Context) {
	limit := defaultBatchSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	jobs, err := h.queue.PeekPending(c.Request.Context(), c.DefaultQuery("jobType", domain.JobTypeFlightSearch), clampBatch(limit))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, newJobResponse(&jobs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) get(c *gin.Context) {
	job, err := h.queue.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

func clampBatch(n int) int {
	if n <= 0 {
		return defaultBatchSize
	}
	return min(n, maxBatchSize)
}

func newJobResponse(job *domain.QueuedJob) jobResponse {
	return jobResponse{
		ID:             job.ID,
		JobType:        job.JobType,
		Status:         string(job.Status),
		Attempts:       job.Attempts,
		CorrelationID:  job.CorrelationID,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		AvailableAfter: formatTime(job.AvailableAfter),
		StartedAt:      formatTime(job.StartedAt),
		CompletedAt:    formatTime(job.CompletedAt),
		LastError:      job.LastError,
		RetryOf:        job.RetryOf,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
