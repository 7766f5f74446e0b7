package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/service/queue"
	"github.com/Domenick1991/travelquotes/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock structures
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, payload any, opts queue.EnqueueOptions) (*domain.QueuedJob, error) {
	args := m.Called(ctx, payload, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueuedJob), args.Error(1)
}

func (m *MockJobQueue) ClaimPending(ctx context.Context, jobType string, maxCount int) ([]domain.QueuedJob, error) {
	args := m.Called(ctx, jobType, maxCount)
	return args.Get(0).([]domain.QueuedJob), args.Error(1)
}

func (m *MockJobQueue) PeekPending(ctx context.Context, jobType string, maxCount int) ([]domain.QueuedJob, error) {
	args := m.Called(ctx, jobType, maxCount)
	return args.Get(0).([]domain.QueuedJob), args.Error(1)
}

func (m *MockJobQueue) MarkProcessing(ctx context.Context, job *domain.QueuedJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobQueue) MarkSucceeded(ctx context.Context, job *domain.QueuedJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobQueue) MarkFailed(ctx context.Context, job *domain.QueuedJob, cause error) error {
	args := m.Called(ctx, job, cause)
	return args.Error(0)
}

func (m *MockJobQueue) Retry(ctx context.Context, job *domain.QueuedJob, delay time.Duration) (*domain.QueuedJob, error) {
	args := m.Called(ctx, job, delay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueuedJob), args.Error(1)
}

func (m *MockJobQueue) ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]domain.QueuedJob, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]domain.QueuedJob), args.Error(1)
}

func (m *MockJobQueue) Get(ctx context.Context, id string) (*domain.QueuedJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueuedJob), args.Error(1)
}

type MockBatchRunner struct {
	mock.Mock
}

func (m *MockBatchRunner) RunBatch(ctx context.Context, jobType string, batchSize int) (worker.BatchSummary, error) {
	args := m.Called(ctx, jobType, batchSize)
	return args.Get(0).(worker.BatchSummary), args.Error(1)
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body == "" {
		c.Request = httptest.NewRequest(method, target, nil)
	} else {
		c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, w
}

func TestJobHandler_enqueue(t *testing.T) {
	mockQueue := &MockJobQueue{}
	handler := NewJobHandler(mockQueue, &MockBatchRunner{})

	c, w := newTestContext("POST", "/jobs", `{"jobType":"FlightSearch","payload":{"id":"Q1","originIataCode":"SYD"}}`)

	created := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	job := &domain.QueuedJob{
		ID:            "job-1",
		JobType:       domain.JobTypeFlightSearch,
		Status:        domain.JobStatusPending,
		CorrelationID: "Q1",
		CreatedAt:     created,
	}
	mockQueue.On("Enqueue", c.Request.Context(), mock.MatchedBy(func(p domain.FlightSearchPayload) bool {
		return p.ID == "Q1" && p.OriginIataCode != nil && *p.OriginIataCode == "SYD"
	}), queue.EnqueueOptions{JobType: domain.JobTypeFlightSearch, CorrelationID: "Q1"}).Return(job, nil)

	handler.enqueue(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp jobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "2026-10-18T09:00:00Z", resp.CreatedAt)
	assert.Empty(t, resp.StartedAt)

	mockQueue.AssertExpectations(t)
}

func TestJobHandler_enqueueRequiresQuoteID(t *testing.T) {
	mockQueue := &MockJobQueue{}
	handler := NewJobHandler(mockQueue, &MockBatchRunner{})

	c, w := newTestContext("POST", "/jobs", `{"payload":{"originIataCode":"SYD"}}`)

	handler.enqueue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockQueue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestJobHandler_run(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		jobType   string
		batchSize int
	}{
		{name: "empty body", body: "", jobType: domain.JobTypeFlightSearch, batchSize: 100},
		{name: "explicit", body: `{"jobType":"FlightSearch","batchSize":5}`, jobType: domain.JobTypeFlightSearch, batchSize: 5},
		{name: "clamped", body: `{"batchSize":5000}`, jobType: domain.JobTypeFlightSearch, batchSize: 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockBatchRunner{}
			handler := NewJobHandler(&MockJobQueue{}, runner)
			c, w := newTestContext("POST", "/jobs/run", tt.body)

			summary := worker.BatchSummary{JobType: tt.jobType, Claimed: 2, Succeeded: 2}
			runner.On("RunBatch", c.Request.Context(), tt.jobType, tt.batchSize).Return(summary, nil)

			handler.run(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"succeeded":2`)
			runner.AssertExpectations(t)
		})
	}
}

func TestJobHandler_get(t *testing.T) {
	mockQueue := &MockJobQueue{}
	handler := NewJobHandler(mockQueue, &MockBatchRunner{})

	c, w := newTestContext("GET", "/jobs/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	mockQueue.On("Get", c.Request.Context(), "missing").Return(nil, domain.ErrNotFound)

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockQueue.AssertExpectations(t)
}

func TestJobHandler_pending(t *testing.T) {
	mockQueue := &MockJobQueue{}
	handler := NewJobHandler(mockQueue, &MockBatchRunner{})

	c, w := newTestContext("GET", "/jobs/pending?limit=2", "")

	jobs := []domain.QueuedJob{
		{ID: "a", JobType: domain.JobTypeFlightSearch, Status: domain.JobStatusPending},
		{ID: "b", JobType: domain.JobTypeFlightSearch, Status: domain.JobStatusPending},
	}
	mockQueue.On("PeekPending", c.Request.Context(), domain.JobTypeFlightSearch, 2).Return(jobs, nil)

	handler.pending(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []jobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "a", resp[0].ID)

	mockQueue.AssertExpectations(t)
}

func TestJobHandler_pendingInvalidLimit(t *testing.T) {
	handler := NewJobHandler(&MockJobQueue{}, &MockBatchRunner{})
	c, w := newTestContext("GET", "/jobs/pending?limit=abc", "")

	handler.pending(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
