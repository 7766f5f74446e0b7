package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/logging"
	"github.com/Domenick1991/travelquotes/internal/repository"
	"github.com/Domenick1991/travelquotes/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue() (*QueueService, *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewQueueService(memory.NewJobRepository(), logging.Nop(), WithClock(clock.Now)), clock
}

type searchPayload struct {
	ID            string `json:"id"`
	RequestSearch bool   `json:"requestSearch"`
}

// ============================ Enqueue / Claim ============================

func TestQueueService_EnqueueThenClaim_ReturnsJobOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()

	job, err := svc.Enqueue(ctx, searchPayload{ID: "q-1", RequestSearch: true}, EnqueueOptions{CorrelationID: "corr-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, domain.JobTypeFlightSearch, job.JobType)
	assert.Equal(t, 0, job.Attempts)

	claimed, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)
	assert.Equal(t, domain.JobStatusProcessing, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)
	assert.NotNil(t, claimed[0].StartedAt)
	assert.Equal(t, "corr-1", claimed[0].CorrelationID)

	again, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestQueueService_ClaimPending_EmptyQueue(t *testing.T) {
	svc, _ := newTestQueue()

	jobs, err := svc.ClaimPending(context.Background(), domain.JobTypeFlightSearch, 5)

	assert.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestQueueService_ClaimPending_HonorsAvailableAfter(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestQueue()

	later := clock.Now().Add(10 * time.Minute)
	_, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{AvailableAfter: &later})
	require.NoError(t, err)

	jobs, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 5)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	clock.Advance(11 * time.Minute)
	jobs, err = svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 5)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestQueueService_ClaimPending_OldestFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestQueue()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := svc.Enqueue(ctx, searchPayload{ID: "q"}, EnqueueOptions{})
		require.NoError(t, err)
		ids = append(ids, job.ID)
		clock.Advance(time.Second)
	}

	jobs, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[0], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)
}

func TestQueueService_ClaimPending_FiltersByJobType(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()

	_, err := svc.Enqueue(ctx, map[string]string{"k": "v"}, EnqueueOptions{JobType: "Other"})
	require.NoError(t, err)

	jobs, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 5)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	peek, err := svc.PeekPending(ctx, "Other", 5)
	require.NoError(t, err)
	assert.Len(t, peek, 1)
	assert.Equal(t, domain.JobStatusPending, peek[0].Status)
}

func TestQueueService_ConcurrentClaimsNeverShareJobs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()
	for i := 0; i < 50; i++ {
		_, err := svc.Enqueue(ctx, searchPayload{ID: "q"}, EnqueueOptions{})
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				jobs, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 3)
				if err != nil || len(jobs) == 0 {
					return
				}
				mu.Lock()
				for _, j := range jobs {
					seen[j.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

// ============================ Mark* ============================

func TestQueueService_MarkSucceeded_SetsCompletedAt(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestQueue()

	_, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{})
	require.NoError(t, err)
	claimed, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 1)
	require.NoError(t, err)
	job := claimed[0]

	clock.Advance(2 * time.Second)
	require.NoError(t, svc.MarkSucceeded(ctx, &job))

	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.True(t, job.CompletedAt.After(*job.StartedAt))

	stored, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
}

func TestQueueService_MarkTerminalTwice_Conflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()

	_, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{})
	require.NoError(t, err)
	claimed, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 1)
	require.NoError(t, err)
	job := claimed[0]

	require.NoError(t, svc.MarkSucceeded(ctx, &job))

	err = svc.MarkFailed(ctx, &job, errors.New("late failure"))
	assert.ErrorIs(t, err, domain.ErrJobStateConflict)

	stored, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
	assert.Empty(t, stored.LastError)
}

func TestQueueService_MarkSucceeded_PendingJobConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()

	job, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{})
	require.NoError(t, err)

	err = svc.MarkSucceeded(ctx, job)
	assert.ErrorIs(t, err, domain.ErrJobStateConflict)
	assert.Equal(t, domain.JobStatusPending, job.Status)
}

func TestQueueService_MarkProcessing_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()

	job, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.MarkProcessing(ctx, job))
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.Attempts)

	assert.ErrorIs(t, svc.MarkProcessing(ctx, job), domain.ErrJobStateConflict)
}

func TestQueueService_MarkFailed_RecordsError(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestQueue()

	_, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{})
	require.NoError(t, err)
	claimed, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 1)
	require.NoError(t, err)
	job := claimed[0]

	require.NoError(t, svc.MarkFailed(ctx, &job, errors.New("provider timeout")))

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "provider timeout", job.LastError)
	assert.NotNil(t, job.CompletedAt)
}

func TestQueueService_MarkSucceeded_UnknownJob(t *testing.T) {
	svc, _ := newTestQueue()

	err := svc.MarkSucceeded(context.Background(), &domain.QueuedJob{ID: "missing"})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ============================ Retry / stale ============================

func TestQueueService_Retry_KeepsAttemptsAndDelays(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestQueue()

	_, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{CorrelationID: "c"})
	require.NoError(t, err)
	claimed, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 1)
	require.NoError(t, err)
	job := claimed[0]
	require.NoError(t, svc.MarkFailed(ctx, &job, errors.New("boom")))

	next, err := svc.Retry(ctx, &job, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, next.ID)
	assert.Equal(t, job.ID, next.RetryOf)
	assert.Equal(t, 1, next.Attempts)
	assert.Equal(t, "c", next.CorrelationID)
	assert.Equal(t, job.Payload, next.Payload)

	jobs, err := svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 5)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	clock.Advance(time.Minute)
	jobs, err = svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempts)
}

func TestQueueService_ListStale(t *testing.T) {
	ctx := context.Background()
	svc, clock := newTestQueue()

	_, err := svc.Enqueue(ctx, searchPayload{ID: "q-1"}, EnqueueOptions{})
	require.NoError(t, err)
	_, err = svc.ClaimPending(ctx, domain.JobTypeFlightSearch, 1)
	require.NoError(t, err)

	stale, err := svc.ListStale(ctx, 15*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	clock.Advance(16 * time.Minute)
	stale, err = svc.ListStale(ctx, 15*time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

// ============================ Payload ============================

func TestDeserializePayload(t *testing.T) {
	job := &domain.QueuedJob{Payload: []byte(`{"id":"q-1","requestSearch":true}`)}

	p, err := DeserializePayload[searchPayload](job)

	require.NoError(t, err)
	assert.Equal(t, "q-1", p.ID)
	assert.True(t, p.RequestSearch)
}

func TestDeserializePayload_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "not json", payload: []byte("{not json")},
		{name: "wrong shape", payload: []byte(`{"id":42}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializePayload[searchPayload](&domain.QueuedJob{Payload: tt.payload})
			assert.ErrorIs(t, err, domain.ErrPayloadDecode)
		})
	}
}

// ============================ Repository errors ============================

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.QueuedJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*domain.QueuedJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueuedJob), args.Error(1)
}

func (m *MockJobRepository) ListPending(ctx context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error) {
	args := m.Called(ctx, jobType, limit, now)
	return args.Get(0).([]domain.QueuedJob), args.Error(1)
}

func (m *MockJobRepository) ClaimPending(ctx context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error) {
	args := m.Called(ctx, jobType, limit, now)
	return args.Get(0).([]domain.QueuedJob), args.Error(1)
}

func (m *MockJobRepository) Transition(ctx context.Context, id string, from domain.JobStatus, update repository.JobUpdate) (*domain.QueuedJob, error) {
	args := m.Called(ctx, id, from, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueuedJob), args.Error(1)
}

func (m *MockJobRepository) ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]domain.QueuedJob, error) {
	args := m.Called(ctx, startedBefore, limit)
	return args.Get(0).([]domain.QueuedJob), args.Error(1)
}

func TestQueueService_Enqueue_StoreError(t *testing.T) {
	ctx := context.Background()
	repo := &MockJobRepository{}
	svc := NewQueueService(repo, logging.Nop())

	repo.On("Create", ctx, mock.AnythingOfType("*domain.QueuedJob")).Return(errors.New("db down")).Once()

	job, err := svc.Enqueue(ctx, searchPayload{ID: "q"}, EnqueueOptions{})

	assert.Nil(t, job)
	assert.ErrorContains(t, err, "db down")
	repo.AssertExpectations(t)
}

func TestQueueService_Enqueue_UnmarshalablePayload(t *testing.T) {
	repo := &MockJobRepository{}
	svc := NewQueueService(repo, logging.Nop())

	_, err := svc.Enqueue(context.Background(), make(chan int), EnqueueOptions{})

	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
