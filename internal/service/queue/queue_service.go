package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/metrics"
	"github.com/Domenick1991/travelquotes/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type JobQueue interface {
	Enqueue(ctx context.Context, payload any, opts EnqueueOptions) (*domain.QueuedJob, error)
	ClaimPending(ctx context.Context, jobType string, maxCount int) ([]domain.QueuedJob, error)
	PeekPending(ctx context.Context, jobType string, maxCount int) ([]domain.QueuedJob, error)
	MarkProcessing(ctx context.Context, job *domain.QueuedJob) error
	MarkSucceeded(ctx context.Context, job *domain.QueuedJob) error
	MarkFailed(ctx context.Context, job *domain.QueuedJob, cause error) error
	Retry(ctx context.Context, job *domain.QueuedJob, delay time.Duration) (*domain.QueuedJob, error)
	ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]domain.QueuedJob, error)
	Get(ctx context.Context, id string) (*domain.QueuedJob, error)
}

type EnqueueOptions struct {
	JobType        string
	CorrelationID  string
	AvailableAfter *time.Time
}

type QueueService struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
	now  func() time.Time
}

type QueueServiceOption func(*QueueService)

func WithClock(now func() time.Time) QueueServiceOption {
	return func(s *QueueService) {
		s.now = now
	}
}

func NewQueueService(jobs repository.JobRepository, log *zerolog.Logger, opts ...QueueServiceOption) *QueueService {
	qlog := log.With().Str("component", "JobQueue").Logger()
	service := &QueueService{
		jobs: jobs,
		log:  &qlog,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Enqueue stores payload as a new pending job. Payload shape is not validated here;
// only marshal failures are reported. A nil JobType defaults to FlightSearch.
func (s *QueueService) Enqueue(ctx context.Context, payload any, opts EnqueueOptions) (*domain.QueuedJob, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	jobType := opts.JobType
	if jobType == "" {
		jobType = domain.JobTypeFlightSearch
	}
	job := &domain.QueuedJob{
		ID:             uuid.NewString(),
		JobType:        jobType,
		Payload:        data,
		CreatedAt:      s.now(),
		AvailableAfter: opts.AvailableAfter,
		Status:         domain.JobStatusPending,
		CorrelationID:  opts.CorrelationID,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to store job: %w", err)
	}

	metrics.IncJobEnqueued(jobType)
	s.log.Debug().Str("job_id", job.ID).Str("job_type", jobType).Str("correlation_id", job.CorrelationID).Msg("job enqueued")
	return job, nil
}

// ClaimPending atomically claims up to maxCount available jobs, oldest first. Returned jobs
// are already PROCESSING with the attempt counted, so two workers never receive the same job.
// An empty queue yields an empty slice.
func (s *QueueService) ClaimPending(ctx context.Context, jobType string, maxCount int) ([]domain.QueuedJob, error) {
	if maxCount <= 0 {
		return []domain.QueuedJob{}, nil
	}
	jobs, err := s.jobs.ClaimPending(ctx, jobType, maxCount, s.now())
	if err != nil {
		return nil, err
	}
	if len(jobs) > 0 {
		metrics.AddJobsClaimed(jobType, len(jobs))
	}
	return jobs, nil
}

// PeekPending lists available pending jobs without claiming them.
func (s *QueueService) PeekPending(ctx context.Context, jobType string, maxCount int) ([]domain.QueuedJob, error) {
	if maxCount <= 0 {
		return []domain.QueuedJob{}, nil
	}
	return s.jobs.ListPending(ctx, jobType, maxCount, s.now())
}

// MarkProcessing moves a pending job to PROCESSING. A job in any other status
// returns domain.ErrJobStateConflict and is left untouched.
func (s *QueueService) MarkProcessing(ctx context.Context, job *domain.QueuedJob) error {
	now := s.now()
	return s.transition(ctx, job, domain.JobStatusPending, repository.JobUpdate{
		Status:            domain.JobStatusProcessing,
		StartedAt:         &now,
		IncrementAttempts: true,
	})
}

// MarkSucceeded completes a PROCESSING job. Calling it on a job that is already terminal
// (or was never claimed) returns domain.ErrJobStateConflict and changes nothing.
func (s *QueueService) MarkSucceeded(ctx context.Context, job *domain.QueuedJob) error {
	now := s.now()
	if err := s.transition(ctx, job, domain.JobStatusProcessing, repository.JobUpdate{
		Status:      domain.JobStatusSucceeded,
		CompletedAt: &now,
	}); err != nil {
		return err
	}
	metrics.IncJobFinished(job.JobType, string(domain.JobStatusSucceeded))
	return nil
}

// MarkFailed fails a PROCESSING job and records cause. It never re-enqueues;
// see Retry. Same conflict semantics as MarkSucceeded.
func (s *QueueService) MarkFailed(ctx context.Context, job *domain.QueuedJob, cause error) error {
	now := s.now()
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.transition(ctx, job, domain.JobStatusProcessing, repository.JobUpdate{
		Status:      domain.JobStatusFailed,
		CompletedAt: &now,
		LastError:   msg,
	}); err != nil {
		return err
	}
	metrics.IncJobFinished(job.JobType, string(domain.JobStatusFailed))
	return nil
}

func (s *QueueService) transition(ctx context.Context, job *domain.QueuedJob, from domain.JobStatus, update repository.JobUpdate) error {
	if job == nil {
		return domain.ErrNotFound
	}
	updated, err := s.jobs.Transition(ctx, job.ID, from, update)
	if err != nil {
		if errors.Is(err, domain.ErrJobStateConflict) {
			s.log.Warn().Str("job_id", job.ID).Str("expected", string(from)).Str("target", string(update.Status)).Msg("job state conflict")
		}
		return err
	}
	*job = *updated
	return nil
}

// Retry enqueues a fresh pending copy of job that becomes available after delay.
// The copy keeps the attempt count so callers can cap retries.
func (s *QueueService) Retry(ctx context.Context, job *domain.QueuedJob, delay time.Duration) (*domain.QueuedJob, error) {
	after := s.now().Add(delay)
	next := &domain.QueuedJob{
		ID:             uuid.NewString(),
		JobType:        job.JobType,
		Payload:        append([]byte(nil), job.Payload...),
		CreatedAt:      s.now(),
		AvailableAfter: &after,
		Status:         domain.JobStatusPending,
		Attempts:       job.Attempts,
		CorrelationID:  job.CorrelationID,
		RetryOf:        job.ID,
	}
	if err := s.jobs.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to store retry job: %w", err)
	}
	metrics.IncJobRetried(job.JobType)
	s.log.Info().Str("job_id", next.ID).Str("retry_of", job.ID).Int("attempts", next.Attempts).Dur("delay", delay).Msg("job re-enqueued")
	return next, nil
}

// ListStale returns PROCESSING jobs started more than olderThan ago.
func (s *QueueService) ListStale(ctx context.Context, olderThan time.Duration, limit int) ([]domain.QueuedJob, error) {
	return s.jobs.ListStaleProcessing(ctx, s.now().Add(-olderThan), limit)
}

func (s *QueueService) Get(ctx context.Context, id string) (*domain.QueuedJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// DeserializePayload decodes a job payload into T. Failures wrap domain.ErrPayloadDecode.
func DeserializePayload[T any](job *domain.QueuedJob) (T, error) {
	var out T
	if job == nil || len(job.Payload) == 0 {
		return out, fmt.Errorf("%w: empty payload", domain.ErrPayloadDecode)
	}
	if err := json.Unmarshal(job.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %v", domain.ErrPayloadDecode, err)
	}
	return out, nil
}

var _ JobQueue = (*QueueService)(nil)
