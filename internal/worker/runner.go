package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/provider"
	"github.com/Domenick1991/travelquotes/internal/service/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var errStaleJob = errors.New("job abandoned in processing")

// Handler processes one claimed job. Returning nil marks the job succeeded.
type Handler func(ctx context.Context, job *domain.QueuedJob) error

// Locker guards work that only one worker instance may run at a time.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// BatchSummary counts the outcome of one RunBatch call.
type BatchSummary struct {
	JobType   string `json:"jobType"`
	Claimed   int    `json:"claimed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Retried   int    `json:"retried"`
	Abandoned int    `json:"abandoned"`
}

type Runner struct {
	queue        queue.JobQueue
	handlers     map[string]Handler
	concurrency  int
	maxAttempts  int
	retryBackoff time.Duration
	staleAfter   time.Duration
	locker       Locker
	lockTTL      time.Duration
	log          *zerolog.Logger
}

type RunnerOption func(*Runner)

func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRetry sets how many attempts a retryable job gets and the base delay between them.
func WithRetry(maxAttempts int, backoff time.Duration) RunnerOption {
	return func(r *Runner) {
		r.maxAttempts = maxAttempts
		r.retryBackoff = backoff
	}
}

func WithStaleAfter(d time.Duration) RunnerOption {
	return func(r *Runner) { r.staleAfter = d }
}

func WithLocker(locker Locker, ttl time.Duration) RunnerOption {
	return func(r *Runner) {
		r.locker = locker
		r.lockTTL = ttl
	}
}

func NewRunner(q queue.JobQueue, log *zerolog.Logger, opts ...RunnerOption) *Runner {
	rlog := log.With().Str("component", "JobRunner").Logger()
	r := &Runner{
		queue:        q,
		handlers:     make(map[string]Handler),
		concurrency:  1,
		maxAttempts:  1,
		retryBackoff: time.Minute,
		staleAfter:   15 * time.Minute,
		lockTTL:      5 * time.Minute,
		log:          &rlog,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a job type. It must be called before the runner starts.
func (r *Runner) Register(jobType string, h Handler) {
	r.handlers[jobType] = h
}

// RunBatch claims up to batchSize jobs of jobType and dispatches them with bounded
// parallelism. Jobs with no registered handler are failed with domain.ErrUnknownJobType.
func (r *Runner) RunBatch(ctx context.Context, jobType string, batchSize int) (BatchSummary, error) {
	summary := BatchSummary{JobType: jobType}
	jobs, err := r.queue.ClaimPending(ctx, jobType, batchSize)
	if err != nil {
		return summary, fmt.Errorf("claim pending jobs: %w", err)
	}
	summary.Claimed = len(jobs)
	if len(jobs) == 0 {
		return summary, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range jobs {
		job := &jobs[i]
		g.Go(func() error {
			outcome := r.process(ctx, job)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSucceeded:
				summary.Succeeded++
			case outcomeRetried:
				summary.Failed++
				summary.Retried++
			case outcomeFailed:
				summary.Failed++
			case outcomeAbandoned:
				summary.Abandoned++
			}
			return nil
		})
	}
	_ = g.Wait()

	r.log.Info().
		Str("job_type", jobType).
		Int("claimed", summary.Claimed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("retried", summary.Retried).
		Int("abandoned", summary.Abandoned).
		Msg("job batch finished")
	return summary, nil
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomeRetried
	outcomeAbandoned
)

func (r *Runner) process(ctx context.Context, job *domain.QueuedJob) outcome {
	jlog := r.log.With().Str("job_id", job.ID).Str("job_type", job.JobType).Int("attempt", job.Attempts).Logger()

	handler, ok := r.handlers[job.JobType]
	if !ok {
		return r.fail(ctx, job, fmt.Errorf("%w: %q", domain.ErrUnknownJobType, job.JobType), &jlog)
	}

	err := handler(ctx, job)
	switch {
	case err == nil:
		if err := r.queue.MarkSucceeded(ctx, job); err != nil {
			jlog.Error().Err(err).Msg("failed to mark job succeeded")
			return outcomeFailed
		}
		return outcomeSucceeded
	case errors.Is(err, domain.ErrSearchCancelled) || ctx.Err() != nil:
		// left in PROCESSING; SweepStale picks it up
		jlog.Warn().Err(err).Msg("job interrupted")
		return outcomeAbandoned
	case retryable(err) && job.Attempts < r.maxAttempts:
		if r.fail(ctx, job, err, &jlog) != outcomeFailed {
			return outcomeAbandoned
		}
		if _, rerr := r.queue.Retry(ctx, job, r.backoff(job.Attempts)); rerr != nil {
			jlog.Error().Err(rerr).Msg("failed to re-enqueue job")
			return outcomeFailed
		}
		return outcomeRetried
	default:
		return r.fail(ctx, job, err, &jlog)
	}
}

// fail reports outcomeFailed once the job is recorded as FAILED.
func (r *Runner) fail(ctx context.Context, job *domain.QueuedJob, cause error, jlog *zerolog.Logger) outcome {
	jlog.Warn().Err(cause).Msg("job failed")
	if err := r.queue.MarkFailed(ctx, job, cause); err != nil {
		jlog.Error().Err(err).Msg("failed to mark job failed")
		return outcomeAbandoned
	}
	return outcomeFailed
}

func (r *Runner) backoff(attempts int) time.Duration {
	return r.retryBackoff * time.Duration(max(1, attempts))
}

// retryable covers transient provider failures. Decode and validation errors never retry.
func retryable(err error) bool {
	return provider.IsRetryable(err)
}

// SweepStale fails jobs stuck in PROCESSING longer than the stale threshold and
// re-enqueues those with attempts left. It returns how many jobs were swept.
func (r *Runner) SweepStale(ctx context.Context, limit int) (int, error) {
	swept := 0
	err := r.Exclusive(ctx, "worker:sweep-stale", func(ctx context.Context) error {
		stale, err := r.queue.ListStale(ctx, r.staleAfter, limit)
		if err != nil {
			return err
		}
		for i := range stale {
			job := &stale[i]
			if err := r.queue.MarkFailed(ctx, job, errStaleJob); err != nil {
				if errors.Is(err, domain.ErrJobStateConflict) {
					continue
				}
				return err
			}
			swept++
			if job.Attempts < r.maxAttempts {
				if _, err := r.queue.Retry(ctx, job, r.backoff(job.Attempts)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if swept > 0 {
		r.log.Info().Int("swept", swept).Msg("stale jobs swept")
	}
	return swept, err
}

// Exclusive runs fn only if this instance wins the named lock. Without a Locker fn
// always runs. A lock held elsewhere is not an error.
func (r *Runner) Exclusive(ctx context.Context, name string, fn func(context.Context) error) error {
	if r.locker == nil {
		return fn(ctx)
	}
	token, ok, err := r.locker.AcquireLock(ctx, name, r.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		r.log.Debug().Str("lock", name).Msg("lock held by another worker, skipping")
		return nil
	}
	defer func() {
		// release even when ctx was cancelled mid-run
		if err := r.locker.ReleaseLock(context.WithoutCancel(ctx), name, token); err != nil {
			r.log.Warn().Err(err).Str("lock", name).Msg("failed to release lock")
		}
	}()
	return fn(ctx)
}
