package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobUpdate describes a conditional status change applied by Transition.
type JobUpdate struct {
	Status            domain.JobStatus
	StartedAt         *time.Time
	CompletedAt       *time.Time
	LastError         string
	IncrementAttempts bool
}

type JobRepository interface {
	Create(ctx context.Context, job *domain.QueuedJob) error
	GetByID(ctx context.Context, id string) (*domain.QueuedJob, error)
	// ListPending is a plain read; it does not lock or mark anything.
	ListPending(ctx context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error)
	// ClaimPending atomically moves up to limit available jobs to PROCESSING and returns them oldest first.
	ClaimPending(ctx context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error)
	// Transition applies update only while the job is still in status from.
	Transition(ctx context.Context, id string, from domain.JobStatus, update JobUpdate) (*domain.QueuedJob, error)
	ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]domain.QueuedJob, error)
}

type PGJobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) JobRepository {
	return &PGJobRepository{db: db}
}

const jobColumns = `id, job_type, payload, created_at, available_after, status, started_at, completed_at, attempts, correlation_id, last_error, retry_of`

func scanJob(row pgx.Row) (*domain.QueuedJob, error) {
	var j domain.QueuedJob
	if err := row.Scan(&j.ID, &j.JobType, &j.Payload, &j.CreatedAt, &j.AvailableAfter, &j.Status, &j.StartedAt, &j.CompletedAt, &j.Attempts, &j.CorrelationID, &j.LastError, &j.RetryOf); err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]domain.QueuedJob, error) {
	defer rows.Close()

	jobs := make([]domain.QueuedJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (r *PGJobRepository) Create(ctx context.Context, job *domain.QueuedJob) error {
	_, err := r.db.Exec(ctx, `INSERT INTO queued_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.JobType, job.Payload, job.CreatedAt, job.AvailableAfter, job.Status, job.StartedAt, job.CompletedAt,
		job.Attempts, job.CorrelationID, job.LastError, job.RetryOf)
	return err
}

func (r *PGJobRepository) GetByID(ctx context.Context, id string) (*domain.QueuedJob, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM queued_jobs WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return j, err
}

func (r *PGJobRepository) ListPending(ctx context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM queued_jobs
		WHERE status=$1 AND ($2 = '' OR job_type=$2) AND (available_after IS NULL OR available_after <= $3)
		ORDER BY created_at
		LIMIT $4`, domain.JobStatusPending, jobType, now, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *PGJobRepository) ClaimPending(ctx context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error) {
	rows, err := r.db.Query(ctx, `UPDATE queued_jobs SET status=$1, started_at=$4, attempts=attempts+1
		WHERE id IN (
			SELECT id FROM queued_jobs
			WHERE status=$2 AND ($3 = '' OR job_type=$3) AND (available_after IS NULL OR available_after <= $4)
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns, domain.JobStatusProcessing, domain.JobStatusPending, jobType, now, limit)
	if err != nil {
		return nil, err
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })
	return jobs, nil
}

func (r *PGJobRepository) Transition(ctx context.Context, id string, from domain.JobStatus, update JobUpdate) (*domain.QueuedJob, error) {
	inc := 0
	if update.IncrementAttempts {
		inc = 1
	}
	j, err := scanJob(r.db.QueryRow(ctx, `UPDATE queued_jobs SET
			status=$1,
			started_at=COALESCE($2, started_at),
			completed_at=COALESCE($3, completed_at),
			last_error=$4,
			attempts=attempts+$5
		WHERE id=$6 AND status=$7
		RETURNING `+jobColumns,
		update.Status, update.StartedAt, update.CompletedAt, update.LastError, inc, id, from))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrJobStateConflict
}

func (r *PGJobRepository) ListStaleProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]domain.QueuedJob, error) {
	rows, err := r.db.Query(ctx, `SELECT `+jobColumns+` FROM queued_jobs
		WHERE status=$1 AND started_at < $2
		ORDER BY started_at
		LIMIT $3`, domain.JobStatusProcessing, startedBefore, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

var _ JobRepository = (*PGJobRepository)(nil)
