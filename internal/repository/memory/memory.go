// Package memory holds mutex-guarded in-process repositories used for local
// runs (storage.driver: memory) and for tests that need real queue semantics.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/repository"
)

type JobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.QueuedJob
}

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*domain.QueuedJob)}
}

func copyJob(j *domain.QueuedJob) domain.QueuedJob {
	c := *j
	c.Payload = slices.Clone(j.Payload)
	return c
}

func (r *JobRepository) Create(_ context.Context, job *domain.QueuedJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := copyJob(job)
	r.jobs[job.ID] = &c
	return nil
}

func (r *JobRepository) GetByID(_ context.Context, id string) (*domain.QueuedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := copyJob(j)
	return &c, nil
}

// pending returns available pending jobs oldest first; callers hold mu.
func (r *JobRepository) pending(jobType string, limit int, now time.Time) []*domain.QueuedJob {
	var out []*domain.QueuedJob
	for _, j := range r.jobs {
		if j.Status != domain.JobStatusPending || !j.Available(now) {
			continue
		}
		if jobType != "" && j.JobType != jobType {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *JobRepository) ListPending(_ context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]domain.QueuedJob, 0)
	for _, j := range r.pending(jobType, limit, now) {
		jobs = append(jobs, copyJob(j))
	}
	return jobs, nil
}

func (r *JobRepository) ClaimPending(_ context.Context, jobType string, limit int, now time.Time) ([]domain.QueuedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]domain.QueuedJob, 0)
	for _, j := range r.pending(jobType, limit, now) {
		started := now
		j.Status = domain.JobStatusProcessing
		j.StartedAt = &started
		j.Attempts++
		jobs = append(jobs, copyJob(j))
	}
	return jobs, nil
}

func (r *JobRepository) Transition(_ context.Context, id string, from domain.JobStatus, update repository.JobUpdate) (*domain.QueuedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != from {
		return nil, domain.ErrJobStateConflict
	}
	j.Status = update.Status
	if update.StartedAt != nil {
		t := *update.StartedAt
		j.StartedAt = &t
	}
	if update.CompletedAt != nil {
		t := *update.CompletedAt
		j.CompletedAt = &t
	}
	j.LastError = update.LastError
	if update.IncrementAttempts {
		j.Attempts++
	}
	c := copyJob(j)
	return &c, nil
}

func (r *JobRepository) ListStaleProcessing(_ context.Context, startedBefore time.Time, limit int) ([]domain.QueuedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]domain.QueuedJob, 0)
	for _, j := range r.jobs {
		if j.Status == domain.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(startedBefore) {
			jobs = append(jobs, copyJob(j))
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].StartedAt.Before(*jobs[k].StartedAt) })
	if limit >= 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

type QuoteRepository struct {
	mu     sync.Mutex
	quotes map[string]*domain.TravelQuote
	now    func() time.Time
}

func NewQuoteRepository() *QuoteRepository {
	return &QuoteRepository{quotes: make(map[string]*domain.TravelQuote), now: time.Now}
}

// WithClock overrides the clock used for updated_at stamps.
func (r *QuoteRepository) WithClock(now func() time.Time) *QuoteRepository {
	r.now = now
	return r
}

func copyQuote(q *domain.TravelQuote) domain.TravelQuote {
	c := *q
	c.Flight.SelectedAirlines = slices.Clone(q.Flight.SelectedAirlines)
	c.Flight.Alliances = slices.Clone(q.Flight.Alliances)
	c.TravelerIDs = slices.Clone(q.TravelerIDs)
	return c
}

func (r *QuoteRepository) Create(_ context.Context, quote *domain.TravelQuote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := copyQuote(quote)
	r.quotes[quote.ID] = &c
	return nil
}

func (r *QuoteRepository) GetByID(_ context.Context, id string) (*domain.TravelQuote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := copyQuote(q)
	return &c, nil
}

func (r *QuoteRepository) Replace(_ context.Context, quote *domain.TravelQuote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quotes[quote.ID]; !ok {
		return domain.ErrNotFound
	}
	c := copyQuote(quote)
	r.quotes[quote.ID] = &c
	return nil
}

func (r *QuoteRepository) UpdateState(_ context.Context, id string, from []domain.QuoteState, to domain.QuoteState, clearApprovals bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return false, nil
	}
	if len(from) > 0 && !slices.Contains(from, q.State) {
		return false, nil
	}
	q.State = to
	if clearApprovals {
		q.Approvals = [domain.ApprovalLevels]bool{}
	}
	q.UpdatedAt = r.now()
	return true, nil
}

func (r *QuoteRepository) UpdateCreatedBy(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return false, nil
	}
	q.CreatedBy = userID
	q.UpdatedAt = r.now()
	return true, nil
}

func (r *QuoteRepository) SetApproval(_ context.Context, id string, level int) (bool, error) {
	if level < 0 || level >= domain.ApprovalLevels {
		return false, domain.ErrInvalidApprovalStep
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return false, nil
	}
	q.Approvals[level] = true
	q.UpdatedAt = r.now()
	return true, nil
}

func (r *QuoteRepository) UpdateFlightQuery(_ context.Context, id string, quoteType domain.QuoteType, flight domain.FlightQuery) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok {
		return false, nil
	}
	q.Type = quoteType
	q.Flight = flight
	q.Flight.SelectedAirlines = slices.Clone(flight.SelectedAirlines)
	q.Flight.Alliances = slices.Clone(flight.Alliances)
	q.UpdatedAt = r.now()
	return true, nil
}

func (r *QuoteRepository) ExpireStale(_ context.Context, updatedBefore time.Time, states []domain.QuoteState) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, q := range r.quotes {
		if slices.Contains(states, q.State) && q.UpdatedAt.Before(updatedBefore) {
			q.State = domain.QuoteStateExpired
			q.UpdatedAt = r.now()
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ repository.JobRepository   = (*JobRepository)(nil)
	_ repository.QuoteRepository = (*QuoteRepository)(nil)
)
