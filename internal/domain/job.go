package domain

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
)

// JobTypeFlightSearch is the only job type with a registered handler today.
const JobTypeFlightSearch = "FlightSearch"

func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// QueuedJob is a unit of deferred work. Jobs are kept after completion for audit.
type QueuedJob struct {
	ID             string
	JobType        string
	Payload        []byte
	CreatedAt      time.Time
	AvailableAfter *time.Time
	Status         JobStatus
	StartedAt      *time.Time
	CompletedAt    *time.Time
	Attempts       int
	CorrelationID  string
	LastError      string
	RetryOf        string
}

// Available reports whether the job's not-before time has elapsed at now.
func (j *QueuedJob) Available(now time.Time) bool {
	return j.AvailableAfter == nil || !j.AvailableAfter.After(now)
}
