package jobs

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeCloseDay represents a day-close job.
	JobTypeCloseDay JobType = "close_day"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries is used when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// CloseDayResult records what a completed day close produced.
type CloseDayResult struct {
	SnapshotURI  string `json:"snapshot_uri,omitempty"`
	NotionPageID string `json:"notion_page_id,omitempty"`
	CashInHand   string `json:"cash_in_hand"`
	InBank       string `json:"in_bank"`
	NetBalance   string `json:"net_balance"`
}

// CloseDayJob represents a job that reconciles a business day and
// publishes its closing summary.
type CloseDayJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Date is the business day to close.
	Date civil.Date `json:"date"`

	// RequestedBy names who asked for the close, if known.
	RequestedBy string `json:"requested_by,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`

	// Result is set once the job completes.
	Result *CloseDayResult `json:"result,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *CloseDayJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *CloseDayJob) GetType() JobType {
	return JobTypeCloseDay
}

// GetStatus implements the Job interface.
func (j *CloseDayJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishCloseDay publishes a day-close job.
	PublishCloseDay(ctx context.Context, job *CloseDayJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *CloseDayJob) error

	// GetJob retrieves a job by ID. Unknown ids yield a *domain.NotFoundError.
	GetJob(ctx context.Context, jobID string) (*CloseDayJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*CloseDayJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Date filters jobs by business day.
	Date *civil.Date

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
