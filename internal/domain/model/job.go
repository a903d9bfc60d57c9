// Package model defines the core data types shared by the queue, agents and collectors.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the kind of work a job carries.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

const (
	// JobTypeCollectAccount collects recent posts and followers for one account.
	JobTypeCollectAccount JobType = "collect_account"
	// JobTypeCollectHistorical backfills a wide time window for one account.
	JobTypeCollectHistorical JobType = "collect_historical"
	// JobTypeUpdateFollowers refreshes follower counts for every account.
	JobTypeUpdateFollowers JobType = "update_followers"
	// JobTypeUpdatePostEngagement re-collects engagement on recent posts.
	JobTypeUpdatePostEngagement JobType = "update_post_engagement"

	// JobTypeCalculateMonthly computes monthly metrics per account.
	JobTypeCalculateMonthly JobType = "calculate_monthly"
	// JobTypeCalculateBenchmarks ranks accounts against each other for a month.
	JobTypeCalculateBenchmarks JobType = "calculate_benchmarks"
	// JobTypeDetectAnomalies flags large month-over-month changes.
	JobTypeDetectAnomalies JobType = "detect_anomalies"

	// JobTypeGenerateDashboardData writes the dashboard data snapshot.
	JobTypeGenerateDashboardData JobType = "generate_dashboard_data"
	// JobTypeGeneratePDF renders the printable report document.
	JobTypeGeneratePDF JobType = "generate_pdf"
	// JobTypeExportExcel writes the spreadsheet export.
	JobTypeExportExcel JobType = "export_excel"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job has been claimed by an agent.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job failed; it may be re-armed by a retry.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates a job was cancelled by an operator.
	JobStatusCancelled JobStatus = "cancelled"
)

// Priority bounds. Lower values are more urgent.
const (
	MinPriority       = 1
	MaxPriority       = 10
	DefaultPriority   = 5
	DefaultMaxRetries = 3
)

// ErrNoJobsAvailable is returned when no pending job matches a claim.
var ErrNoJobsAvailable = errors.New("no jobs available")

var jobTypes = []JobType{
	JobTypeCollectAccount,
	JobTypeCollectHistorical,
	JobTypeUpdateFollowers,
	JobTypeUpdatePostEngagement,
	JobTypeCalculateMonthly,
	JobTypeCalculateBenchmarks,
	JobTypeDetectAnomalies,
	JobTypeGenerateDashboardData,
	JobTypeGeneratePDF,
	JobTypeExportExcel,
}

// AllJobTypes returns every known job type in declaration order.
func AllJobTypes() []JobType {
	out := make([]JobType, len(jobTypes))
	copy(out, jobTypes)
	return out
}

// Valid returns true if the JobType is one of the known types.
func (t JobType) Valid() bool {
	for _, jt := range jobTypes {
		if t == jt {
			return true
		}
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and flag parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ParseJobTypes parses a comma separated list of job types.
func ParseJobTypes(s string) ([]JobType, error) {
	var out []JobType
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		var jt JobType
		if err := jt.UnmarshalText([]byte(part)); err != nil {
			return nil, err
		}
		out = append(out, jt)
	}
	return out, nil
}

var jobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// AllJobStatuses returns every job status in lifecycle order.
func AllJobStatuses() []JobStatus {
	out := make([]JobStatus, len(jobStatuses))
	copy(out, jobStatuses)
	return out
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	for _, st := range jobStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no agent will touch a job in this status again.
// FAILED is terminal for agents even though Retry can reopen it.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents a unit of work stored in the queue.
type Job struct {
	ID          string          `json:"id"                     db:"id"`
	Type        JobType         `json:"type"                   db:"type"`
	Priority    int             `json:"priority"               db:"priority"`
	Status      JobStatus       `json:"status"                 db:"status"`
	Payload     json.RawMessage `json:"payload"                db:"payload"`
	CreatedAt   time.Time       `json:"created_at"             db:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"   db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Error       *string         `json:"error,omitempty"        db:"error"`
	Retries     int             `json:"retries"                db:"retries"`
	MaxRetries  int             `json:"max_retries"            db:"max_retries"`
	Result      json.RawMessage `json:"result,omitempty"       db:"result"`
}

// DecodePayload decodes the job payload into its typed variant.
//
//nolint:ireturn // the payload union is an interface by construction.
func (j *Job) DecodePayload() (Payload, error) {
	return DecodePayload(j.Type, j.Payload)
}

// CanRetry reports whether the retry budget still allows re-arming.
func (j *Job) CanRetry() bool {
	return j.Retries < j.MaxRetries
}

// CreateJobRequest represents a request to enqueue a new job.
type CreateJobRequest struct {
	Type     JobType         `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority,omitempty"`
	// MaxRetries overrides DefaultMaxRetries when set; zero disables retries.
	MaxRetries *int `json:"max_retries,omitempty"`
}

// Normalize fills defaults for priority, payload and retry budget.
func (r *CreateJobRequest) Normalize() {
	if r.Priority == 0 {
		r.Priority = DefaultPriority
	}
	if len(r.Payload) == 0 {
		r.Payload = json.RawMessage(`{}`)
	}
	if r.MaxRetries == nil {
		n := DefaultMaxRetries
		r.MaxRetries = &n
	}
}

// RetryBudget returns the effective max_retries for the request.
func (r *CreateJobRequest) RetryBudget() int {
	if r.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *r.MaxRetries
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid job type: %q", r.Type)
	}
	if r.Priority < MinPriority || r.Priority > MaxPriority {
		return fmt.Errorf("priority must be between %d and %d", MinPriority, MaxPriority)
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	if _, err := DecodePayload(r.Type, r.Payload); err != nil {
		return err
	}
	return nil
}

// JobResult is the outcome an agent reports for a processed job.
type JobResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`

	// NoRetry marks a failure that must not be re-armed, e.g. an exhausted daily quota.
	NoRetry bool `json:"-"`
}

// Succeeded builds a successful result.
func Succeeded(message string, data map[string]any) JobResult {
	return JobResult{Success: true, Message: message, Data: data}
}

// unknownFailure is recorded for failures that carry no message.
const unknownFailure = "unknown failure"

// Failed builds a failed result from an error.
func Failed(err error) JobResult {
	if err == nil {
		err = errors.New(unknownFailure)
	}
	return JobResult{Success: false, Error: err.Error()}
}

// FailureMessage is the error text stored for a failed result.
func (r JobResult) FailureMessage() string {
	if r.Error == "" {
		return unknownFailure
	}
	return r.Error
}

// StatusSummary maps each status to the number of jobs in it.
type StatusSummary map[JobStatus]int

// Total returns the number of jobs across all statuses.
func (s StatusSummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// Get returns the count for a status, zero when absent.
func (s StatusSummary) Get(status JobStatus) int {
	return s[status]
}
