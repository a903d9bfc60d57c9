package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/metrics"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
)

// DefaultPollInterval is how often WaitForCompletion re-checks the queue.
const DefaultPollInterval = time.Second

// JobQueueOptions groups dependencies for JobQueue.
type JobQueueOptions struct {
	Repo core.JobRepository // Required: job repository
	// Reaper deletes finished jobs for CleanupOldJobs. Defaults to Repo when
	// the repository implements core.ReaperRepository.
	Reaper       core.ReaperRepository
	Logger       *slog.Logger  // Optional: structured logger
	Metrics      statsd.Sink   // Optional: metrics sink (StatsD-compatible)
	PollInterval time.Duration // Optional: WaitForCompletion poll interval, defaults to 1s
	Now          func() time.Time
}

// JobQueue is the persistent work queue shared by every agent.
//
// Claims are serialized by a process-wide mutex on top of the store's own
// locking, so two agents in this process never receive the same job.
type JobQueue struct {
	repo         core.JobRepository
	reaper       core.ReaperRepository
	logger       *slog.Logger
	metrics      statsd.Sink
	pollInterval time.Duration
	now          func() time.Time

	claimMu sync.Mutex
}

// NewJobQueue constructs a new JobQueue.
func NewJobQueue(opts JobQueueOptions) (*JobQueue, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	reaper := opts.Reaper
	if reaper == nil {
		reaper, _ = opts.Repo.(core.ReaperRepository)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "job_queue")
	logger.Debug("JobQueue initialized", "poll_interval", poll)

	return &JobQueue{
		repo:         opts.Repo,
		reaper:       reaper,
		logger:       logger,
		metrics:      opts.Metrics,
		pollInterval: poll,
		now:          now,
	}, nil
}

// MustNewJobQueue constructs a new JobQueue and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobQueue(opts JobQueueOptions) *JobQueue {
	q, err := NewJobQueue(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobQueue: %v", err))
	}
	return q
}

// EnqueueOptions overrides the defaults of a new job.
type EnqueueOptions struct {
	// Priority from 1 (most urgent) to 10; zero means model.DefaultPriority.
	Priority int
	// MaxRetries overrides model.DefaultMaxRetries when set.
	MaxRetries *int
}

// Enqueue stores a new pending job for the payload's job type.
func (q *JobQueue) Enqueue(ctx context.Context, payload model.Payload, opts EnqueueOptions) (*model.Job, error) {
	raw, err := model.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return q.Create(ctx, &model.CreateJobRequest{
		Type:       payload.JobType(),
		Payload:    raw,
		Priority:   opts.Priority,
		MaxRetries: opts.MaxRetries,
	})
}

// Create stores a new pending job from a raw request.
func (q *JobQueue) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := q.repo.Create(ctx, req)
	if err != nil {
		q.emit(metrics.JobMetric{Transition: metrics.TransitionEnqueue, Result: metrics.ResultError, Err: err})
		return nil, fmt.Errorf("create job: %w", err)
	}

	q.emit(metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionEnqueue,
		Result:     metrics.ResultSuccess,
	})
	q.logger.DebugContext(ctx, "job enqueued",
		"id", job.ID,
		"type", job.Type,
		"priority", job.Priority,
	)
	return job, nil
}

// Get returns a job by id.
func (q *JobQueue) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// GetNext claims the most urgent pending job whose type is in types and
// marks it running. It returns nil, nil when nothing is pending.
func (q *JobQueue) GetNext(ctx context.Context, types ...model.JobType) (*model.Job, error) {
	q.claimMu.Lock()
	defer q.claimMu.Unlock()

	job, err := q.repo.ClaimNext(ctx, types)
	if errors.Is(err, model.ErrNoJobsAvailable) {
		return nil, nil
	}
	if err != nil {
		q.emit(metrics.JobMetric{Transition: metrics.TransitionClaim, Result: metrics.ResultError, Err: err})
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	var waited time.Duration
	if job.StartedAt != nil {
		waited = job.StartedAt.Sub(job.CreatedAt)
	}
	q.emit(metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionClaim,
		Result:     metrics.ResultSuccess,
		Duration:   waited,
	})
	q.logger.DebugContext(ctx, "job claimed", "id", job.ID, "type", job.Type, "retries", job.Retries)
	return job, nil
}

// Complete records the outcome of a running job. It reports false, without
// error, when the job was no longer running (already completed or cancelled).
func (q *JobQueue) Complete(ctx context.Context, job *model.Job, result model.JobResult) (bool, error) {
	done, err := q.repo.Complete(ctx, job.ID, result)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	var ran time.Duration
	if job.StartedAt != nil {
		ran = q.now().Sub(*job.StartedAt)
	}
	outcome := metrics.ResultSuccess
	switch {
	case !done:
		outcome = metrics.ResultNoop
	case !result.Success:
		outcome = metrics.ResultError
	}
	var resultErr error
	if !result.Success && result.Error != "" {
		resultErr = errors.New(result.Error)
	}
	q.emit(metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionComplete,
		Result:     outcome,
		Duration:   ran,
		Err:        resultErr,
	})

	if !done {
		q.logger.WarnContext(ctx, "job was not running, result dropped", "id", job.ID, "type", job.Type)
		return false, nil
	}
	if result.Success {
		q.logger.DebugContext(ctx, "job completed", "id", job.ID, "type", job.Type, "duration", ran)
	} else {
		q.logger.InfoContext(ctx, "job failed", "id", job.ID, "type", job.Type, "error", result.Error)
	}
	return true, nil
}

// Fail records a failed attempt of a running job. Unless result.NoRetry is
// set and while budget remains, the job is re-armed in the same store write,
// so WaitForCompletion never sees it failed in between. It returns the
// resulting status, or "" when the job was no longer running.
func (q *JobQueue) Fail(ctx context.Context, job *model.Job, result model.JobResult) (model.JobStatus, error) {
	result.Success = false
	status, err := q.repo.Fail(ctx, job.ID, result, !result.NoRetry)
	if err != nil {
		return "", fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	var ran time.Duration
	if job.StartedAt != nil {
		ran = q.now().Sub(*job.StartedAt)
	}
	outcome := metrics.ResultError
	if status == "" {
		outcome = metrics.ResultNoop
	}
	q.emit(metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionComplete,
		Result:     outcome,
		Duration:   ran,
		Err:        errors.New(result.FailureMessage()),
	})

	switch status {
	case "":
		q.logger.WarnContext(ctx, "job was not running, result dropped", "id", job.ID, "type", job.Type)
	case model.JobStatusPending:
		q.emit(metrics.JobMetric{JobType: string(job.Type), Transition: metrics.TransitionRetry, Result: metrics.ResultSuccess})
		q.logger.InfoContext(ctx, "job failed and was re-queued",
			"id", job.ID,
			"type", job.Type,
			"error", result.FailureMessage(),
			"retry", job.Retries+1,
			"max_retries", job.MaxRetries,
		)
	default:
		q.logger.InfoContext(ctx, "job failed", "id", job.ID, "type", job.Type, "error", result.FailureMessage())
		if !result.NoRetry {
			q.logger.WarnContext(ctx, "job retry budget exhausted",
				"id", job.ID,
				"type", job.Type,
				"retries", job.Retries,
				"max_retries", job.MaxRetries,
			)
		}
	}
	return status, nil
}

// Retry re-arms a running or failed job. A pending job is already armed and
// reports true. It returns false when the retry budget is spent or the job
// has completed or been cancelled.
func (q *JobQueue) Retry(ctx context.Context, job *model.Job) (bool, error) {
	retried, err := q.repo.Retry(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("retry job %s: %w", job.ID, err)
	}

	outcome := metrics.ResultSuccess
	if !retried {
		outcome = metrics.ResultNoop
	}
	q.emit(metrics.JobMetric{JobType: string(job.Type), Transition: metrics.TransitionRetry, Result: outcome})

	if retried {
		q.logger.InfoContext(ctx, "job re-queued",
			"id", job.ID,
			"type", job.Type,
			"retry", job.Retries+1,
			"max_retries", job.MaxRetries,
		)
		return true, nil
	}
	q.logRetryRefused(ctx, job)
	return false, nil
}

// logRetryRefused reports why Retry left the job alone, from its stored state.
func (q *JobQueue) logRetryRefused(ctx context.Context, job *model.Job) {
	current, err := q.repo.GetByID(ctx, job.ID)
	if err != nil {
		q.logger.WarnContext(ctx, "job not retried", "id", job.ID, "type", job.Type, "error", err)
		return
	}
	if !current.CanRetry() {
		q.logger.WarnContext(ctx, "job retry budget exhausted",
			"id", current.ID,
			"type", current.Type,
			"retries", current.Retries,
			"max_retries", current.MaxRetries,
		)
		return
	}
	q.logger.WarnContext(ctx, "job not retryable in status "+string(current.Status),
		"id", current.ID,
		"type", current.Type,
		"status", current.Status,
	)
}

// Cancel forces the job to cancelled whatever its status.
// An agent still working on a cancelled job finishes, but its result is dropped.
func (q *JobQueue) Cancel(ctx context.Context, id string) (bool, error) {
	cancelled, err := q.repo.Cancel(ctx, id)
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	outcome := metrics.ResultSuccess
	if !cancelled {
		outcome = metrics.ResultNoop
	}
	q.emit(metrics.JobMetric{Transition: metrics.TransitionCancel, Result: outcome})
	if cancelled {
		q.logger.InfoContext(ctx, "job cancelled", "id", id)
	}
	return cancelled, nil
}

// PendingCount counts pending jobs of the given types, or of every type.
func (q *JobQueue) PendingCount(ctx context.Context, types ...model.JobType) (int, error) {
	n, err := q.repo.CountPending(ctx, types)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}

// RunningCount counts running jobs.
func (q *JobQueue) RunningCount(ctx context.Context) (int, error) {
	n, err := q.repo.CountRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("count running jobs: %w", err)
	}
	return n, nil
}

// StatusSummary returns the number of jobs per status. Every status is
// present in the result, zero when empty.
func (q *JobQueue) StatusSummary(ctx context.Context) (model.StatusSummary, error) {
	summary, err := q.repo.StatusSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("job status summary: %w", err)
	}
	out := make(model.StatusSummary, len(model.AllJobStatuses()))
	for _, st := range model.AllJobStatuses() {
		out[st] = summary[st]
	}
	metrics.QueueDepth(q.metrics, out[model.JobStatusPending], out[model.JobStatusRunning])
	return out, nil
}

// List returns jobs newest first.
func (q *JobQueue) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	jobs, err := q.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// WaitForCompletion blocks until no job of the given types is pending and
// nothing at all is running. It returns false when timeout (zero means no
// limit) or ctx ends first.
//
// Running jobs are counted across every type: a data job still running may
// enqueue nothing, but the barrier must not pass while it writes.
func (q *JobQueue) WaitForCompletion(ctx context.Context, timeout time.Duration, types ...model.JobType) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		idle, err := q.idle(ctx, types)
		if err != nil {
			return false, err
		}
		if idle {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			q.logger.WarnContext(ctx, "timed out waiting for jobs", "types", types, "timeout", timeout)
			return false, nil
		case <-ticker.C:
		}
	}
}

func (q *JobQueue) idle(ctx context.Context, types []model.JobType) (bool, error) {
	pending, err := q.PendingCount(ctx, types...)
	if err != nil {
		return false, err
	}
	running, err := q.RunningCount(ctx)
	if err != nil {
		return false, err
	}
	return pending == 0 && running == 0, nil
}

// CleanupOldJobs deletes completed, failed and cancelled jobs that finished
// more than days ago and returns how many were removed.
func (q *JobQueue) CleanupOldJobs(ctx context.Context, days int) (int64, error) {
	if q.reaper == nil {
		return 0, errors.New("cleanup old jobs: repository does not support deletion")
	}
	if days < 0 {
		days = 0
	}
	cutoff := q.now().UTC().AddDate(0, 0, -days)
	n, err := q.reaper.DeleteOldJobs(ctx, core.DeleteOldJobsParams{Cutoff: cutoff})
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	q.logger.InfoContext(ctx, "old jobs deleted", "count", n, "days", days)
	return n, nil
}

func (q *JobQueue) emit(m metrics.JobMetric) {
	metrics.EmitJobLifecycle(q.metrics, m)
}
