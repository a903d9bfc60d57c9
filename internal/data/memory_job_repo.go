package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/google/uuid"
)

// MemoryJobRepo is an in-process job store with the same transition rules as JobRepo.
// Jobs do not survive a restart.
type MemoryJobRepo struct {
	mu           sync.Mutex
	jobs         map[string]*memJob
	seq          uint64
	timeProvider TimeProvider
}

type memJob struct {
	job *model.Job
	seq uint64
}

// NewMemoryJobRepo creates an empty MemoryJobRepo.
func NewMemoryJobRepo(cfg RepoConfig) *MemoryJobRepo {
	tp, _ := cfg.resolve()
	return &MemoryJobRepo{jobs: map[string]*memJob{}, timeProvider: tp}
}

func cloneJob(j *model.Job) *model.Job {
	out := *j
	out.Payload = append(json.RawMessage(nil), j.Payload...)
	if j.Result != nil {
		out.Result = append(json.RawMessage(nil), j.Result...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	return &out
}

func (r *MemoryJobRepo) now() time.Time {
	return r.timeProvider.Now().UTC()
}

// Create stores a new pending job.
func (r *MemoryJobRepo) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	job := &model.Job{
		ID:         uuid.NewString(),
		Type:       req.Type,
		Priority:   req.Priority,
		Status:     model.JobStatusPending,
		Payload:    append(json.RawMessage(nil), req.Payload...),
		CreatedAt:  r.now(),
		MaxRetries: req.RetryBudget(),
	}
	r.jobs[job.ID] = &memJob{job: job, seq: r.seq}
	return cloneJob(job), nil
}

// GetByID returns a copy of the job or ErrJobNotFound.
func (r *MemoryJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mj, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(mj.job), nil
}

func typeSet(types []model.JobType) map[model.JobType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[model.JobType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// ClaimNext moves the most urgent pending job to running.
func (r *MemoryJobRepo) ClaimNext(_ context.Context, types []model.JobType) (*model.Job, error) {
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("invalid job type: %s", t)
		}
	}
	filter := typeSet(types)

	r.mu.Lock()
	defer r.mu.Unlock()

	var best *memJob
	for _, mj := range r.jobs {
		j := mj.job
		if j.Status != model.JobStatusPending || (filter != nil && !filter[j.Type]) {
			continue
		}
		if best == nil || claimsBefore(mj, best) {
			best = mj
		}
	}
	if best == nil {
		return nil, model.ErrNoJobsAvailable
	}

	now := r.now()
	best.job.Status = model.JobStatusRunning
	best.job.StartedAt = &now
	return cloneJob(best.job), nil
}

// claimsBefore orders by priority, then created_at, then insertion order.
func claimsBefore(a, b *memJob) bool {
	if a.job.Priority != b.job.Priority {
		return a.job.Priority < b.job.Priority
	}
	if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
		return a.job.CreatedAt.Before(b.job.CreatedAt)
	}
	return a.seq < b.seq
}

func marshalResultData(result model.JobResult) (json.RawMessage, error) {
	if result.Data == nil {
		return nil, nil
	}
	b, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return b, nil
}

// Complete finishes a running job; any other status is left untouched.
func (r *MemoryJobRepo) Complete(_ context.Context, id string, result model.JobResult) (bool, error) {
	doc, err := marshalResultData(result)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mj, ok := r.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	j := mj.job
	if j.Status != model.JobStatusRunning {
		return false, nil
	}

	now := r.now()
	j.CompletedAt = &now
	j.Result = doc
	if result.Success {
		j.Status = model.JobStatusCompleted
		j.Error = nil
	} else {
		j.Status = model.JobStatusFailed
		msg := result.FailureMessage()
		j.Error = &msg
	}
	return true, nil
}

// Fail records a failed attempt of a running job. With rearm set and budget
// left the job goes straight back to pending; otherwise it ends failed.
// Returns "" when the job was not running.
func (r *MemoryJobRepo) Fail(_ context.Context, id string, result model.JobResult, rearm bool) (model.JobStatus, error) {
	doc, err := marshalResultData(result)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mj, ok := r.jobs[id]
	if !ok {
		return "", ErrJobNotFound
	}
	j := mj.job
	if j.Status != model.JobStatusRunning {
		return "", nil
	}

	if rearm && j.CanRetry() {
		j.Retries++
		j.Status = model.JobStatusPending
		j.StartedAt = nil
		j.CompletedAt = nil
		j.Error = nil
		j.Result = nil
		return j.Status, nil
	}

	now := r.now()
	msg := result.FailureMessage()
	j.Status = model.JobStatusFailed
	j.CompletedAt = &now
	j.Result = doc
	j.Error = &msg
	return j.Status, nil
}

// Retry re-arms a running or failed job while its retry budget allows it.
// A pending job is already armed and is left as is.
func (r *MemoryJobRepo) Retry(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mj, ok := r.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	j := mj.job
	switch j.Status {
	case model.JobStatusPending:
		return true, nil
	case model.JobStatusRunning, model.JobStatusFailed:
	default:
		return false, nil
	}
	if !j.CanRetry() {
		return false, nil
	}
	j.Retries++
	j.Status = model.JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.Error = nil
	return true, nil
}

// Cancel forces the job to cancelled whatever its current status.
func (r *MemoryJobRepo) Cancel(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mj, ok := r.jobs[id]
	if !ok {
		return false, ErrJobNotFound
	}
	j := mj.job
	if j.StartedAt == nil {
		now := r.now()
		j.StartedAt = &now
	}
	j.Status = model.JobStatusCancelled
	j.CompletedAt = nil
	return true, nil
}

// CountPending counts pending jobs of the given types, or of every type when types is empty.
func (r *MemoryJobRepo) CountPending(_ context.Context, types []model.JobType) (int, error) {
	filter := typeSet(types)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, mj := range r.jobs {
		if mj.job.Status == model.JobStatusPending && (filter == nil || filter[mj.job.Type]) {
			n++
		}
	}
	return n, nil
}

// CountRunning counts running jobs of every type.
func (r *MemoryJobRepo) CountRunning(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, mj := range r.jobs {
		if mj.job.Status == model.JobStatusRunning {
			n++
		}
	}
	return n, nil
}

// StatusSummary returns the number of jobs per status.
func (r *MemoryJobRepo) StatusSummary(_ context.Context) (model.StatusSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := model.StatusSummary{}
	for _, mj := range r.jobs {
		summary[mj.job.Status]++
	}
	return summary, nil
}

// List returns jobs newest first with optional status and type filters.
func (r *MemoryJobRepo) List(_ context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	opts = opts.Normalized()

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*memJob, 0, len(r.jobs))
	for _, mj := range r.jobs {
		if opts.Status != nil && *opts.Status != "" && mj.job.Status != *opts.Status {
			continue
		}
		if opts.Type != nil && *opts.Type != "" && mj.job.Type != *opts.Type {
			continue
		}
		matched = append(matched, mj)
	}

	sort.Slice(matched, func(i, k int) bool { return matched[i].seq > matched[k].seq })
	if opts.Offset >= len(matched) {
		return []*model.Job{}, nil
	}
	matched = matched[opts.Offset:]
	if len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*model.Job, len(matched))
	for i, mj := range matched {
		out[i] = cloneJob(mj.job)
	}
	return out, nil
}

// finishedAt mirrors COALESCE(completed_at, started_at, created_at).
func finishedAt(j *model.Job) time.Time {
	switch {
	case j.CompletedAt != nil:
		return *j.CompletedAt
	case j.StartedAt != nil:
		return *j.StartedAt
	default:
		return j.CreatedAt
	}
}

// DeleteOldJobs removes completed, failed and cancelled jobs that ended before the cutoff.
func (r *MemoryJobRepo) DeleteOldJobs(_ context.Context, params core.DeleteOldJobsParams) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var victims []*memJob
	for _, mj := range r.jobs {
		if mj.job.Status.Terminal() && finishedAt(mj.job).Before(params.Cutoff) {
			victims = append(victims, mj)
		}
	}
	sort.Slice(victims, func(i, k int) bool { return finishedAt(victims[i].job).Before(finishedAt(victims[k].job)) })
	if params.BatchSize > 0 && len(victims) > params.BatchSize {
		victims = victims[:params.BatchSize]
	}
	for _, mj := range victims {
		delete(r.jobs, mj.job.ID)
	}
	return int64(len(victims)), nil
}

// ListStaleRunning returns running jobs started before the given time, oldest first.
func (r *MemoryJobRepo) ListStaleRunning(_ context.Context, params core.ListStaleRunningParams) ([]*model.Job, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Job
	for _, mj := range r.jobs {
		j := mj.job
		if j.Status == model.JobStatusRunning && j.StartedAt != nil && j.StartedAt.Before(params.StartedBefore) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].StartedAt.Before(*out[k].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
