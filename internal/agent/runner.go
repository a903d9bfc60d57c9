package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/metrics"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/service"
)

// DefaultPollInterval is how long a worker sleeps when the queue has nothing
// for its agent.
const DefaultPollInterval = 5 * time.Second

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Agent Agent
	Queue *service.JobQueue

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Concurrency is the number of worker goroutines; defaults to 1.
	Concurrency int

	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// Runner pulls the jobs of one agent and executes them.
type Runner struct {
	agent   Agent
	types   []model.JobType
	queue   *service.JobQueue
	poll    time.Duration
	workers int
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}

	mu      sync.Mutex
	running bool
}

// NewRunner constructs a Runner for opts.Agent.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("job queue is required")
	}
	types := opts.Agent.JobTypes()
	if len(types) == 0 {
		return nil, fmt.Errorf("agent %s: no job types", opts.Agent.Name())
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		agent:   opts.Agent,
		types:   append([]model.JobType(nil), types...),
		queue:   opts.Queue,
		poll:    poll,
		workers: workers,
		logger:  logger.With("component", "agent", "agent", opts.Agent.Name()),
		metrics: opts.Metrics,
		now:     now,
		stop:    make(chan struct{}),
	}, nil
}

// Name returns the name of the driven agent.
func (r *Runner) Name() string { return r.agent.Name() }

// Running reports whether Run is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stop asks every worker to exit after its current job. It does not wait;
// Run returns once the workers are done.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Runner) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// Run starts the workers and processes jobs until ctx is cancelled or Stop
// is called. A claim error ends only the current iteration; the worker logs
// it and sleeps the poll interval.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("agent %s is already running", r.agent.Name())
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.InfoContext(ctx, "starting agent", "types", r.types, "workers", r.workers, "poll", r.poll)

	var wg sync.WaitGroup
	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx)
		}()
	}
	wg.Wait()

	r.logger.InfoContext(ctx, "agent stopped")
	if r.stopped() || errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context) {
	for ctx.Err() == nil && !r.stopped() {
		processed, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.ErrorContext(ctx, "agent iteration failed", "error", err)
		}
		if processed && err == nil {
			continue
		}
		if !r.sleep(ctx) {
			return
		}
	}
}

// sleep waits one poll interval. It returns false when the runner should exit.
func (r *Runner) sleep(ctx context.Context) bool {
	t := time.NewTimer(r.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.stop:
		return false
	case <-t.C:
		return true
	}
}

// RunOnce claims and processes at most one job of the agent's types. It
// reports whether a job was processed.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.queue.GetNext(ctx, r.types...)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	return true, r.processJob(ctx, job)
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) error {
	start := r.now()
	log := r.logger.With("job_id", job.ID, "type", job.Type)
	log.InfoContext(ctx, "processing job", "retries", job.Retries, "priority", job.Priority)

	var (
		result   model.JobResult
		panicked bool
	)
	if owns(r.agent, job.Type) {
		result, panicked = r.safeProcess(ctx, job)
	} else {
		result = model.Failed(fmt.Errorf("agent %s does not process %s jobs", r.agent.Name(), job.Type))
		result.NoRetry = true
	}

	outcome := metrics.ResultSuccess
	if !result.Success {
		outcome = metrics.ResultError
	}
	metrics.EmitAgentRun(r.metrics, metrics.AgentMetric{
		Agent:    r.agent.Name(),
		JobType:  string(job.Type),
		Result:   outcome,
		Panicked: panicked,
		Duration: r.now().Sub(start),
	})

	// The outcome is recorded even when shutdown cancelled ctx mid-job.
	finishCtx := context.WithoutCancel(ctx)

	if result.Success {
		_, err := r.queue.Complete(finishCtx, job, result)
		return err
	}

	status, err := r.queue.Fail(finishCtx, job, result)
	if err != nil {
		return err
	}
	if status == model.JobStatusFailed && result.NoRetry {
		log.WarnContext(ctx, "job failed and will not be retried", "error", result.FailureMessage())
	}
	return nil
}

// safeProcess runs the agent and converts a panic into a failed result.
func (r *Runner) safeProcess(ctx context.Context, job *model.Job) (result model.JobResult, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "agent panicked",
				"job_id", job.ID,
				"type", job.Type,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			result = model.Failed(fmt.Errorf("panic: %v", rec))
			panicked = true
		}
	}()
	return r.agent.ProcessJob(ctx, job), false
}
