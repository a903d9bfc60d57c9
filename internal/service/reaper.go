package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	obserrors "github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/errors"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/metrics"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
)

// staleReportLimit caps how many stuck jobs one pass lists in the log.
const staleReportLimit = 50

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required
	Config  config.ReaperConfig   // Required; Interval must be positive
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// ReaperService deletes finished jobs past the retention window and reports
// running jobs that have not finished in time. Stuck jobs are never re-armed:
// a crashed agent leaves its job running and an operator decides what to do.
type ReaperService struct {
	repo    core.ReaperRepository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService validates opts and applies defaults.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("reaper: repository is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper: interval must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ReaperService{
		repo:    opts.Repo,
		cfg:     opts.Config,
		logger:  logger.With("component", "reaper"),
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run sweeps once after a short random delay and then on every interval
// until ctx ends. Cancellation returns nil; a deadline returns ctx.Err().
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "reaper started",
		"interval", s.cfg.Interval,
		"max_age", s.cfg.MaxAge,
		"stale_running_after", s.cfg.StaleRunningAfter,
	)

	// up to 10% of the interval so replicas started together do not sweep in lockstep
	if spread := int64(s.cfg.Interval / 10); spread > 0 {
		if !sleepCtx(ctx, time.Duration(rand.Int64N(spread))) {
			return s.stopped(ctx)
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.logSweepError(ctx, s.RunOnce(ctx))
		select {
		case <-ctx.Done():
			return s.stopped(ctx)
		case <-ticker.C:
		}
	}
}

func (s *ReaperService) stopped(ctx context.Context) error {
	s.logger.InfoContext(ctx, "reaper stopping", "reason", ctx.Err())
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type sweepStep struct {
	operation string // metric tag
	label     string // error prefix
	run       func(context.Context) (int64, error)
}

type sweepResult struct {
	operation string
	count     int64
	err       error
}

// RunOnce performs one pass. Every step runs even if an earlier one fails;
// the errors are joined. When every failure is a cancellation the result
// is context.Canceled.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.now()
	steps := []sweepStep{
		{operation: "delete_jobs", label: "delete old jobs", run: s.deleteOldJobs},
		{operation: "report_stale_running", label: "report stale running jobs", run: s.reportStaleRunning},
	}

	results := make([]sweepResult, 0, len(steps))
	var errs []error
	onlyCancelled := true
	for _, step := range steps {
		n, err := step.run(ctx)
		results = append(results, sweepResult{operation: step.operation, count: n, err: err})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			onlyCancelled = onlyCancelled && obserrors.IsCancellation(err)
		}
	}
	s.record(results, s.now().Sub(start))

	if len(errs) == 0 {
		return nil
	}
	if onlyCancelled {
		return context.Canceled
	}
	return fmt.Errorf("reaper sweep: %w", errors.Join(errs...))
}

// deleteOldJobs repeats batched deletes until a batch removes nothing.
func (s *ReaperService) deleteOldJobs(ctx context.Context) (int64, error) {
	params := core.DeleteOldJobsParams{
		Cutoff:    s.now().Add(-s.cfg.MaxAge),
		BatchSize: s.cfg.BatchSize,
	}
	var total int64
	for {
		n, err := s.repo.DeleteOldJobs(ctx, params)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			break
		}
		if err = ctx.Err(); err != nil {
			return total, err
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "deleted finished jobs", "count", total, "cutoff", params.Cutoff)
	}
	return total, nil
}

func (s *ReaperService) reportStaleRunning(ctx context.Context) (int64, error) {
	jobs, err := s.repo.ListStaleRunning(ctx, core.ListStaleRunningParams{
		StartedBefore: s.now().Add(-s.cfg.StaleRunningAfter),
		Limit:         staleReportLimit,
	})
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Gauge("reaper.stale_running", float64(len(jobs)), nil)
	}
	for _, job := range jobs {
		s.logger.WarnContext(ctx, "job running for too long",
			"id", job.ID,
			"type", job.Type,
			"started_at", job.StartedAt,
			"threshold", s.cfg.StaleRunningAfter,
		)
	}
	return int64(len(jobs)), nil
}

// record emits one reaper.cleanup count for the pass plus a
// reaper.cleanup_operation count per step. Cancellations are not errors here.
func (s *ReaperService) record(results []sweepResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var passErr error
	var deleted int64
	for _, r := range results {
		err := r.err
		if obserrors.IsCancellation(err) {
			err = nil
		}
		if passErr == nil {
			passErr = err
		}
		if r.operation == "delete_jobs" {
			deleted = r.count
		}

		tags := resultTags(err, r.count)
		tags["operation"] = r.operation
		s.metrics.Count("reaper.cleanup_operation", 1, tags)
		if err == nil && r.count > 0 {
			s.metrics.Count("reaper.jobs_processed", r.count, metrics.CloneTags(tags))
		}
	}

	tags := resultTags(passErr, deleted)
	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	if passErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func resultTags(err error, count int64) map[string]string {
	switch {
	case err != nil:
		tags := map[string]string{"result": metrics.ResultError}
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
		return tags
	case count == 0:
		return map[string]string{"result": metrics.ResultNoop}
	default:
		return map[string]string{"result": metrics.ResultSuccess}
	}
}

func (s *ReaperService) logSweepError(ctx context.Context, err error) {
	switch {
	case err == nil:
	case obserrors.IsCancellation(err):
		s.logger.DebugContext(ctx, "reaper sweep cancelled", "error", err)
	default:
		s.logger.ErrorContext(ctx, "reaper sweep failed", "error", err)
	}
}
