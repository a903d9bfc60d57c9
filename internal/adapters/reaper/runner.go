// Package reaper runs the job reaper against whichever job store the app
// was wired with.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/service"
)

// RunnerOptions holds the dependencies for a Runner.
type RunnerOptions struct {
	// Repo is the Postgres JobRepo or the in-memory repo.
	Repo core.ReaperRepository
	// Backend labels log lines, e.g. "postgres" or "memory".
	Backend string
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Runner owns one ReaperService.
type Runner struct {
	svc     *service.ReaperService
	backend string
	logger  *slog.Logger
}

// NewRunner builds the reaper service for opts.Repo.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Repo == nil {
		return nil, errors.New("reaper repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    opts.Repo,
		Config:  opts.Config,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reaper runner: %w", err)
	}
	return &Runner{svc: svc, backend: opts.Backend, logger: logger}, nil
}

// Run blocks until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "reaper runner started", "backend", r.backend)
	err := r.svc.Run(ctx)
	r.logger.InfoContext(ctx, "reaper runner stopped", "backend", r.backend, "error", err)
	return err
}

// RunOnce performs a single sweep.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.svc.RunOnce(ctx)
}
