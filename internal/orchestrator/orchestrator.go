// Package orchestrator runs the agents and drives the multi-step workflows
// (daily collection, historical backfill, reports) through the job queue.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/accounts"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/agent"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/service"
)

// Workflow priorities. Lower runs first.
const (
	PriorityReports     = 3
	PriorityAnalysis    = 4
	PriorityCollect     = 5
	PriorityAnomalies   = 5
	PriorityEngagement  = 6
	PriorityBackfill    = 8
	DailyEngagementDays = 7
	DailyThresholdPct   = 30.0
	DefaultCleanupDays  = 30
	dailyGuardName      = "daily_collection"
)

// ErrAlreadyRan is returned by RunDailyCollection when the workflow has
// already been started today.
var ErrAlreadyRan = errors.New("daily collection already ran today")

// Options configures an Orchestrator.
type Options struct {
	Queue    *service.JobQueue // Required
	Registry *agent.Registry   // Required
	Accounts core.AccountRepository

	// Loader imports the accounts file during Initialize. Optional.
	Loader *accounts.Loader
	// Migrate prepares the schema during Initialize. Optional.
	Migrate func(ctx context.Context) error
	// Guard skips a second daily run on the same day. Optional.
	Guard *core.RunGuard

	// PollInterval is how long an idle agent sleeps.
	PollInterval time.Duration
	// Concurrency maps an agent name to its worker count; missing means 1.
	Concurrency map[string]int
	// WaitTimeout bounds each barrier; zero waits for the context.
	WaitTimeout time.Duration
	// CleanupDays is the job age Cleanup purges; defaults to DefaultCleanupDays.
	CleanupDays int

	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// Orchestrator owns the agent runners and the workflows.
type Orchestrator struct {
	queue       *service.JobQueue
	registry    *agent.Registry
	accounts    core.AccountRepository
	loader      *accounts.Loader
	migrate     func(ctx context.Context) error
	guard       *core.RunGuard
	poll        time.Duration
	concurrency map[string]int
	waitTimeout time.Duration
	cleanupDays int
	logger      *slog.Logger
	metrics     statsd.Sink
	now         func() time.Time

	mu      sync.Mutex
	running bool
	runners []*agent.Runner
	group   *errgroup.Group
}

// New constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Queue == nil {
		return nil, errors.New("orchestrator: job queue is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("orchestrator: agent registry is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("orchestrator: account repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cleanupDays := opts.CleanupDays
	if cleanupDays <= 0 {
		cleanupDays = DefaultCleanupDays
	}

	return &Orchestrator{
		queue:       opts.Queue,
		registry:    opts.Registry,
		accounts:    opts.Accounts,
		loader:      opts.Loader,
		migrate:     opts.Migrate,
		guard:       opts.Guard,
		poll:        opts.PollInterval,
		concurrency: opts.Concurrency,
		waitTimeout: opts.WaitTimeout,
		cleanupDays: cleanupDays,
		logger:      logger.With("component", "orchestrator"),
		metrics:     opts.Metrics,
		now:         now,
	}, nil
}

// Initialize prepares the schema and imports the accounts file. It returns
// how many accounts were loaded.
func (o *Orchestrator) Initialize(ctx context.Context) (int, error) {
	o.logger.InfoContext(ctx, "initializing")
	if o.migrate != nil {
		if err := o.migrate(ctx); err != nil {
			return 0, fmt.Errorf("migrate: %w", err)
		}
	}
	if o.loader == nil {
		return 0, nil
	}
	n, err := o.loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load accounts: %w", err)
	}
	if missing := o.registry.Unowned(); len(missing) > 0 {
		o.logger.WarnContext(ctx, "job types without an agent", "types", missing)
	}
	o.logger.InfoContext(ctx, "initialized", "accounts", n)
	return n, nil
}

// StartAgents starts one runner per registered agent. Calling it while the
// agents run only logs a warning.
func (o *Orchestrator) StartAgents(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		o.logger.WarnContext(ctx, "agents already running")
		return nil
	}

	agents := o.registry.Agents()
	runners := make([]*agent.Runner, 0, len(agents))
	for _, a := range agents {
		r, err := agent.NewRunner(agent.RunnerOptions{
			Agent:        a,
			Queue:        o.queue,
			PollInterval: o.poll,
			Concurrency:  o.concurrency[a.Name()],
			Logger:       o.logger,
			Metrics:      o.metrics,
			Now:          o.now,
		})
		if err != nil {
			return fmt.Errorf("runner for %s: %w", a.Name(), err)
		}
		runners = append(runners, r)
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		group.Go(func() error { return r.Run(gctx) })
	}
	o.runners = runners
	o.group = group
	o.running = true
	o.logger.InfoContext(ctx, "agents started", "agents", len(runners))
	return nil
}

// StopAgents signals every runner and waits for the in-flight jobs to finish.
func (o *Orchestrator) StopAgents(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return nil
	}
	for _, r := range o.runners {
		r.Stop()
	}
	err := o.group.Wait()
	o.running = false
	o.runners = nil
	o.group = nil
	o.logger.InfoContext(ctx, "agents stopped")
	return err
}

// Running reports whether the agents have been started.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Step records one workflow stage.
type Step struct {
	Name     string `json:"step"`
	Accounts int    `json:"accounts,omitempty"`
	Month    string `json:"month,omitempty"`
	// Completed is false when the barrier timed out.
	Completed bool `json:"completed"`
}

// DailyOptions tunes RunDailyCollection.
type DailyOptions struct {
	// Force runs the workflow even when it already ran today.
	Force bool
}

// DailyResult summarizes a daily run.
type DailyResult struct {
	Success bool   `json:"success"`
	Steps   []Step `json:"steps"`
}

// RunDailyCollection collects every active account, refreshes recent
// engagement and recomputes the current month's metrics, benchmarks and
// anomalies. Each step waits for the previous one to drain.
func (o *Orchestrator) RunDailyCollection(ctx context.Context, opts DailyOptions) (*DailyResult, error) {
	now := o.now()
	if err := o.acquireDaily(ctx, now, opts.Force); err != nil {
		return nil, err
	}

	res, err := o.runDaily(ctx, model.YearMonthOf(now))
	if err != nil && o.guard != nil {
		if rerr := o.guard.Release(context.WithoutCancel(ctx), dailyGuardName, now); rerr != nil {
			o.logger.WarnContext(ctx, "release daily marker failed", "error", rerr)
		}
	}
	return res, err
}

func (o *Orchestrator) acquireDaily(ctx context.Context, now time.Time, force bool) error {
	if o.guard == nil {
		return nil
	}
	if force {
		if err := o.guard.Release(ctx, dailyGuardName, now); err != nil {
			return fmt.Errorf("release daily marker: %w", err)
		}
	}
	ok, err := o.guard.TryAcquire(ctx, dailyGuardName, now)
	if err != nil {
		return fmt.Errorf("acquire daily marker: %w", err)
	}
	if !ok {
		o.logger.InfoContext(ctx, "daily collection skipped", "reason", "already ran today")
		return ErrAlreadyRan
	}
	return nil
}

func (o *Orchestrator) runDaily(ctx context.Context, ym model.YearMonth) (*DailyResult, error) {
	o.logger.InfoContext(ctx, "daily collection started", "year_month", ym)
	res := &DailyResult{Success: true}
	record := func(s Step) {
		res.Steps = append(res.Steps, s)
		if !s.Completed {
			res.Success = false
		}
	}

	accts, err := o.accounts.List(ctx, model.AccountListOptions{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accts {
		if _, err := o.queue.Enqueue(ctx, model.CollectAccountPayload{AccountID: a.ID},
			service.EnqueueOptions{Priority: PriorityCollect}); err != nil {
			return nil, err
		}
	}
	done, err := o.wait(ctx, model.JobTypeCollectAccount)
	if err != nil {
		return nil, err
	}
	record(Step{Name: "collect_accounts", Accounts: len(accts), Completed: done})

	stages := []struct {
		name     string
		payload  model.Payload
		priority int
		month    bool
	}{
		{"update_engagement", model.UpdatePostEngagementPayload{Days: DailyEngagementDays}, PriorityEngagement, false},
		{"calculate_metrics", model.CalculateMonthlyPayload{YearMonth: ym.String()}, PriorityAnalysis, true},
		{"calculate_benchmarks", model.CalculateBenchmarksPayload{YearMonth: ym.String()}, PriorityAnalysis, false},
		{"detect_anomalies", model.DetectAnomaliesPayload{YearMonth: ym.String(), ThresholdPct: DailyThresholdPct}, PriorityAnomalies, false},
	}
	for _, st := range stages {
		if _, err := o.queue.Enqueue(ctx, st.payload, service.EnqueueOptions{Priority: st.priority}); err != nil {
			return nil, err
		}
		done, err := o.wait(ctx, st.payload.JobType())
		if err != nil {
			return nil, err
		}
		step := Step{Name: st.name, Completed: done}
		if st.month {
			step.Month = ym.String()
		}
		record(step)
	}

	o.logger.InfoContext(ctx, "daily collection finished", "year_month", ym, "success", res.Success)
	return res, nil
}

// BackfillResult reports how many historical jobs were queued.
type BackfillResult struct {
	AccountsQueued int    `json:"accounts_queued"`
	Country        string `json:"country,omitempty"`
}

// RunHistoricalBackfill queues a low priority backfill for every active
// account, or for one country. It does not wait for the jobs.
func (o *Orchestrator) RunHistoricalBackfill(ctx context.Context, country string) (*BackfillResult, error) {
	country = strings.ToLower(strings.TrimSpace(country))
	o.logger.InfoContext(ctx, "historical backfill started", "country", country)

	accts, err := o.accounts.List(ctx, model.AccountListOptions{Country: country, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for _, a := range accts {
		p := model.CollectHistoricalPayload{AccountID: a.ID, Months: model.DefaultHistoricalMonths}
		if _, err := o.queue.Enqueue(ctx, p, service.EnqueueOptions{Priority: PriorityBackfill}); err != nil {
			return nil, err
		}
	}
	o.logger.InfoContext(ctx, "historical backfill queued", "accounts", len(accts))
	return &BackfillResult{AccountsQueued: len(accts), Country: country}, nil
}

// ReportRequest selects the reports GenerateReports writes.
type ReportRequest struct {
	Type      model.ReportType
	YearMonth string
	Year      int
}

// ReportResult summarizes a report run.
type ReportResult struct {
	Type      model.ReportType `json:"type"`
	Period    string           `json:"period"`
	Completed bool             `json:"completed"`
}

// GenerateReports queues the printable report and the spreadsheet export for
// a month or a year and waits for both.
func (o *Orchestrator) GenerateReports(ctx context.Context, req ReportRequest) (*ReportResult, error) {
	kind := req.Type
	if kind == "" {
		kind = model.ReportMonthly
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown report type %q", model.ErrInvalidPayload, kind)
	}

	var (
		period model.ReportPeriod
		label  string
	)
	if kind == model.ReportMonthly {
		ym, err := model.ResolveYearMonth(req.YearMonth, o.now())
		if err != nil {
			return nil, err
		}
		period.YearMonth = ym.String()
		label = period.YearMonth
	} else {
		period.Year = req.Year
		if period.Year == 0 {
			period.Year = o.now().UTC().Year()
		}
		label = strconv.Itoa(period.Year)
	}

	payloads := []model.Payload{
		model.GeneratePDFPayload{ReportType: kind, ReportPeriod: period},
		model.ExportExcelPayload{ExportType: kind, ReportPeriod: period},
	}
	for _, p := range payloads {
		if _, err := o.queue.Enqueue(ctx, p, service.EnqueueOptions{Priority: PriorityReports}); err != nil {
			return nil, err
		}
	}
	done, err := o.wait(ctx, model.JobTypeGeneratePDF, model.JobTypeExportExcel)
	if err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "reports generated", "type", kind, "period", label, "completed", done)
	return &ReportResult{Type: kind, Period: label, Completed: done}, nil
}

func (o *Orchestrator) wait(ctx context.Context, types ...model.JobType) (bool, error) {
	done, err := o.queue.WaitForCompletion(ctx, o.waitTimeout, types...)
	if err != nil {
		return false, fmt.Errorf("wait for %v: %w", types, err)
	}
	return done, nil
}

// AccountTotals counts the monitored accounts.
type AccountTotals struct {
	Total      int                   `json:"total"`
	Active     int                   `json:"active"`
	ByPlatform []model.PlatformCount `json:"by_platform"`
}

// Status is a point-in-time view of the system.
type Status struct {
	Running  bool                `json:"running"`
	Agents   map[string]bool     `json:"agents"`
	Jobs     model.StatusSummary `json:"jobs"`
	Accounts AccountTotals       `json:"accounts"`
}

// Status reports the agents, the queue and the account totals.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	jobs, err := o.queue.StatusSummary(ctx)
	if err != nil {
		return nil, err
	}
	all, err := o.accounts.List(ctx, model.AccountListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	byPlatform, err := o.accounts.CountByPlatform(ctx)
	if err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}

	st := &Status{
		Jobs:     jobs,
		Agents:   map[string]bool{},
		Accounts: AccountTotals{Total: len(all), ByPlatform: byPlatform},
	}
	for _, a := range all {
		if a.Active() {
			st.Accounts.Active++
		}
	}

	o.mu.Lock()
	st.Running = o.running
	running := map[string]bool{}
	for _, r := range o.runners {
		running[r.Name()] = r.Running()
	}
	o.mu.Unlock()
	for _, a := range o.registry.Agents() {
		st.Agents[a.Name()] = running[a.Name()]
	}
	return st, nil
}

// Cleanup stops the agents, purges old finished jobs and closes the agents.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	var errs []error
	if err := o.StopAgents(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop agents: %w", err))
	}
	if _, err := o.queue.CleanupOldJobs(ctx, o.cleanupDays); err != nil {
		errs = append(errs, err)
	}
	if err := o.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	o.logger.InfoContext(ctx, "cleanup finished")
	return errors.Join(errs...)
}
