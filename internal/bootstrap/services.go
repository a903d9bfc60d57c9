package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/accounts"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/agent"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/analysis"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/collector"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/data"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/observability/statsd"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/orchestrator"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/report"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/service"
)

// cachePrefix namespaces every Redis key of this application.
const cachePrefix = "socialmonitor:"

// JobStore is a job repository that also supports cleanup.
type JobStore interface {
	core.JobRepository
	core.ReaperRepository
}

// App holds the wired application.
type App struct {
	Config *config.AppConfig
	Logger *slog.Logger

	DB          *sql.DB               // nil with the memory backend
	RedisClient redis.UniversalClient // nil unless Redis is enabled
	Cache       core.CacheRepository
	Metrics     statsd.Sink

	Jobs         JobStore
	Queue        *service.JobQueue
	Stores       core.Stores
	Collectors   *collector.Registry
	Analysis     *analysis.Service
	Reports      *report.Writer
	Agents       *agent.Registry
	Accounts     *accounts.Loader
	Orchestrator *orchestrator.Orchestrator

	closers []func() error
}

// AppDeps groups dependencies for NewApp.
type AppDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// NewApp connects the stores and wires the queue, agents and orchestrator.
func NewApp(ctx context.Context, deps AppDeps) (*App, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: deps.Config, Logger: logger}

	if err := app.wire(ctx); err != nil {
		if cerr := app.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config
	a.Metrics = a.buildMetrics()

	if err := a.connectStores(ctx); err != nil {
		return err
	}
	if err := a.connectCache(ctx); err != nil {
		return err
	}

	queue, err := service.NewJobQueue(service.JobQueueOptions{
		Repo:         a.Jobs,
		Logger:       a.Logger,
		Metrics:      a.Metrics,
		PollInterval: cfg.Queue.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("job queue: %w", err)
	}
	a.Queue = queue

	a.Collectors, err = BuildCollectors(CollectorDeps{
		Config:  cfg.Collectors,
		Cache:   a.Cache,
		Logger:  a.Logger,
		Metrics: a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("collectors: %w", err)
	}

	if err := a.buildAgents(); err != nil {
		return err
	}

	a.Accounts, err = accounts.NewLoader(accounts.LoaderOptions{
		Path:     cfg.Accounts.File,
		Accounts: a.Stores.Accounts,
		Logger:   a.Logger,
	})
	if err != nil {
		return fmt.Errorf("accounts loader: %w", err)
	}

	guard, err := core.NewRunGuard(core.RunGuardOptions{Cache: a.Cache})
	if err != nil {
		return err
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Options{
		Queue:        a.Queue,
		Registry:     a.Agents,
		Accounts:     a.Stores.Accounts,
		Loader:       a.Accounts,
		Migrate:      a.migrateFunc(),
		Guard:        guard,
		PollInterval: cfg.Agents.PollInterval,
		Concurrency: map[string]int{
			agent.DataAgentName:    cfg.Agents.DataConcurrency,
			agent.AnalyseAgentName: cfg.Agents.AnalyseConcurrency,
			agent.RapportAgentName: cfg.Agents.RapportConcurrency,
		},
		WaitTimeout: cfg.Queue.WaitTimeout,
		CleanupDays: cfg.Queue.CleanupDays,
		Logger:      a.Logger,
		Metrics:     a.Metrics,
	})
	return err
}

// buildMetrics returns a StatsD sink, or nil when metrics are disabled.
//
//nolint:ireturn // a nil interface keeps the emitters' nil checks meaningful.
func (a *App) buildMetrics() statsd.Sink {
	m := a.Config.Observability.Metrics
	if !m.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: m.StatsdAddress,
		Prefix:  m.Prefix,
		Logger:  a.Logger,
	})
	if err != nil {
		a.Logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	a.closers = append(a.closers, client.Close)
	return client
}

func (a *App) connectStores(ctx context.Context) error {
	if a.Config.UsesMemoryBackend() {
		a.Logger.WarnContext(ctx, "using in-memory job and data stores; nothing survives a restart")
		a.Jobs = data.NewMemoryJobRepo(data.RepoConfig{Logger: a.Logger})
		a.Stores = data.NewMemoryStore(data.RepoConfig{Logger: a.Logger}).Stores()
		return nil
	}

	db, err := ConnectDB(DatabaseConfig{DBConfig: a.Config.Postgres, Logger: a.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	repoCfg := data.RepoConfig{Logger: a.Logger}
	a.Jobs = data.NewJobRepo(db, repoCfg)
	a.Stores = data.NewPostgresStores(db, repoCfg)
	return nil
}

func (a *App) connectCache(ctx context.Context) error {
	if !a.Config.Redis.Enabled {
		a.Logger.DebugContext(ctx, "redis disabled; using in-process cache")
		a.Cache = data.NewMemoryCacheRepo(nil)
		return nil
	}
	client, err := ConnectRedis(DatabaseConfig{RedisConfig: a.Config.Redis, Logger: a.Logger})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.RedisClient = client
	a.closers = append(a.closers, client.Close)
	a.Cache = data.NewRedisCacheRepo(client, cachePrefix)
	return nil
}

func (a *App) buildAgents() error {
	cfg := a.Config
	var err error

	a.Analysis, err = analysis.NewService(analysis.ServiceOptions{Stores: a.Stores, Logger: a.Logger})
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	a.Reports, err = report.New(report.Options{
		Analysis:     a.Analysis,
		OutputDir:    cfg.Reports.OutputDir,
		DashboardDir: cfg.Reports.DashboardDir,
		Logger:       a.Logger,
	})
	if err != nil {
		return fmt.Errorf("reports: %w", err)
	}

	dataAgent, err := agent.NewDataAgent(agent.DataAgentOptions{
		Stores:     a.Stores,
		Collectors: a.Collectors,
		Logger:     a.Logger,
	})
	if err != nil {
		return err
	}
	analyseAgent, err := agent.NewAnalyseAgent(agent.AnalyseAgentOptions{Analysis: a.Analysis, Logger: a.Logger})
	if err != nil {
		return err
	}
	rapportAgent, err := agent.NewRapportAgent(agent.RapportAgentOptions{Reports: a.Reports, Logger: a.Logger})
	if err != nil {
		return err
	}

	a.Agents, err = agent.NewRegistry(dataAgent, analyseAgent, rapportAgent)
	return err
}

// migrateFunc returns the schema migration step, or nil when there is nothing to migrate.
func (a *App) migrateFunc() func(context.Context) error {
	if a.DB == nil {
		return nil
	}
	if !a.Config.Postgres.RunMigrationsOnStart {
		a.Logger.Info("skipping database migrations on startup", "reason", "disabled via config")
		return nil
	}
	return func(ctx context.Context) error {
		return RunMigrations(ctx, a.DB, a.Logger)
	}
}

// Close releases the connections opened by NewApp, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second

	// serviceModeAccountsWatcher is not selectable through SERVICES; it runs
	// whenever ACCOUNTS_WATCH is set.
	serviceModeAccountsWatcher config.ServiceMode = "accounts-watcher"
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	app             *App
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newAgentsBackgroundService(app *App) backgroundService {
	return backgroundService{
		mode: config.ServiceModeAgents,
		name: "agents",
		start: func(ctx context.Context) error {
			if err := app.Orchestrator.StartAgents(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return app.Orchestrator.StopAgents(context.WithoutCancel(ctx))
		},
	}
}

func newReaperBackgroundService(app *App) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			return RunReaper(ctx, ReaperConfig{
				Repo:    app.Jobs,
				Backend: app.Config.Queue.Backend,
				Logger:  app.Logger,
				Config:  app.Config.Reaper,
				Metrics: app.Metrics,
			})
		},
	}
}

func newScheduleBackgroundService(app *App) backgroundService {
	return backgroundService{
		mode: config.ServiceModeSchedule,
		name: "daily schedule",
		start: func(ctx context.Context) error {
			return app.Orchestrator.RunSchedule(ctx, app.Config.Agents.DailyRunHour)
		},
	}
}

func newAccountsWatcherBackgroundService(app *App) backgroundService {
	return backgroundService{
		mode: serviceModeAccountsWatcher,
		name: "accounts watcher",
		start: func(ctx context.Context) error {
			return app.Accounts.Watch(ctx)
		},
	}
}

func buildBackgroundServices(app *App) []backgroundService {
	return []backgroundService{
		newAgentsBackgroundService(app),
		newReaperBackgroundService(app),
		newScheduleBackgroundService(app),
		newAccountsWatcherBackgroundService(app),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(ctx context.Context, app *App) error {
	if app == nil || app.Config == nil {
		return errors.New("app is required")
	}
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	enabledServices, err := app.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	enabledServices[serviceModeAccountsWatcher] = app.Config.Accounts.Watch
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	handles := startBackgroundServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		app:             app,
		logger:          app.Logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}, buildBackgroundServices(app))

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		logger:      app.Logger,
		backgrounds: handles,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := append(config.ValidServiceModes(), serviceModeAccountsWatcher)

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		gracefulStop(cfg)
		return nil
	case <-cfg.ctx.Done():
		gracefulStop(cfg)
		return nil
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		gracefulStop(cfg)
		return err
	}
}

// gracefulStop waits for the background services to finish.
func gracefulStop(cfg shutdownConfig) {
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
