package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents what the long running `serve` command starts.
type ServiceMode string

const (
	// ServiceModeAgents runs the data, analysis and report agents.
	ServiceModeAgents ServiceMode = "agents"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
	// ServiceModeSchedule triggers the daily workflow once per day.
	ServiceModeSchedule ServiceMode = "schedule"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeAgents,
		ServiceModeReaper,
		ServiceModeSchedule,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAgents, ServiceModeReaper, ServiceModeSchedule:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: agents, reaper, schedule)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// Queue backends.
const (
	QueueBackendPostgres = "postgres"
	QueueBackendMemory   = "memory"
)

// QueueConfig contains job queue configuration.
type QueueConfig struct {
	// Backend selects where jobs and collected data are stored: postgres or memory.
	Backend string `env:"QUEUE_BACKEND" envDefault:"postgres"`

	// PollInterval is how often WaitForCompletion re-checks the queue.
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`

	// WaitTimeout bounds each workflow barrier. Zero waits until the context ends.
	WaitTimeout time.Duration `env:"QUEUE_WAIT_TIMEOUT" envDefault:"0s"`

	// CleanupDays is the default age for the cleanup command.
	CleanupDays int `env:"QUEUE_CLEANUP_DAYS" envDefault:"30"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	q.Backend = strings.ToLower(strings.TrimSpace(q.Backend))
	if q.Backend != QueueBackendMemory {
		q.Backend = QueueBackendPostgres
	}
	if q.PollInterval < 100*time.Millisecond {
		q.PollInterval = 100 * time.Millisecond
	}
	if q.WaitTimeout < 0 {
		q.WaitTimeout = 0
	}
	if q.CleanupDays < 1 {
		q.CleanupDays = 1
	}
}

// AgentsConfig contains agent worker configuration.
type AgentsConfig struct {
	// PollInterval is how long an agent sleeps when the queue has nothing for it.
	PollInterval time.Duration `env:"AGENTS_POLL_INTERVAL" envDefault:"5s"`

	// DataConcurrency is the number of data agents. Collection is rate limited
	// per platform, so more than one mostly helps across platforms.
	DataConcurrency    int `env:"AGENTS_DATA_CONCURRENCY"     envDefault:"1"`
	AnalyseConcurrency int `env:"AGENTS_ANALYSE_CONCURRENCY"  envDefault:"1"`
	RapportConcurrency int `env:"AGENTS_RAPPORT_CONCURRENCY"  envDefault:"1"`

	// DailyRunHour is the local hour at which the schedule service starts the daily workflow.
	DailyRunHour int `env:"AGENTS_DAILY_RUN_HOUR" envDefault:"6"`
}

// Sanitize applies guardrails to agent configuration values.
func (a *AgentsConfig) Sanitize() {
	if a.PollInterval < 100*time.Millisecond {
		a.PollInterval = 100 * time.Millisecond
	}
	a.DataConcurrency = max(a.DataConcurrency, 1)
	a.AnalyseConcurrency = max(a.AnalyseConcurrency, 1)
	a.RapportConcurrency = max(a.RapportConcurrency, 1)
	if a.DailyRunHour < 0 || a.DailyRunHour > 23 {
		a.DailyRunHour = 6
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`

	// MaxAge is how long finished jobs (completed, failed, cancelled) are kept.
	MaxAge time.Duration `env:"REAPER_MAX_AGE" envDefault:"168h"` // 7 days

	// StaleRunningAfter is the age after which a running job is reported as stuck.
	// Stuck jobs are reported only; an operator decides what to do with them.
	StaleRunningAfter time.Duration `env:"REAPER_STALE_RUNNING_AFTER" envDefault:"2h"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.MaxAge < 1*time.Hour {
		r.MaxAge = 1 * time.Hour
	}
	if r.StaleRunningAfter < 5*time.Minute {
		r.StaleRunningAfter = 5 * time.Minute
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
