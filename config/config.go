package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres and Redis
//   - services.go: service modes, queue, agents and reaper
//   - collectors.go: scraping and per-platform rate limits
//   - reports.go: report output and the accounts file
//   - observability.go: metrics and logging
type AppConfig struct {
	// IsDev switches to human readable logs and debug level.
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Services is a comma-delimited list of what `serve` runs.
	Services string `env:"SERVICES" envDefault:"agents,reaper"`

	Queue      QueueConfig
	Agents     AgentsConfig
	Collectors CollectorsConfig
	Reaper     ReaperConfig
	Reports    ReportsConfig
	Accounts   AccountsConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Queue.Sanitize()
	c.Agents.Sanitize()
	c.Collectors.Sanitize()
	c.Reaper.Sanitize()
	c.Reports.Sanitize()
	c.Accounts.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks APP_ENV as a fallback for DEV.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsAgentsEnabled returns true if the queue agents run in `serve`.
func (c *AppConfig) IsAgentsEnabled() bool {
	return c.serviceEnabled(ServiceModeAgents)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.serviceEnabled(ServiceModeReaper)
}

// IsScheduleEnabled returns true if `serve` triggers the daily workflow itself.
func (c *AppConfig) IsScheduleEnabled() bool {
	return c.serviceEnabled(ServiceModeSchedule)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// UsesMemoryBackend reports whether the queue and domain data live in process memory.
func (c *AppConfig) UsesMemoryBackend() bool {
	return c.Queue.Backend == QueueBackendMemory
}
