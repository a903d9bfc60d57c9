package config

import (
	"path/filepath"
	"strings"
)

// ReportsConfig contains report output configuration.
type ReportsConfig struct {
	// OutputDir receives the HTML reports and CSV exports.
	OutputDir string `env:"REPORTS_OUTPUT_DIR" envDefault:"data/reports"`
	// DashboardDir receives the dashboard JSON snapshots.
	DashboardDir string `env:"REPORTS_DASHBOARD_DIR" envDefault:"data/dashboard"`
}

// Sanitize applies guardrails to report configuration values.
func (r *ReportsConfig) Sanitize() {
	r.OutputDir = cleanDir(r.OutputDir, "data/reports")
	r.DashboardDir = cleanDir(r.DashboardDir, "data/dashboard")
}

// AccountsConfig points at the monitored accounts file.
type AccountsConfig struct {
	File string `env:"ACCOUNTS_FILE" envDefault:"config/accounts.yaml"`
	// Watch reloads the file into the account store when it changes while serving.
	Watch bool `env:"ACCOUNTS_WATCH" envDefault:"true"`
}

// Sanitize applies guardrails to account configuration values.
func (a *AccountsConfig) Sanitize() {
	a.File = strings.TrimSpace(a.File)
	if a.File == "" {
		a.File = "config/accounts.yaml"
		return
	}
	a.File = filepath.Clean(a.File)
}

func cleanDir(dir, fallback string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fallback
	}
	return filepath.Clean(dir)
}
