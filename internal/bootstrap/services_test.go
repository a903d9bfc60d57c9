package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "agents only",
			modes: []config.ServiceMode{config.ServiceModeAgents},
			want:  1,
		},
		{
			name:  "agents and reaper",
			modes: []config.ServiceMode{config.ServiceModeAgents, config.ServiceModeReaper},
			want:  2,
		},
		{
			name:  "schedule with accounts watcher",
			modes: []config.ServiceMode{config.ServiceModeSchedule, serviceModeAccountsWatcher},
			want:  2,
		},
		{
			name: "all services enabled",
			modes: []config.ServiceMode{
				config.ServiceModeAgents,
				config.ServiceModeReaper,
				config.ServiceModeSchedule,
				serviceModeAccountsWatcher,
			},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
		})
	}
}

func TestErrorChannelBufferSize(t *testing.T) {
	enabled := map[config.ServiceMode]bool{
		config.ServiceModeAgents:   true,
		config.ServiceModeReaper:   true,
		config.ServiceModeSchedule: false,
	}
	assert.Equal(t, 3, errorChannelBufferSize(enabled))
	assert.Equal(t, 1, errorChannelBufferSize(nil))
}

func memoryConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`accounts:
  de:
    platforms:
      instagram: [nlindeutschland]
      facebook: [NLinDeutschland]
`), 0o600))

	return &config.AppConfig{
		Services: "agents",
		Queue: config.QueueConfig{
			Backend:      config.QueueBackendMemory,
			PollInterval: 10 * time.Millisecond,
			WaitTimeout:  time.Second,
			CleanupDays:  30,
		},
		Agents: config.AgentsConfig{
			PollInterval:       10 * time.Millisecond,
			DataConcurrency:    1,
			AnalyseConcurrency: 1,
			RapportConcurrency: 1,
		},
		Reports: config.ReportsConfig{
			OutputDir:    filepath.Join(dir, "reports"),
			DashboardDir: filepath.Join(dir, "dashboard"),
		},
		Accounts: config.AccountsConfig{File: path},
	}
}

func TestNewAppMemoryBackend(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, AppDeps{Config: memoryConfig(t)})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	assert.Nil(t, app.DB)
	assert.Nil(t, app.RedisClient)
	assert.Nil(t, app.Metrics)
	assert.Len(t, app.Collectors.Platforms(), 3)
	assert.Len(t, app.Agents.Agents(), 3)
	assert.Empty(t, app.Agents.Unowned())

	n, err := app.Orchestrator.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status, err := app.Orchestrator.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 2, status.Accounts.Active)
}

func TestNewAppRequiresConfig(t *testing.T) {
	_, err := NewApp(context.Background(), AppDeps{})
	require.Error(t, err)
}

func TestRunServicesWithShutdownStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), AppDeps{Config: memoryConfig(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunServicesWithShutdown(ctx, app) }()

	require.Eventually(t, app.Orchestrator.Running, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("services did not stop")
	}
	assert.Eventually(t, func() bool { return !app.Orchestrator.Running() }, time.Second, 5*time.Millisecond)
}
