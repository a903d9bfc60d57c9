package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/config"
)

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name     string
		services string
		wantErr  bool
	}{
		{name: "defaults", services: "agents,reaper"},
		{name: "schedule only", services: "schedule"},
		{name: "unknown mode", services: "agents,http", wantErr: true},
		{name: "empty", services: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServiceConfig(&config.AppConfig{Services: tt.services})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}

	require.Error(t, ValidateServiceConfig(nil))
}

func TestGetEnabledServicesOrder(t *testing.T) {
	cfg := &config.AppConfig{Services: "schedule, agents"}
	assert.Equal(t, []string{"agents", "schedule"}, GetEnabledServices(cfg))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "nope"}))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestApplyDevLogging(t *testing.T) {
	t.Run("dev switches to debug text", func(t *testing.T) {
		cfg := config.AppConfig{IsDev: true}
		applyDevLogging(&cfg)
		assert.Equal(t, "debug", cfg.Observability.Logging.Level)
		assert.Equal(t, config.LogFormatText, cfg.Observability.Logging.Format)
	})

	t.Run("explicit level wins", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "warn")
		cfg := config.AppConfig{IsDev: true}
		cfg.Observability.Logging.Level = "warn"
		applyDevLogging(&cfg)
		assert.Equal(t, "warn", cfg.Observability.Logging.Level)
	})

	t.Run("production untouched", func(t *testing.T) {
		cfg := config.AppConfig{}
		cfg.Observability.Logging.Format = "json"
		applyDevLogging(&cfg)
		assert.Equal(t, "json", cfg.Observability.Logging.Format)
	})
}
