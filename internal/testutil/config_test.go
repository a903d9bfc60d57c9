package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTestDBConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want TestDBConfig
	}{
		{
			name: "local compose profile",
			want: TestDBConfig{Host: "localhost", Port: "55432", User: "socialmonitor", Password: "socialmonitor", DBName: "socialmonitor"},
		},
		{
			name: "ci overrides",
			env: map[string]string{
				"TEST_DB_HOST": "postgres",
				"TEST_DB_PORT": "5432",
				"TEST_DB_NAME": "monitor_ci",
			},
			want: TestDBConfig{Host: "postgres", Port: "5432", User: "socialmonitor", Password: "socialmonitor", DBName: "monitor_ci"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
				t.Setenv(key, tt.env[key])
			}
			assert.Equal(t, tt.want, DefaultTestDBConfig())
		})
	}
}

func TestTestDBConfigDSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p w", DBName: "monitor"}

	assert.Equal(t, "postgres://u:p%20w@db:5432/monitor?sslmode=disable", cfg.DSN(""))
	assert.Equal(t, "postgres://u:p%20w@db:5432/monitor?search_path=t_ab12%2Cpublic&sslmode=disable", cfg.DSN("t_ab12"))
}

func TestEnvBool(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "TRUE": true, "y": true, "no": false, "": false} {
		t.Setenv("TESTUTIL_FLAG", value)
		assert.Equal(t, want, envBool("TESTUTIL_FLAG"), "value %q", value)
	}
}
