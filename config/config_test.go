package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdirForTest(t, t.TempDir()) // no .env here

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "./budget.db", cfg.Database.Path)
	assert.True(t, cfg.Recurring.Enabled)
	assert.Equal(t, "@daily", cfg.Recurring.Schedule)
	assert.True(t, cfg.Budget.EmergencyFundPercentage.Equal(decimal.NewFromInt(10)))
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"APP_ENV=production\nSERVER_PORT=9090\nLOG_LEVEL=debug\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\nEMERGENCY_FUND_PERCENTAGE=12.5\nRECURRING_SCHEDULE=0 6 * * *\n",
	), 0o600))
	t.Setenv("ENV_FILE", envFile)
	for _, k := range []string{"APP_ENV", "SERVER_PORT", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS", "EMERGENCY_FUND_PERCENTAGE", "RECURRING_SCHEDULE"} {
		unsetForTest(t, k)
	}

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.IsLocal())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.True(t, cfg.Budget.EmergencyFundPercentage.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "0 6 * * *", cfg.Recurring.Schedule)
}

func TestLoad_InvalidValues(t *testing.T) {
	chdirForTest(t, t.TempDir())

	tests := map[string]string{
		"SERVER_PORT":               "abc",
		"SERVER_READ_TIMEOUT":       "soon",
		"LOG_LEVEL":                 "loud",
		"RECURRING_ENABLED":         "maybe",
		"RECURRING_SCHEDULE":        "every tuesday",
		"EMERGENCY_FUND_PERCENTAGE": "150",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			_, err := Load()

			assert.Error(t, err)
		})
	}
}

// unsetForTest clears a variable for the duration of the test. godotenv never
// overrides existing variables, and t.Setenv restores the original on cleanup.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
