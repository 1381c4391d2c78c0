package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEnv sets up environment variables for testing
func setupEnv(t *testing.T, envVars map[string]string) func() {
	// Save current environment values
	originalValues := make(map[string]string)
	for name := range envVars {
		originalValues[name] = os.Getenv(name)
	}

	// Set new environment variables
	for name, value := range envVars {
		err := os.Setenv(name, value)
		require.NoError(t, err, "Failed to set environment variable %s", name)
	}

	// Return cleanup function
	return func() {
		// Restore original environment
		for name, value := range originalValues {
			if value == "" {
				os.Unsetenv(name)
			} else {
				os.Setenv(name, value)
			}
		}
	}
}

// TestLoadDefaults verifies the defaults when no environment variables are set.
func TestLoadDefaults(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"SCAFFOLD_BACKEND_BASE_URL":      "",
		"SCAFFOLD_TRACKER_PROFILE":       "",
		"SCAFFOLD_TRACKER_POLL_INTERVAL": "",
		"SCAFFOLD_LOG_LEVEL":             "",
	})
	defer cleanup()

	cfg, err := Load(Options{})

	require.NoError(t, err, "Load() should not return an error with default values")
	require.NotNil(t, cfg, "Load() should return a non-nil config")
	assert.Equal(t, "https://learnscaffold-backend.onrender.com", cfg.Backend.BaseURL)
	assert.Equal(t, "/analyze/download/{task_id}", cfg.Backend.DownloadPath)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, ProfileStandard, cfg.Tracker.Profile)
	assert.Equal(t, 20*time.Second, cfg.Tracker.EffectivePollInterval(), "standard profile polls every 20s")
	assert.Equal(t, time.Second, cfg.Tracker.TickResolution)
	assert.Equal(t, 5*time.Minute, cfg.Notify.Threshold)
	assert.Equal(t, "info", cfg.Log.Level, "Default log level should be 'info'")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "scaffold_tracker", cfg.Metrics.Namespace)
}

// TestLoadFromEnv verifies that the Load function correctly reads values from environment variables.
func TestLoadFromEnv(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"SCAFFOLD_BACKEND_BASE_URL":      "http://localhost:8001/",
		"SCAFFOLD_BACKEND_PATH_PREFIX":   "/api/",
		"SCAFFOLD_BACKEND_DOWNLOAD_PATH": "/plan/{task_id}",
		"SCAFFOLD_TRACKER_PROFILE":       "FAST",
		"SCAFFOLD_NOTIFY_THRESHOLD":      "90s",
		"SCAFFOLD_LOG_LEVEL":             "debug",
		"SCAFFOLD_METRICS_ADDR":          ":9102",
	})
	defer cleanup()

	cfg, err := Load(Options{})

	require.NoError(t, err, "Load() should not return an error with valid environment variables")
	assert.Equal(t, "http://localhost:8001", cfg.Backend.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, "/api", cfg.Backend.PathPrefix)
	assert.Equal(t, "/plan/t-1", cfg.Backend.DownloadRoute("t-1"))
	assert.Equal(t, ProfileFast, cfg.Tracker.Profile)
	assert.Equal(t, 3*time.Second, cfg.Tracker.EffectivePollInterval(), "fast profile polls every 3s")
	assert.Equal(t, 90*time.Second, cfg.Notify.Threshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

// TestLoadPollIntervalOverride verifies that an explicit interval beats the profile.
func TestLoadPollIntervalOverride(t *testing.T) {
	cleanup := setupEnv(t, map[string]string{
		"SCAFFOLD_TRACKER_PROFILE":       "fast",
		"SCAFFOLD_TRACKER_POLL_INTERVAL": "7s",
	})
	defer cleanup()

	cfg, err := Load(Options{})

	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.Tracker.EffectivePollInterval())
}

// TestLoadFromFileAndFlags verifies file values and flag precedence.
func TestLoadFromFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.yaml")
	content := []byte(`
backend:
  base_url: http://file.example.com
  timeout: 5s
log:
  level: warn
  format: text
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))

	cfg, err := Load(Options{ConfigFile: path, Flags: flags})

	require.NoError(t, err)
	assert.Equal(t, "http://file.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "error", cfg.Log.Level, "flags override the config file")
}

// TestLoadMissingExplicitFile verifies that an explicit but missing file is an error.
func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// TestLoadValidationErrors verifies that the Load function correctly validates the configuration.
func TestLoadValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		envVars map[string]string
	}{
		{
			name:    "Invalid base URL",
			envVars: map[string]string{"SCAFFOLD_BACKEND_BASE_URL": "not a url"},
		},
		{
			name:    "Invalid profile",
			envVars: map[string]string{"SCAFFOLD_TRACKER_PROFILE": "turbo"},
		},
		{
			name:    "Invalid log level",
			envVars: map[string]string{"SCAFFOLD_LOG_LEVEL": "verbose"},
		},
		{
			name:    "Download path without placeholder",
			envVars: map[string]string{"SCAFFOLD_BACKEND_DOWNLOAD_PATH": "/plan/latest"},
		},
		{
			name:    "Negative poll interval",
			envVars: map[string]string{"SCAFFOLD_TRACKER_POLL_INTERVAL": "-1s"},
		},
		{
			name:    "Invalid metrics address",
			envVars: map[string]string{"SCAFFOLD_METRICS_ADDR": "nine-one-oh-two"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cleanup := setupEnv(t, tc.envVars)
			defer cleanup()

			cfg, err := Load(Options{})

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestProfileInterval(t *testing.T) {
	assert.Equal(t, 20*time.Second, ProfileInterval(ProfileStandard))
	assert.Equal(t, 3*time.Second, ProfileInterval(ProfileFast))
	assert.Equal(t, 20*time.Second, ProfileInterval("unknown"))
}
