package config

import (
	"fmt"
	"strings"
	"time"
)

// Deployment profiles select the default poll interval.
const (
	ProfileStandard = "standard"
	ProfileFast     = "fast"
)

// profileIntervals is the single source of the per-profile poll cadence.
var profileIntervals = map[string]time.Duration{
	ProfileStandard: 20 * time.Second,
	ProfileFast:     3 * time.Second,
}

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Backend BackendConfig `mapstructure:"backend" validate:"required"`
	Tracker TrackerConfig `mapstructure:"tracker" validate:"required"`
	Notify  NotifyConfig  `mapstructure:"notify" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// BackendConfig describes how to reach the LearnScaffold backend.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// PathPrefix is prepended to every route, e.g. "/api".
	PathPrefix string `mapstructure:"path_prefix" validate:"omitempty,startswith=/"`
	// DownloadPath is the result route; "{task_id}" is substituted.
	DownloadPath string        `mapstructure:"download_path" validate:"required,startswith=/,contains={task_id}"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
}

// TrackerConfig controls polling and elapsed-time reporting.
type TrackerConfig struct {
	Profile string `mapstructure:"profile" validate:"required,oneof=standard fast"`
	// PollInterval overrides the profile's interval when non-zero.
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gte=0"`
	TickResolution time.Duration `mapstructure:"tick_resolution" validate:"required,gt=0"`
}

// NotifyConfig controls the email side channel.
type NotifyConfig struct {
	Threshold time.Duration `mapstructure:"threshold" validate:"required,gt=0"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" validate:"required"`
	// Addr serves /metrics when set, e.g. ":9102".
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// EffectivePollInterval returns the configured override or the profile
// default.
func (c TrackerConfig) EffectivePollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return ProfileInterval(c.Profile)
}

// ProfileInterval returns the default poll interval for a profile. Unknown
// profiles get the standard interval.
func ProfileInterval(profile string) time.Duration {
	if d, ok := profileIntervals[strings.ToLower(profile)]; ok {
		return d
	}
	return profileIntervals[ProfileStandard]
}

// DownloadRoute renders DownloadPath for taskID.
func (c BackendConfig) DownloadRoute(taskID string) string {
	return strings.ReplaceAll(c.DownloadPath, "{task_id}", taskID)
}

// String returns a log-safe summary.
func (c BackendConfig) String() string {
	return fmt.Sprintf("base_url=%s prefix=%q timeout=%s", c.BaseURL, c.PathPrefix, c.Timeout)
}
