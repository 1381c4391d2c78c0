package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for configuration environment variables, e.g.
// SCAFFOLD_BACKEND_BASE_URL.
const EnvPrefix = "SCAFFOLD"

// Options tune where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit config file path. When empty, Load looks for
	// "tracker.yaml" in the working directory and ignores its absence.
	ConfigFile string
	// Flags, when set, override every other source for the flags listed in
	// FlagKeys that the user actually changed.
	Flags *pflag.FlagSet
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"backend-url":      "backend.base_url",
	"path-prefix":      "backend.path_prefix",
	"timeout":          "backend.timeout",
	"profile":          "tracker.profile",
	"poll-interval":    "tracker.poll_interval",
	"notify-threshold": "notify.threshold",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-addr":     "metrics.addr",
}

// setDefaults registers default values for every key. Every key must have a
// default so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "https://learnscaffold-backend.onrender.com")
	v.SetDefault("backend.path_prefix", "")
	v.SetDefault("backend.download_path", "/analyze/download/{task_id}")
	v.SetDefault("backend.timeout", "30s")

	v.SetDefault("tracker.profile", ProfileStandard)
	v.SetDefault("tracker.poll_interval", "0s")
	v.SetDefault("tracker.tick_resolution", "1s")

	v.SetDefault("notify.threshold", "5m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.namespace", "scaffold_tracker")
	v.SetDefault("metrics.addr", "")
}

// Load configuration from defaults, an optional config file, environment
// variables and flags, in increasing order of precedence.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("tracker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			flag := opts.Flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Tracker.Profile = strings.ToLower(strings.TrimSpace(cfg.Tracker.Profile))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	cfg.Backend.PathPrefix = strings.TrimRight(strings.TrimSpace(cfg.Backend.PathPrefix), "/")

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
