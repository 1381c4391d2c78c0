package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var (
	errNoTarget      = errors.New("one of --file or --task-id is required")
	errBothTargets   = errors.New("--file and --task-id are mutually exclusive")
	errNotifyNoEmail = errors.New("--notify-now requires --email")
)

// options are the command's own flags. Configuration flags are bound into
// config.Load through config.FlagKeys.
type options struct {
	ConfigFile  string
	File        string
	TaskID      string
	Days        int
	HoursPerDay float64
	Language    string
	Email       string
	NotifyNow   bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tracker", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVar(&opts.File, "file", "", "document to analyze and build a study plan for")
	fs.StringVar(&opts.TaskID, "task-id", "", "resume tracking an existing task")
	fs.IntVar(&opts.Days, "days", 0, "plan length in days (default: backend suggestion)")
	fs.Float64Var(&opts.HoursPerDay, "hours-per-day", 0, "study hours per day (default: backend suggestion)")
	fs.StringVar(&opts.Language, "language", "", "plan language, e.g. en")
	fs.StringVar(&opts.Email, "email", "", "email the download link when the task takes long")
	fs.BoolVar(&opts.NotifyNow, "notify-now", false, "register --email immediately instead of waiting for the offer")
	fs.StringVar(&opts.ConfigFile, "config", "", "config file (default ./tracker.yaml if present)")

	fs.String("backend-url", "", "backend base URL")
	fs.String("path-prefix", "", "route prefix, e.g. /api")
	fs.Duration("timeout", 0, "per-request timeout")
	fs.String("profile", "", "deployment profile: standard or fast")
	fs.Duration("poll-interval", 0, "status poll interval, overrides the profile")
	fs.Duration("notify-threshold", 0, "elapsed time before offering email notification")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "json or text")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")

	return fs
}

func (o *options) validate() error {
	o.File = strings.TrimSpace(o.File)
	o.TaskID = strings.TrimSpace(o.TaskID)
	o.Email = strings.TrimSpace(o.Email)

	switch {
	case o.File == "" && o.TaskID == "":
		return errNoTarget
	case o.File != "" && o.TaskID != "":
		return errBothTargets
	case o.NotifyNow && o.Email == "":
		return errNotifyNoEmail
	case o.Days < 0:
		return fmt.Errorf("--days must be positive, got %d", o.Days)
	case o.HoursPerDay < 0:
		return fmt.Errorf("--hours-per-day must be positive, got %g", o.HoursPerDay)
	}
	return nil
}
