package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/phrazzld/scaffold-tracker/internal/backend"
	"github.com/phrazzld/scaffold-tracker/internal/config"
	"github.com/phrazzld/scaffold-tracker/internal/events"
	"github.com/phrazzld/scaffold-tracker/internal/notify"
	"github.com/phrazzld/scaffold-tracker/internal/platform/httpbackend"
	"github.com/phrazzld/scaffold-tracker/internal/platform/logger"
	"github.com/phrazzld/scaffold-tracker/internal/platform/metrics"
	"github.com/phrazzld/scaffold-tracker/internal/status"
	"github.com/phrazzld/scaffold-tracker/internal/task"
)

// application holds the command's dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger
	out    *syncWriter

	client     backend.Client
	controller *task.Controller
	emitter    *events.InMemoryEventEmitter
	metrics    *metrics.Metrics

	// registrations tracks background notification registrations. Once
	// regClosed is set no new registration is started.
	regMu         sync.Mutex
	regClosed     bool
	registrations sync.WaitGroup
}

// syncWriter serializes writes from callbacks running on timer goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, format, args...)
}

// run executes the command and returns its exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintf(stderr, "tracker: %v\n", err)
		return exitFailure
	}
	if err := opts.validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "tracker: %v\n", err)
		return exitFailure
	}

	cfg, err := config.Load(config.Options{ConfigFile: opts.ConfigFile, Flags: fs})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "tracker: failed to load configuration: %v\n", err)
		return exitFailure
	}

	log, err := logger.Setup(stderr, cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "tracker: failed to set up logger: %v\n", err)
		return exitFailure
	}
	log.Debug("configuration loaded",
		"backend", cfg.Backend.String(),
		"profile", cfg.Tracker.Profile,
		"poll_interval", cfg.Tracker.EffectivePollInterval())

	app := newApplication(cfg, log, httpbackend.New(cfg.Backend, log), prometheus.NewRegistry(), stdout)

	if cfg.Metrics.Addr != "" {
		shutdown, err := app.serveMetrics(cfg.Metrics.Addr)
		if err != nil {
			log.Error("failed to start metrics server", "error", err, "addr", cfg.Metrics.Addr)
			return exitFailure
		}
		defer shutdown()
	}

	return app.track(ctx, opts)
}

// newApplication wires the tracking engine around client.
func newApplication(
	cfg *config.Config,
	log *slog.Logger,
	client backend.Client,
	reg *prometheus.Registry,
	stdout io.Writer,
) *application {
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.EventHandlerFunc(func(ctx context.Context, event *events.TaskEvent) error {
		log.Info("task event",
			"event_type", event.Type,
			"event_id", event.ID,
			"task_id", event.TaskID,
			"session_id", event.SessionID)
		return nil
	}), events.TypeTaskCompleted, events.TypeTaskFailed, events.TypeNotificationOffered)

	controller := task.NewController(client, notify.NewMonitor(client, log), task.ControllerConfig{
		PollInterval:    cfg.Tracker.EffectivePollInterval(),
		TickResolution:  cfg.Tracker.TickResolution,
		NotifyThreshold: cfg.Notify.Threshold,
	}, log)
	controller.SetEmitter(emitter)
	controller.SetMetrics(m)

	return &application{
		config:     cfg,
		logger:     log.With("component", "cli"),
		out:        &syncWriter{w: stdout},
		client:     client,
		controller: controller,
		emitter:    emitter,
		metrics:    m,
	}
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func (app *application) serveMetrics(addr string) (func(), error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return nil, fmt.Errorf("metrics server: %w", err)
	case <-time.After(50 * time.Millisecond):
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			app.logger.Error("metrics server shutdown failed", "error", err)
		}
	}, nil
}

// track submits or resumes a task and blocks until it is terminal or ctx is
// done.
func (app *application) track(ctx context.Context, opts options) int {
	taskID, initial, err := app.begin(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return exitInterrupted
		}
		app.logger.Error("failed to start task", "error", err)
		app.out.Printf("Error: %v\n", err)
		return exitFailure
	}

	done := make(chan status.TaskStatus, 1)
	terminal := func(st status.TaskStatus) {
		select {
		case done <- st:
		default:
		}
	}

	app.controller.SetCallbacks(task.Callbacks{
		OnComplete: terminal,
		OnFailed:   terminal,
		OnUpdate: func(st status.TaskStatus) {
			app.logger.Info("task status",
				"task_id", st.TaskID,
				"state", st.State,
				"progress", st.ProgressPercent,
				"step", st.CurrentStepLabel,
				"eta", st.ETALabel())
		},
		OnOffer: func(offer notify.Offer) {
			if opts.Email == "" {
				app.out.Printf("This is taking a while. Re-run with --task-id %s --email you@example.com "+
					"to get the plan by email.\n", offer.TaskID)
				return
			}
			app.registerAsync(ctx, opts.Email)
		},
	})

	if err := app.controller.Start(taskID, initial); err != nil {
		app.logger.Error("failed to start tracking", "error", err, "task_id", taskID)
		return exitFailure
	}
	defer app.waitRegistrations()

	if opts.NotifyNow {
		app.register(ctx, opts.Email)
	}

	select {
	case st := <-done:
		return app.finish(st)
	case <-ctx.Done():
		elapsed := app.controller.Elapsed()
		app.controller.Cancel()
		app.logger.Info("tracking interrupted", "task_id", taskID, "elapsed", elapsed)
		app.out.Printf("Cancelled. Resume with --task-id %s\n", taskID)
		return exitInterrupted
	}
}

// begin returns the task to track and, for fresh submissions, its first
// status.
func (app *application) begin(ctx context.Context, opts options) (string, *status.TaskStatus, error) {
	if opts.TaskID != "" {
		return opts.TaskID, nil, nil
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", opts.File, err)
	}
	defer func() { _ = f.Close() }()

	summary, err := app.client.SubmitFile(ctx, opts.File, f)
	if err != nil {
		return "", nil, fmt.Errorf("submit %s: %w", opts.File, err)
	}
	app.out.Printf("Analyzed %s: %d pages, language %s, suggested %d days at %g h/day (about %d min to generate)\n",
		summary.Filename, summary.Pages, summary.DetectedLanguage,
		summary.SuggestedPlan.Days, summary.SuggestedPlan.HoursPerDay, summary.EstimatedProcessingMin)

	genOpts := backend.GenerationOptions{
		Days:        opts.Days,
		HoursPerDay: opts.HoursPerDay,
		Language:    opts.Language,
	}
	if genOpts.Days == 0 {
		genOpts.Days = summary.SuggestedPlan.Days
	}
	if genOpts.HoursPerDay == 0 {
		genOpts.HoursPerDay = summary.SuggestedPlan.HoursPerDay
	}

	raw, err := app.client.StartGeneration(ctx, summary.TaskID, genOpts)
	if err != nil && !errors.Is(err, status.ErrNormalization) {
		return "", nil, fmt.Errorf("start generation: %w", err)
	}

	var st status.TaskStatus
	if err == nil {
		st, err = status.Normalize(raw, summary.TaskID)
	}
	if err != nil {
		app.logger.Warn("generation answer carried no status, polling from scratch",
			"task_id", summary.TaskID,
			"error", err)
		return summary.TaskID, nil, nil
	}
	return summary.TaskID, &st, nil
}

func (app *application) register(ctx context.Context, email string) {
	if err := app.controller.RegisterNotification(ctx, email); err != nil {
		app.logger.Warn("notification registration failed", "error", err)
		app.out.Printf("Could not register %s for notification: %v\n", email, err)
		return
	}
	app.out.Printf("We will email %s when the plan is ready.\n", email)
}

// registerAsync registers from a timer callback without blocking it. It is a
// no-op once waitRegistrations has started.
func (app *application) registerAsync(ctx context.Context, email string) {
	app.regMu.Lock()
	defer app.regMu.Unlock()
	if app.regClosed {
		app.logger.Debug("skipping notification registration, tracking finished")
		return
	}
	app.registrations.Add(1)
	go func() {
		defer app.registrations.Done()
		app.register(ctx, email)
	}()
}

// waitRegistrations stops accepting registrations and waits for the running
// ones.
func (app *application) waitRegistrations() {
	app.regMu.Lock()
	app.regClosed = true
	app.regMu.Unlock()
	app.registrations.Wait()
}

func (app *application) finish(st status.TaskStatus) int {
	elapsed := app.controller.Elapsed().Round(time.Second)
	if st.State == status.StateFailed {
		app.out.Printf("Generation failed after %s: %s\n", elapsed, st.ErrorMessage)
		return exitFailure
	}
	app.out.Printf("Study plan ready after %s: %s\n", elapsed, app.client.DownloadURL(st.TaskID))
	return exitOK
}
