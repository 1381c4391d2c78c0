package task

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scaffold-tracker/internal/backend"
	"github.com/phrazzld/scaffold-tracker/internal/events"
	"github.com/phrazzld/scaffold-tracker/internal/notify"
	"github.com/phrazzld/scaffold-tracker/internal/platform/metrics"
	"github.com/phrazzld/scaffold-tracker/internal/status"
)

// ControllerConfig holds the timing knobs of a Controller.
type ControllerConfig struct {
	// PollInterval is the time between status polls. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration

	// TickResolution is how often elapsed time is reported. Defaults to
	// DefaultTickResolution.
	TickResolution time.Duration

	// NotifyThreshold is how long a task may run before the email side
	// channel is offered. Defaults to notify.DefaultThreshold.
	NotifyThreshold time.Duration

	// Now is the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// Callbacks are invoked without any controller lock held, so they may call
// back into the Controller. OnComplete and OnFailed fire at most once per
// session.
type Callbacks struct {
	OnComplete func(status.TaskStatus)
	OnFailed   func(status.TaskStatus)
	OnUpdate   func(status.TaskStatus)
	OnOffer    func(notify.Offer)
	OnElapsed  func(time.Duration)
}

// session is the state of one tracked task.
type session struct {
	id     uuid.UUID
	taskID string
	ctx    context.Context
	cancel context.CancelFunc

	status      *status.TaskStatus
	maxProgress int
	offer       notify.Offer

	// terminalFired latches on the first terminal status and guards both
	// terminal callbacks.
	terminalFired bool
	inFlight      bool
	polling       bool
}

// Controller tracks one backend task at a time.
type Controller struct {
	fetcher backend.StatusFetcher
	monitor *notify.Monitor
	config  ControllerConfig
	logger  *slog.Logger

	scheduler *Scheduler
	tracker   *ElapsedTracker

	// lifecycle serializes Start, Cancel and terminal transitions so that a
	// late answer for one session cannot stop the timers of the next.
	lifecycle sync.Mutex

	mu        sync.Mutex
	session   *session
	callbacks Callbacks
	emitter   events.EventEmitter
	metrics   *metrics.Metrics
}

// NewController creates a Controller polling fetcher. monitor may be nil, in
// which case RegisterNotification fails with ErrNoMonitor.
func NewController(
	fetcher backend.StatusFetcher,
	monitor *notify.Monitor,
	config ControllerConfig,
	logger *slog.Logger,
) *Controller {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.TickResolution <= 0 {
		config.TickResolution = DefaultTickResolution
	}
	if config.NotifyThreshold <= 0 {
		config.NotifyThreshold = notify.DefaultThreshold
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Controller{
		fetcher:   fetcher,
		monitor:   monitor,
		config:    config,
		logger:    logger.With("component", "task_controller"),
		scheduler: NewScheduler(logger),
		tracker:   NewElapsedTracker(config.TickResolution, config.Now),
	}
}

// SetCallbacks replaces the callback set. It applies to the running session.
func (c *Controller) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = cb
}

// SetEmitter publishes terminal and offer events on emitter.
func (c *Controller) SetEmitter(emitter events.EventEmitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitter = emitter
}

// SetMetrics records poll and lifecycle metrics on m.
func (c *Controller) SetMetrics(m *metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Start begins tracking taskID, cancelling any active session first.
//
// initial, when not nil, seeds the status, e.g. when resuming a task whose
// last status is already known. A terminal initial status is adopted as is:
// its callback fires once before Start returns and no polling is armed.
func (c *Controller) Start(taskID string, initial *status.TaskStatus) error {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return ErrInvalidTaskID
	}

	c.lifecycle.Lock()
	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     uuid.New(),
		taskID: taskID,
		ctx:    ctx,
		cancel: cancel,
		offer:  notify.NewOffer(taskID, c.config.NotifyThreshold),
	}

	var seeded status.TaskStatus
	if initial != nil {
		seeded = initial.Clone()
		seeded.TaskID = taskID
		seeded.ProgressPercent = status.ClampProgress(seeded.ProgressPercent)
		sess.status = &seeded
		sess.maxProgress = seeded.ProgressPercent
	}
	terminal := initial != nil && seeded.Terminal()
	if terminal {
		sess.terminalFired = true
		cancel()
	} else {
		sess.polling = true
	}

	c.mu.Lock()
	c.session = sess
	m := c.metrics
	c.mu.Unlock()

	logger := c.logger.With("task_id", taskID, "session_id", sess.id)

	if terminal {
		logger.Info("adopted terminal initial status", "state", seeded.State)
		c.lifecycle.Unlock()
		c.fireTerminal(sess, seeded, 0)
		return nil
	}

	logger.Info("tracking started",
		"poll_interval", c.config.PollInterval,
		"seeded", initial != nil)
	m.SessionStarted()

	c.tracker.Start(c.elapsedHandler(sess))
	c.scheduler.Enable(taskID, c.config.PollInterval, c.tick)
	c.lifecycle.Unlock()

	return nil
}

// Cancel ends the active session. No callback fires, the offer is cleared
// and the status is discarded. An in-flight request is aborted.
func (c *Controller) Cancel() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopLocked()
}

// stopLocked tears down the active session. The caller holds lifecycle.
func (c *Controller) stopLocked() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	m := c.metrics
	c.mu.Unlock()

	c.scheduler.Disable()
	c.tracker.Reset()

	if sess == nil {
		return
	}
	sess.cancel()
	if sess.polling {
		sess.polling = false
		m.SessionStopped()
	}
	c.logger.Info("tracking cancelled", "task_id", sess.taskID, "session_id", sess.id)
}

// Status returns a copy of the current status, or nil when no status is
// known.
func (c *Controller) Status() *status.TaskStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.status == nil {
		return nil
	}
	st := c.session.status.Clone()
	return &st
}

// Elapsed returns the wall-clock time the current session has been running,
// frozen once it reached a terminal state.
func (c *Controller) Elapsed() time.Duration {
	return c.tracker.Elapsed()
}

// Offer returns the notification offer of the current session.
func (c *Controller) Offer() notify.Offer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return notify.Offer{}
	}
	return c.session.offer
}

// SessionID identifies the current session, or uuid.Nil.
func (c *Controller) SessionID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return uuid.Nil
	}
	return c.session.id
}

// RegisterNotification registers email for the current task. Polling is not
// affected by the outcome.
func (c *Controller) RegisterNotification(ctx context.Context, email string) error {
	c.mu.Lock()
	sess := c.session
	m := c.metrics
	c.mu.Unlock()

	if sess == nil {
		return ErrNoSession
	}
	if c.monitor == nil {
		return ErrNoMonitor
	}

	err := c.monitor.Register(ctx, sess.taskID, email)
	switch {
	case err == nil:
		m.CountRegistration(metrics.RegistrationOK)
	case errors.Is(err, notify.ErrInvalidEmail):
		m.CountRegistration(metrics.RegistrationInvalid)
		return err
	default:
		m.CountRegistration(metrics.RegistrationFailed)
		return err
	}

	c.mu.Lock()
	if c.session == sess {
		sess.offer.RegisteredEmail = strings.TrimSpace(email)
	}
	c.mu.Unlock()
	return nil
}

// tick is the Scheduler callback. It dispatches one poll unless the tick is
// stale or a poll is already outstanding.
func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	sess := c.session
	if sess == nil || sess.terminalFired || !c.scheduler.IsCurrent(gen) {
		c.mu.Unlock()
		return
	}
	if sess.inFlight {
		c.mu.Unlock()
		c.logger.Debug("skipping tick, poll in flight", "task_id", sess.taskID, "generation", gen)
		return
	}
	sess.inFlight = true
	c.mu.Unlock()

	go c.poll(sess, gen)
}

// poll fetches and applies one status. It runs on its own goroutine.
func (c *Controller) poll(sess *session, gen uint64) {
	started := time.Now()
	raw, err := c.fetcher.GetTaskStatus(sess.ctx, sess.taskID)
	latency := time.Since(started)

	logger := c.logger.With("task_id", sess.taskID, "generation", gen)

	if err != nil {
		if !c.release(sess, gen) {
			c.observe(metrics.PollStale, latency)
			logger.Debug("discarding failed poll of a superseded session", "error", err)
			return
		}
		if errors.Is(err, status.ErrNormalization) {
			c.observe(metrics.PollNormalization, latency)
			logger.Warn("unrecognized status payload, keeping last status", "error", err)
			return
		}
		c.observe(metrics.PollTransport, latency)
		logger.Warn("status poll failed, retrying on next tick",
			"error", err,
			"transport", backend.IsTransportError(err))
		return
	}

	next, err := status.Normalize(raw, sess.taskID)
	if err != nil {
		if !c.release(sess, gen) {
			c.observe(metrics.PollStale, latency)
			return
		}
		c.observe(metrics.PollNormalization, latency)
		logger.Warn("unrecognized status payload, keeping last status", "error", err)
		return
	}

	c.apply(sess, gen, next, latency)
}

// release clears the in-flight flag and reports whether the poll still
// belongs to the current session and generation.
func (c *Controller) release(sess *session, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess.inFlight = false
	return c.session == sess && !sess.terminalFired && c.scheduler.IsCurrent(gen)
}

// apply installs a normalized status polled under gen. Stale answers are
// dropped. The first terminal status stops the timers and fires the
// terminal callback.
func (c *Controller) apply(sess *session, gen uint64, next status.TaskStatus, latency time.Duration) {
	c.lifecycle.Lock()

	c.mu.Lock()
	sess.inFlight = false
	if c.session != sess || sess.terminalFired || !c.scheduler.IsCurrent(gen) {
		m := c.metrics
		c.mu.Unlock()
		c.lifecycle.Unlock()
		m.ObservePoll(metrics.PollStale, latency)
		c.logger.Debug("discarding stale status",
			"task_id", sess.taskID,
			"generation", gen,
			"state", next.State)
		return
	}

	merged := mergeStatus(sess.status, sess.maxProgress, next)
	sess.status = &merged
	if merged.ProgressPercent > sess.maxProgress {
		sess.maxProgress = merged.ProgressPercent
	}

	terminal := merged.Terminal()
	if terminal {
		sess.terminalFired = true
		sess.polling = false
	}
	cb := c.callbacks
	m := c.metrics
	c.mu.Unlock()

	m.ObservePoll(metrics.PollOK, latency)

	var elapsed time.Duration
	if terminal {
		c.scheduler.Disable()
		c.tracker.Stop()
		elapsed = c.tracker.Elapsed()
		sess.cancel()
		m.SessionStopped()
	}
	c.lifecycle.Unlock()

	c.logger.Debug("status updated",
		"task_id", sess.taskID,
		"state", merged.State,
		"progress", merged.ProgressPercent,
		"step", merged.CurrentStepLabel)

	if cb.OnUpdate != nil {
		cb.OnUpdate(merged)
	}
	if terminal {
		c.fireTerminal(sess, merged, elapsed)
	}
}

// mergeStatus applies the carry-forward and non-regression rules to next.
func mergeStatus(prev *status.TaskStatus, maxProgress int, next status.TaskStatus) status.TaskStatus {
	if !next.ProgressReported && prev != nil {
		next.ProgressPercent = prev.ProgressPercent
	}
	if next.State == status.StateProcessing && next.ProgressPercent < maxProgress {
		next.ProgressPercent = maxProgress
	}
	return next
}

// terminalPayload is the body of task.completed and task.failed events.
type terminalPayload struct {
	State           status.State `json:"state"`
	ProgressPercent int          `json:"progress_percent"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	ElapsedSeconds  float64      `json:"elapsed_seconds"`
}

// offerPayload is the body of task.notification_offered events.
type offerPayload struct {
	ThresholdSeconds float64 `json:"threshold_seconds"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

// fireTerminal invokes the terminal callback for st. The caller has already
// latched sess.terminalFired, so this runs once per session.
func (c *Controller) fireTerminal(sess *session, st status.TaskStatus, elapsed time.Duration) {
	c.mu.Lock()
	cb := c.callbacks
	m := c.metrics
	c.mu.Unlock()
	c.logger.Info("task reached terminal state",
		"task_id", sess.taskID,
		"session_id", sess.id,
		"state", st.State,
		"elapsed", elapsed,
		"error_message", st.ErrorMessage)

	m.CountTerminal(string(st.State))

	eventType := events.TypeTaskCompleted
	if st.State == status.StateFailed {
		eventType = events.TypeTaskFailed
	}
	c.emit(sess, eventType, terminalPayload{
		State:           st.State,
		ProgressPercent: st.ProgressPercent,
		ErrorMessage:    st.ErrorMessage,
		ElapsedSeconds:  elapsed.Seconds(),
	})

	switch st.State {
	case status.StateCompleted:
		if cb.OnComplete != nil {
			cb.OnComplete(st)
		}
	case status.StateFailed:
		if cb.OnFailed != nil {
			cb.OnFailed(st)
		}
	}
}

// elapsedHandler returns the tracker callback for sess. It latches and
// publishes the notification offer the first time the threshold is crossed.
func (c *Controller) elapsedHandler(sess *session) func(time.Duration) {
	return func(elapsed time.Duration) {
		c.mu.Lock()
		if c.session != sess || sess.terminalFired {
			c.mu.Unlock()
			return
		}
		offerNow := notify.ShouldOffer(elapsed, sess.offer)
		if offerNow {
			sess.offer.Offered = true
		}
		offer := sess.offer
		cb := c.callbacks
		m := c.metrics
		c.mu.Unlock()

		if cb.OnElapsed != nil {
			cb.OnElapsed(elapsed)
		}
		if !offerNow {
			return
		}

		c.logger.Info("offering email notification",
			"task_id", sess.taskID,
			"elapsed", elapsed,
			"threshold", offer.Threshold)
		m.CountOffer()
		c.emit(sess, events.TypeNotificationOffered, offerPayload{
			ThresholdSeconds: offer.Threshold.Seconds(),
			ElapsedSeconds:   elapsed.Seconds(),
		})
		if cb.OnOffer != nil {
			cb.OnOffer(offer)
		}
	}
}

func (c *Controller) emit(sess *session, eventType string, payload interface{}) {
	c.mu.Lock()
	emitter := c.emitter
	c.mu.Unlock()
	if emitter == nil {
		return
	}

	event, err := events.NewTaskEvent(eventType, sess.taskID, sess.id, payload)
	if err != nil {
		c.logger.Error("failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := emitter.EmitEvent(context.Background(), event); err != nil {
		c.logger.Warn("event handler failed",
			"event_type", eventType,
			"task_id", sess.taskID,
			"error", err)
	}
}

func (c *Controller) observe(outcome string, latency time.Duration) {
	c.mu.Lock()
	m := c.metrics
	c.mu.Unlock()
	m.ObservePoll(outcome, latency)
}
