package task

import (
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/scaffold-tracker/internal/config"
)

// DefaultPollInterval is used when Enable is given a non-positive interval.
var DefaultPollInterval = config.ProfileInterval(config.ProfileStandard)

// Scheduler drives repeated status polls for one task at a time.
//
// Every Enable and every Disable increments the generation. A tick carries
// the generation it was armed under, and receivers compare it with
// IsCurrent before acting on it.
type Scheduler struct {
	mu         sync.Mutex
	taskID     string
	interval   time.Duration
	enabled    bool
	generation uint64
	stop       chan struct{}

	// deliver is held while a timer tick is being handed to onTick.
	deliver sync.Mutex

	logger *slog.Logger
}

// NewScheduler creates a disabled Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With("component", "poll_scheduler"),
	}
}

// Enable starts polling taskID every interval. onTick is called once
// synchronously before Enable returns and then from a single timer goroutine.
// onTick must not block and must not call Disable.
//
// Enable is idempotent: when already enabled it returns the current
// generation and false without arming a second timer.
func (s *Scheduler) Enable(taskID string, interval time.Duration, onTick func(gen uint64)) (uint64, bool) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s.mu.Lock()
	if s.enabled {
		gen := s.generation
		s.mu.Unlock()
		return gen, false
	}
	s.generation++
	gen := s.generation
	stop := make(chan struct{})
	s.taskID = taskID
	s.interval = interval
	s.enabled = true
	s.stop = stop
	s.mu.Unlock()

	s.logger.Debug("polling enabled",
		"task_id", taskID,
		"interval", interval,
		"generation", gen)

	onTick(gen)
	go s.run(gen, interval, stop, onTick)

	return gen, true
}

// Disable stops the timer and invalidates the current generation. It does
// not wait for an in-flight poll, but once it returns no further tick is
// delivered. Calling Disable on a disabled Scheduler still advances the
// generation.
func (s *Scheduler) Disable() uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	wasEnabled := s.enabled
	if s.enabled {
		close(s.stop)
		s.stop = nil
		s.enabled = false
	}
	taskID := s.taskID
	s.mu.Unlock()

	// Wait out a tick that passed its generation check before the bump.
	s.deliver.Lock()
	s.deliver.Unlock() //nolint:staticcheck // empty critical section is a barrier

	if wasEnabled {
		s.logger.Debug("polling disabled", "task_id", taskID, "generation", gen)
	}
	return gen
}

// IsCurrent reports whether gen is the current generation.
func (s *Scheduler) IsCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// Generation returns the current generation.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Enabled reports whether a timer is armed.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Scheduler) run(gen uint64, interval time.Duration, stop <-chan struct{}, onTick func(uint64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.deliver.Lock()
			if !s.IsCurrent(gen) {
				s.deliver.Unlock()
				return
			}
			onTick(gen)
			s.deliver.Unlock()
		}
	}
}
