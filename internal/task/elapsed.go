package task

import (
	"sync"
	"time"
)

// DefaultTickResolution is how often elapsed time is reported.
const DefaultTickResolution = time.Second

// ElapsedTracker reports wall-clock time since a session started. The value
// is computed as now minus the start instant, never by counting ticks, so a
// suspended process catches up as soon as it resumes.
type ElapsedTracker struct {
	mu         sync.Mutex
	now        func() time.Time
	resolution time.Duration

	start   time.Time
	started bool
	running bool
	frozen  time.Duration
	stop    chan struct{}
}

// NewElapsedTracker creates a tracker reporting every resolution. A nil now
// uses time.Now.
func NewElapsedTracker(resolution time.Duration, now func() time.Time) *ElapsedTracker {
	if resolution <= 0 {
		resolution = DefaultTickResolution
	}
	if now == nil {
		now = time.Now
	}
	return &ElapsedTracker{
		now:        now,
		resolution: resolution,
	}
}

// Start records the start instant and calls onTick with the elapsed time
// every resolution until Stop. It is a no-op once the tracker has started;
// use Reset to begin a new measurement.
func (t *ElapsedTracker) Start(onTick func(time.Duration)) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.start = t.now()
	t.started = true
	t.running = true
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(stop, onTick)
}

// Stop freezes the elapsed value and stops ticking.
func (t *ElapsedTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.frozen = t.now().Sub(t.start)
	t.running = false
	close(t.stop)
	t.stop = nil
}

// Reset stops the tracker and zeroes it.
func (t *ElapsedTracker) Reset() {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
	t.frozen = 0
	t.start = time.Time{}
}

// Elapsed returns the running or frozen elapsed time.
func (t *ElapsedTracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// Running reports whether the tracker is ticking.
func (t *ElapsedTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *ElapsedTracker) elapsedLocked() time.Duration {
	if t.running {
		if d := t.now().Sub(t.start); d > 0 {
			return d
		}
		return 0
	}
	return t.frozen
}

func (t *ElapsedTracker) run(stop <-chan struct{}, onTick func(time.Duration)) {
	ticker := time.NewTicker(t.resolution)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.stop != stop {
				t.mu.Unlock()
				return
			}
			elapsed := t.elapsedLocked()
			t.mu.Unlock()

			if onTick != nil {
				onTick(elapsed)
			}
		}
	}
}
