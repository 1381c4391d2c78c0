package task

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// durationRecorder keeps the last duration reported to it.
type durationRecorder struct {
	mu    sync.Mutex
	last  time.Duration
	ticks int
}

func (r *durationRecorder) onTick(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = d
	r.ticks++
}

func (r *durationRecorder) snapshot() (time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.ticks
}

func TestElapsedTracker_UsesWallClock(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tracker := NewElapsedTracker(2*time.Millisecond, clock.Now)
	rec := &durationRecorder{}

	tracker.Start(rec.onTick)
	defer tracker.Stop()

	clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, tracker.Elapsed())
	assert.Eventually(t, func() bool {
		last, _ := rec.snapshot()
		return last == 90*time.Second
	}, time.Second, 2*time.Millisecond)

	// A long suspension is reflected immediately, not tick by tick.
	clock.Advance(10 * time.Minute)
	assert.Equal(t, 10*time.Minute+90*time.Second, tracker.Elapsed())
}

func TestElapsedTracker_StopFreezes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tracker := NewElapsedTracker(2*time.Millisecond, clock.Now)
	rec := &durationRecorder{}

	tracker.Start(rec.onTick)
	clock.Advance(42 * time.Second)
	assert.Eventually(t, func() bool {
		_, ticks := rec.snapshot()
		return ticks > 0
	}, time.Second, 2*time.Millisecond)

	tracker.Stop()
	// Let a tick that was already past its check land.
	time.Sleep(10 * time.Millisecond)
	_, ticks := rec.snapshot()
	clock.Advance(time.Hour)

	assert.False(t, tracker.Running())
	assert.Equal(t, 42*time.Second, tracker.Elapsed())
	assert.Never(t, func() bool {
		_, n := rec.snapshot()
		return n != ticks
	}, 30*time.Millisecond, 5*time.Millisecond)

	// Stop is idempotent.
	tracker.Stop()
	assert.Equal(t, 42*time.Second, tracker.Elapsed())
}

func TestElapsedTracker_StartRecordsInstantOnce(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tracker := NewElapsedTracker(time.Hour, clock.Now)

	tracker.Start(nil)
	defer tracker.Stop()
	clock.Advance(time.Minute)
	tracker.Start(nil)
	clock.Advance(time.Minute)

	assert.Equal(t, 2*time.Minute, tracker.Elapsed())
}

func TestElapsedTracker_Reset(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	tracker := NewElapsedTracker(time.Hour, clock.Now)

	tracker.Start(nil)
	clock.Advance(time.Minute)
	tracker.Reset()

	assert.Zero(t, tracker.Elapsed())
	assert.False(t, tracker.Running())

	tracker.Start(nil)
	defer tracker.Stop()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 5*time.Second, tracker.Elapsed())
}
