package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newEvent := func(t *testing.T) *TaskEvent {
		t.Helper()
		event, err := NewTaskEvent(TypeTaskCompleted, "t1", uuid.New(), map[string]string{"key": "value"})
		require.NoError(t, err)
		return event
	}

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		// Should not error even with no handlers
		err := emitter.EmitEvent(context.Background(), newEvent(t))
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := newEvent(t)
		err := emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		// Verify both handlers received the event
		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handlerErr := errors.New("handler error")
		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{HandlerError: handlerErr}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		err := emitter.EmitEvent(context.Background(), newEvent(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, handlerErr)
		assert.Equal(t, "dispatch task.completed: handler error", err.Error())

		// Both handlers should still have received the event
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
	})

	t.Run("all failures are reported", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		first := errors.New("first")
		second := errors.New("second")
		emitter.RegisterHandler(&MockEventHandler{HandlerError: first})
		emitter.RegisterHandler(&MockEventHandler{HandlerError: second})

		err := emitter.EmitEvent(context.Background(), newEvent(t))

		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("panicking handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		after := &MockEventHandler{}
		emitter.RegisterHandler(EventHandlerFunc(func(context.Context, *TaskEvent) error {
			panic("boom")
		}))
		emitter.RegisterHandler(after)

		err := emitter.EmitEvent(context.Background(), newEvent(t))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panicked: boom")
		assert.Equal(t, 1, after.HandledCount, "later handlers still receive the event")
	})

	t.Run("handlers receive only subscribed types", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		terminal := &MockEventHandler{}
		offers := &MockEventHandler{}
		all := &MockEventHandler{}
		emitter.RegisterHandler(terminal, TypeTaskCompleted, TypeTaskFailed)
		emitter.RegisterHandler(offers, TypeNotificationOffered)
		emitter.RegisterHandler(all)

		completed := newEvent(t)
		offered, err := NewTaskEvent(TypeNotificationOffered, "t1", completed.SessionID, nil)
		require.NoError(t, err)

		require.NoError(t, emitter.EmitEvent(context.Background(), completed))
		require.NoError(t, emitter.EmitEvent(context.Background(), offered))

		assert.Equal(t, 1, terminal.HandledCount)
		assert.Same(t, completed, terminal.LastEvent)
		assert.Equal(t, 1, offers.HandledCount)
		assert.Same(t, offered, offers.LastEvent)
		assert.Equal(t, 2, all.HandledCount)
	})

	t.Run("no subscriber for type", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		offers := &MockEventHandler{}
		emitter.RegisterHandler(offers, TypeNotificationOffered)

		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t)))
		assert.Zero(t, offers.HandledCount)
	})
}
