package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/scaffold-tracker/internal/backend"
	"github.com/phrazzld/scaffold-tracker/internal/redact"
)

// DefaultThreshold is how long a task may run before the email side channel
// is offered.
const DefaultThreshold = 5 * time.Minute

// Offer is the per-session notification offer state.
type Offer struct {
	TaskID    string
	Threshold time.Duration
	// Offered latches true the first time the offer is made and never resets
	// within a session.
	Offered bool
	// RegisteredEmail is set once a registration succeeded.
	RegisteredEmail string
}

// NewOffer returns a fresh offer for taskID. A non-positive threshold falls
// back to DefaultThreshold.
func NewOffer(taskID string, threshold time.Duration) Offer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Offer{TaskID: taskID, Threshold: threshold}
}

// Registered reports whether an email is already registered for the task.
func (o Offer) Registered() bool {
	return o.RegisteredEmail != ""
}

// ShouldOffer reports whether the notification prompt should be shown now.
// It is true only once elapsed exceeds the threshold, the offer has not been
// made yet and no email is registered. The caller must set Offered as soon as
// it acts on a true result.
func ShouldOffer(elapsed time.Duration, offer Offer) bool {
	return elapsed > offer.Threshold && !offer.Offered && !offer.Registered()
}

// Monitor registers notification addresses with the backend.
type Monitor struct {
	registrar backend.Registrar
	logger    *slog.Logger
}

// NewMonitor creates a Monitor that delegates registration to registrar.
func NewMonitor(registrar backend.Registrar, logger *slog.Logger) *Monitor {
	return &Monitor{
		registrar: registrar,
		logger:    logger.With("component", "notification_monitor"),
	}
}

// Register validates email and registers it for taskID. Invalid addresses
// fail with a ValidationError without contacting the backend. A conflict
// answer means the address is already registered and counts as success.
func (m *Monitor) Register(ctx context.Context, taskID, email string) error {
	if err := ValidateEmail(email); err != nil {
		m.logger.DebugContext(ctx, "rejected notification email",
			"task_id", taskID,
			"error", err)
		return err
	}

	err := m.registrar.RegisterNotification(ctx, taskID, email)
	switch {
	case err == nil:
		m.logger.InfoContext(ctx, "notification registered",
			"task_id", taskID,
			"email", redact.String(email))
		return nil
	case errors.Is(err, backend.ErrConflict):
		m.logger.InfoContext(ctx, "notification already registered",
			"task_id", taskID,
			"email", redact.String(email))
		return nil
	default:
		m.logger.WarnContext(ctx, "notification registration failed",
			"task_id", taskID,
			"error", redact.Error(err))
		return &RegistrationError{TaskID: taskID, Err: err}
	}
}
