package status

import (
	"fmt"
	"math"
	"strconv"
)

// State is the canonical lifecycle state of a tracked task.
type State string

// Canonical states. Completed and Failed are terminal and absorbing.
const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are accepted from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}

// Display labels used when the backend gives no better information.
const (
	LabelStarting    = "Starting..."
	LabelWorking     = "Working..."
	LabelCompleted   = "Completed"
	LabelFailed      = "Failed"
	LabelCalculating = "Calculating..."

	// DefaultFailureMessage is used for a failed task that carries no detail.
	DefaultFailureMessage = "Processing failed"
)

// RawPayload is a decoded, arbitrarily shaped status response from the backend.
type RawPayload map[string]any

// TaskStatus is the canonical, UI-facing view of a task. It is a value object:
// updates replace it wholesale.
type TaskStatus struct {
	TaskID           string   `json:"task_id"`
	State            State    `json:"state"`
	ProgressPercent  int      `json:"progress_percent"`
	CurrentStepLabel string   `json:"current_step_label"`
	ETAMinutes       *float64 `json:"eta_minutes,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`

	// ProgressReported is false when the payload carried no usable progress
	// value and ProgressPercent is only the default.
	ProgressReported bool `json:"-"`
}

// Terminal reports whether the status is in a terminal state.
func (s TaskStatus) Terminal() bool {
	return s.State.Terminal()
}

// ETALabel renders the remaining-time estimate for display.
func (s TaskStatus) ETALabel() string {
	if s.ETAMinutes == nil {
		return LabelCalculating
	}
	return fmt.Sprintf("~%s min", strconv.FormatFloat(math.Ceil(*s.ETAMinutes), 'f', -1, 64))
}

// Clone returns a deep copy of the status.
func (s TaskStatus) Clone() TaskStatus {
	if s.ETAMinutes != nil {
		eta := *s.ETAMinutes
		s.ETAMinutes = &eta
	}
	return s
}

// ClampProgress bounds p to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
