package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by Client implementations.
var (
	// ErrConflict is returned when the backend reports the resource already
	// exists, e.g. a notification registered twice for the same task.
	ErrConflict = errors.New("backend reported a conflict")

	// ErrNotFound is returned when the backend does not know the task.
	ErrNotFound = errors.New("backend resource not found")

	// ErrTransport is the sentinel matched by every TransportError.
	ErrTransport = errors.New("backend transport failure")
)

// TransportError wraps network failures and non-2xx answers from the backend.
type TransportError struct {
	Operation  string // e.g. "get_task_status"
	StatusCode int    // zero when no response was received
	Message    string // response detail, if any
	Err        error  // underlying error, if any
}

// Error implements the error interface for TransportError.
func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("backend %s failed: status %d: %s", e.Operation, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("backend %s failed: status %d", e.Operation, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("backend %s failed: %v", e.Operation, e.Err)
	default:
		return fmt.Sprintf("backend %s failed", e.Operation)
	}
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport and maps 404/409 answers to ErrNotFound/ErrConflict.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return true
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrConflict:
		return e.StatusCode == 409
	}
	return false
}

// IsTransportError reports whether err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
