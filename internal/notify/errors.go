package notify

import (
	"errors"
	"fmt"
)

// Sentinel errors for notification registration.
var (
	// ErrInvalidEmail is matched by every ValidationError.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrRegistrationFailed is matched by every RegistrationError.
	ErrRegistrationFailed = errors.New("notification registration failed")
)

// ValidationError reports an email that failed the local syntactic check.
// It is returned before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidEmail.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidEmail
}

// RegistrationError reports a backend rejection other than a duplicate
// registration.
type RegistrationError struct {
	TaskID string
	Err    error
}

// Error implements the error interface for RegistrationError.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register notification for task %s: %v", e.TaskID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRegistrationFailed.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistrationFailed
}
