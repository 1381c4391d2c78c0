package task

import "errors"

// Sentinel errors returned by the Controller.
var (
	// ErrInvalidTaskID is returned by Start when the task id is empty.
	ErrInvalidTaskID = errors.New("task id must not be empty")

	// ErrNoSession is returned by operations that need an active session.
	ErrNoSession = errors.New("no active tracking session")

	// ErrNoMonitor is returned by RegisterNotification when the controller
	// was built without a notification monitor.
	ErrNoMonitor = errors.New("notification registration is not configured")
)
