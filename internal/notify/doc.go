// Package notify implements the email side channel offered while a task is
// still running: the once-per-session threshold decision, the syntactic email
// check, and registration with the backend.
package notify
