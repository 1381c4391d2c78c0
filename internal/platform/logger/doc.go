// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON
// or text logging with configurable log levels. Every handler built here passes
// string and error attributes through the redact package, so email addresses and
// credentials never reach the log sink.
package logger
