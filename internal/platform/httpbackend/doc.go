// Package httpbackend implements backend.Client over the LearnScaffold HTTP
// API.
//
// Every call performs exactly one request and never retries; the task
// controller's next poll is the retry. Non-2xx answers and network failures
// are reported as *backend.TransportError, carrying the status code and the
// server's "detail" message when one is present.
package httpbackend
