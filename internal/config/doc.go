// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files, command-line flags).
// It provides type-safe access to the tracker's settings while keeping
// configuration details separate from the tracking engine.
package config
