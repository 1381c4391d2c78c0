// Package backend defines the boundary to the LearnScaffold backend: the
// Client interface consumed by the tracking engine, its request and response
// types, and the error taxonomy every adapter must report through.
//
// Adapters live under internal/platform (see httpbackend). The engine never
// imports an adapter directly, so tests substitute a fake.
package backend
