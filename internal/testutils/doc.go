// Package testutils provides testing utilities for the tracker.
//
// The main helper is FakeBackend, an in-process stand-in for the
// LearnScaffold backend built on chi and httptest. Each task carries a
// script of status payloads that successive polls walk through; the last
// payload repeats once the script is exhausted.
//
//	fb := testutils.NewFakeBackend(t, "/api")
//	fb.AddTask("t1",
//	    map[string]any{"status": "running", "progress": 40},
//	    map[string]any{"status": "ready"},
//	)
//	client := httpbackend.New(config.BackendConfig{BaseURL: fb.URL(), PathPrefix: "/api", ...}, logger)
package testutils
