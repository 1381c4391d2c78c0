package testutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// DefaultScript is the status sequence given to tasks created by uploads.
var DefaultScript = []map[string]any{
	{"status": "processing", "progress_percent": 50, "current_step": "Generating plan", "eta_minutes": 2},
	{"status": "completed", "progress_percent": 100},
}

// GenerateRequest is the body recorded for each generation call.
type GenerateRequest struct {
	TaskID      string  `json:"task_id"`
	Days        int     `json:"days"`
	HoursPerDay float64 `json:"hours_per_day"`
	Language    string  `json:"language"`
}

type fakeTask struct {
	script []map[string]any
	next   int
	polls  int
}

// FakeBackend is an in-memory LearnScaffold backend.
type FakeBackend struct {
	server *httptest.Server
	prefix string

	mu            sync.Mutex
	tasks         map[string]*fakeTask
	notifications map[string]string
	generations   []GenerateRequest
	uploads       []string
	legacyOnly    bool
	statusFailure int
}

// NewFakeBackend starts a fake backend serving its routes under prefix.
func NewFakeBackend(t *testing.T, prefix string) *FakeBackend {
	t.Helper()

	fb := &FakeBackend{
		prefix:        strings.TrimRight(prefix, "/"),
		tasks:         make(map[string]*fakeTask),
		notifications: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	routes := func(r chi.Router) {
		r.Post("/analyze/init", fb.handleInit)
		r.Post("/upload/", fb.handleLegacyUpload)
		r.Post("/analyze/generate", fb.handleGenerate)
		r.Get("/analyze/status/{taskID}", fb.handleStatus)
		r.Post("/notify/email", fb.handleNotify)
	}
	if fb.prefix == "" {
		routes(r)
	} else {
		r.Route(fb.prefix, routes)
	}

	fb.server = CreateTestServer(t, r)
	return fb
}

// URL returns the server's base URL, without the prefix.
func (fb *FakeBackend) URL() string {
	return fb.server.URL
}

// AddTask registers taskID with a status script.
func (fb *FakeBackend) AddTask(taskID string, script ...map[string]any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.tasks[taskID] = &fakeTask{script: script}
}

// SetLegacyOnly makes the staged init route answer 404.
func (fb *FakeBackend) SetLegacyOnly(legacy bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.legacyOnly = legacy
}

// FailStatus makes the next n status requests answer 503.
func (fb *FakeBackend) FailStatus(n int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statusFailure = n
}

// Notifications returns registered emails keyed by task id.
func (fb *FakeBackend) Notifications() map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make(map[string]string, len(fb.notifications))
	for k, v := range fb.notifications {
		out[k] = v
	}
	return out
}

// Generations returns the generation requests received so far.
func (fb *FakeBackend) Generations() []GenerateRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]GenerateRequest(nil), fb.generations...)
}

// Uploads returns the uploaded file names.
func (fb *FakeBackend) Uploads() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.uploads...)
}

// Polls returns how many status requests taskID has received.
func (fb *FakeBackend) Polls(taskID string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if task, ok := fb.tasks[taskID]; ok {
		return task.polls
	}
	return 0
}

func (fb *FakeBackend) readUpload(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		RespondWithError(w, http.StatusUnprocessableEntity, "file is required")
		return "", 0, false
	}
	defer func() { _ = file.Close() }()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "unreadable upload")
		return "", 0, false
	}
	return header.Filename, size, true
}

func (fb *FakeBackend) newTask(filename string) string {
	taskID := uuid.NewString()

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.tasks[taskID] = &fakeTask{script: DefaultScript}
	fb.uploads = append(fb.uploads, filename)
	return taskID
}

func (fb *FakeBackend) handleInit(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	legacy := fb.legacyOnly
	fb.mu.Unlock()
	if legacy {
		RespondWithError(w, http.StatusNotFound, "Not Found")
		return
	}

	filename, size, ok := fb.readUpload(w, r)
	if !ok {
		return
	}
	taskID := fb.newTask(filename)

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"task_id":           taskID,
		"filename":          filename,
		"file_type":         "pdf",
		"file_size_bytes":   size,
		"pages_or_elements": 42,
		"detected_language": "en",
		"suggested_plan": map[string]any{
			"recommended_days":          7,
			"recommended_hours_per_day": 2.5,
			"total_hours":               17.5,
		},
		"estimated_processing_time_min": 4,
	})
}

func (fb *FakeBackend) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	filename, _, ok := fb.readUpload(w, r)
	if !ok {
		return
	}
	taskID := fb.newTask(filename)

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"file_id":  taskID,
		"filename": filename,
	})
}

func (fb *FakeBackend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb.mu.Lock()
	_, known := fb.tasks[req.TaskID]
	if known {
		fb.generations = append(fb.generations, req)
	}
	fb.mu.Unlock()

	if !known {
		RespondWithError(w, http.StatusNotFound, "Task not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"task_id":          req.TaskID,
		"status":           "processing",
		"progress_percent": 0,
		"current_step":     "Starting generation",
		"eta_minutes":      req.Days,
	})
}

func (fb *FakeBackend) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	fb.mu.Lock()
	if fb.statusFailure > 0 {
		fb.statusFailure--
		fb.mu.Unlock()
		RespondWithError(w, http.StatusServiceUnavailable, "backend warming up")
		return
	}
	task, ok := fb.tasks[taskID]
	var payload map[string]any
	if ok {
		task.polls++
		if len(task.script) > 0 {
			payload = task.script[task.next]
			if task.next < len(task.script)-1 {
				task.next++
			}
		}
	}
	fb.mu.Unlock()

	if !ok {
		RespondWithError(w, http.StatusNotFound, "Task not found")
		return
	}
	if payload == nil {
		payload = map[string]any{"status": "pending"}
	}
	RespondWithJSON(w, http.StatusOK, payload)
}

func (fb *FakeBackend) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID string `json:"task_id"`
		Email  string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		RespondWithError(w, http.StatusUnprocessableEntity, "email is required")
		return
	}

	fb.mu.Lock()
	_, known := fb.tasks[req.TaskID]
	existing, registered := fb.notifications[req.TaskID]
	if known && !registered {
		fb.notifications[req.TaskID] = req.Email
	}
	fb.mu.Unlock()

	switch {
	case !known:
		RespondWithError(w, http.StatusNotFound, "Task not found")
	case registered:
		RespondWithError(w, http.StatusConflict, fmt.Sprintf("notification already registered for %s", existing))
	default:
		RespondWithJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Notification registered",
		})
	}
}
