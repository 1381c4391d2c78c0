package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scaffold-tracker/internal/backend"
	"github.com/phrazzld/scaffold-tracker/internal/config"
	"github.com/phrazzld/scaffold-tracker/internal/redact"
	"github.com/phrazzld/scaffold-tracker/internal/status"
)

// Operation names used in TransportError and logs.
const (
	opSubmitFile           = "submit_file"
	opLegacyUpload         = "legacy_upload"
	opStartGeneration      = "start_generation"
	opGetTaskStatus        = "get_task_status"
	opRegisterNotification = "register_notification"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

var _ backend.Client = (*Client)(nil)

// Client talks to the backend over HTTP.
type Client struct {
	apiBase    string
	cfg        config.BackendConfig
	httpClient *http.Client
	validate   *validator.Validate
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for the backend described by cfg.
func New(cfg config.BackendConfig, logger *slog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		apiBase:    strings.TrimRight(cfg.BaseURL, "/") + strings.TrimRight(cfg.PathPrefix, "/"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
		logger:     logger.With("component", "backend_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitFile uploads a document to the staged API. When the backend does not
// know the staged route it falls back to the legacy upload endpoint.
func (c *Client) SubmitFile(ctx context.Context, filename string, r io.Reader) (*backend.AnalysisSummary, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	var wire initResponse
	err = c.postFile(ctx, opSubmitFile, "/analyze/init", filename, content, &wire)
	switch {
	case err == nil:
		summary := wire.summary()
		c.logger.InfoContext(ctx, "file submitted",
			"task_id", summary.TaskID,
			"filename", filename,
			"pages", summary.Pages)
		return summary, nil
	case errors.Is(err, backend.ErrNotFound):
		c.logger.InfoContext(ctx, "staged upload unavailable, using legacy upload", "filename", filename)
	default:
		return nil, err
	}

	var legacy legacyUploadResponse
	if err := c.postFile(ctx, opLegacyUpload, "/upload/", filename, content, &legacy); err != nil {
		return nil, err
	}
	summary := legacy.summary(filename, int64(len(content)))
	c.logger.InfoContext(ctx, "file submitted through legacy upload",
		"task_id", summary.TaskID,
		"filename", filename)
	return summary, nil
}

// StartGeneration asks the backend to build the study plan. The answer is the
// task's first status payload.
func (c *Client) StartGeneration(
	ctx context.Context,
	taskID string,
	opts backend.GenerationOptions,
) (status.RawPayload, error) {
	if err := c.validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid generation options: %w", err)
	}

	body := generateRequest{
		TaskID:      taskID,
		Days:        opts.Days,
		HoursPerDay: opts.HoursPerDay,
		Language:    opts.Language,
	}

	var decoded any
	if err := c.doJSON(ctx, opStartGeneration, http.MethodPost, "/analyze/generate", body, &decoded); err != nil {
		return nil, err
	}
	raw, err := statusPayload(taskID, decoded)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "generation started",
		"task_id", taskID,
		"days", opts.Days,
		"hours_per_day", opts.HoursPerDay)
	return raw, nil
}

// GetTaskStatus fetches the raw status payload. Numbers are kept as
// json.Number. A body that is not a JSON object yields a
// *status.NormalizationError.
func (c *Client) GetTaskStatus(ctx context.Context, taskID string) (status.RawPayload, error) {
	var decoded any
	path := "/analyze/status/" + url.PathEscape(taskID)
	if err := c.doJSON(ctx, opGetTaskStatus, http.MethodGet, path, nil, &decoded); err != nil {
		return nil, err
	}
	return statusPayload(taskID, decoded)
}

// statusPayload accepts only JSON objects. Any other well-formed body is a
// *status.NormalizationError rather than a transport failure.
func statusPayload(taskID string, decoded any) (status.RawPayload, error) {
	if obj, ok := decoded.(map[string]any); ok {
		return status.RawPayload(obj), nil
	}
	return nil, &status.NormalizationError{TaskID: taskID, Shape: jsonShape(decoded)}
}

func jsonShape(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// RegisterNotification registers email for taskID. A 409 answer matches
// backend.ErrConflict.
func (c *Client) RegisterNotification(ctx context.Context, taskID, email string) error {
	body := notifyRequest{TaskID: taskID, Email: email}
	return c.doJSON(ctx, opRegisterNotification, http.MethodPost, "/notify/email", body, nil)
}

// DownloadURL returns the result URL of taskID.
func (c *Client) DownloadURL(taskID string) string {
	return c.apiBase + c.cfg.DownloadRoute(url.PathEscape(taskID))
}

func (c *Client) postFile(ctx context.Context, op, path, filename string, content []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, &buf)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	return c.send(req, op, out)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req, op, out)
}

// send performs req once and decodes a 2xx body into out.
func (c *Client) send(req *http.Request, op string, out any) error {
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(req.Context(), "backend request failed",
			"operation", op,
			"error", redact.Error(err))
		return &backend.TransportError{Operation: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.DebugContext(req.Context(), "backend request",
		"operation", op,
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &backend.TransportError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    errorDetail(resp.Body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &backend.TransportError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

// errorDetail extracts the "detail" message of an error body, falling back
// to the raw text.
func errorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch d := payload.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if encoded, err := json.Marshal(d); err == nil {
				return string(encoded)
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
