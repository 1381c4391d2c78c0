package backend

import (
	"context"
	"io"

	"github.com/phrazzld/scaffold-tracker/internal/status"
)

// Client is the set of backend operations the application relies on.
// Implementations perform a single request per call and never retry.
type Client interface {
	// SubmitFile uploads a document for analysis and returns the backend's
	// summary, including the task id used by every other call.
	SubmitFile(ctx context.Context, filename string, r io.Reader) (*AnalysisSummary, error)

	// StartGeneration starts generating the study plan for an analyzed task.
	// The returned payload is a raw task status.
	StartGeneration(ctx context.Context, taskID string, opts GenerationOptions) (status.RawPayload, error)

	// GetTaskStatus fetches the raw status payload of a task.
	GetTaskStatus(ctx context.Context, taskID string) (status.RawPayload, error)

	// RegisterNotification asks the backend to email a download link to the
	// given address when the task completes.
	RegisterNotification(ctx context.Context, taskID, email string) error

	// DownloadURL builds the result download URL. It performs no I/O.
	DownloadURL(taskID string) string
}

// StatusFetcher is the subset of Client used by the lifecycle controller.
type StatusFetcher interface {
	GetTaskStatus(ctx context.Context, taskID string) (status.RawPayload, error)
}

// Registrar is the subset of Client used by the notification monitor.
type Registrar interface {
	RegisterNotification(ctx context.Context, taskID, email string) error
}
