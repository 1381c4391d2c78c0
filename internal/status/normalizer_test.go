package status

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("running with stage token", func(t *testing.T) {
		t.Parallel()

		got, err := Normalize(RawPayload{"status": "running", "progress": 42.0, "stage": "extracting"}, "task-1")

		require.NoError(t, err)
		assert.Equal(t, "task-1", got.TaskID)
		assert.Equal(t, StateProcessing, got.State)
		assert.Equal(t, 42, got.ProgressPercent)
		assert.True(t, got.ProgressReported)
		assert.Equal(t, "Extracting text...", got.CurrentStepLabel)
		assert.Nil(t, got.ETAMinutes)
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("ready without progress", func(t *testing.T) {
		t.Parallel()

		got, err := Normalize(RawPayload{"status": "ready"}, "task-1")

		require.NoError(t, err)
		assert.Equal(t, StateCompleted, got.State)
		assert.Equal(t, 0, got.ProgressPercent)
		assert.False(t, got.ProgressReported, "absent progress must be flagged so the controller can carry the last value")
		assert.Equal(t, LabelCompleted, got.CurrentStepLabel)
	})

	t.Run("empty payload", func(t *testing.T) {
		t.Parallel()

		got, err := Normalize(RawPayload{}, "task-1")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNormalization)
		var normErr *NormalizationError
		require.True(t, errors.As(err, &normErr))
		assert.Equal(t, "task-1", normErr.TaskID)
		assert.Equal(t, TaskStatus{}, got, "no output fields are produced on failure")
	})

	t.Run("full staged payload", func(t *testing.T) {
		t.Parallel()

		got, err := Normalize(RawPayload{
			"task_id":          "ignored",
			"status":           "processing",
			"progress_percent": 57.0,
			"current_step":     "Building knowledge graph...",
			"eta_minutes":      3.0,
		}, "task-2")

		require.NoError(t, err)
		assert.Equal(t, StateProcessing, got.State)
		assert.Equal(t, 57, got.ProgressPercent)
		assert.Equal(t, "Building knowledge graph...", got.CurrentStepLabel)
		require.NotNil(t, got.ETAMinutes)
		assert.InDelta(t, 3.0, *got.ETAMinutes, 0.0001)
		assert.Equal(t, "~3 min", got.ETALabel())
	})
}

func TestNormalize_MissingStatusAliases(t *testing.T) {
	t.Parallel()

	payloads := []RawPayload{
		nil,
		{},
		{"progress": 10.0},
		{"stage": "extracting", "message": "hi"},
		{"status": nil},
		{"Status": "running"},
	}

	for _, raw := range payloads {
		got, err := Normalize(raw, "t")
		assert.ErrorIs(t, err, ErrNormalization, "payload %v", raw)
		assert.Equal(t, TaskStatus{}, got)
	}
}

func TestNormalize_StateAliases(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		raw  RawPayload
		want State
	}{
		{RawPayload{"status": "pending"}, StatePending},
		{RawPayload{"status": "running"}, StateProcessing},
		{RawPayload{"status": "processing"}, StateProcessing},
		{RawPayload{"status": "ready"}, StateCompleted},
		{RawPayload{"status": "completed"}, StateCompleted},
		{RawPayload{"status": "error"}, StateFailed},
		{RawPayload{"status": "failed"}, StateFailed},
		{RawPayload{"status": "  COMPLETED "}, StateCompleted},
		{RawPayload{"state": "running"}, StateProcessing},
		{RawPayload{"status": "analyzing"}, StateProcessing},
		{RawPayload{"status": "teleporting"}, StatePending},
		{RawPayload{"status": 7.0}, StatePending},
		{RawPayload{"status": "", "state": "ready"}, StatePending},
		{RawPayload{"status": nil, "state": "ready"}, StateCompleted},
	}

	for _, tc := range testCases {
		got, err := Normalize(tc.raw, "t")
		require.NoError(t, err, "payload %v", tc.raw)
		assert.Equal(t, tc.want, got.State, "payload %v", tc.raw)
	}
}

func TestNormalize_ProgressClamping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		raw      RawPayload
		want     int
		reported bool
	}{
		{"over range", RawPayload{"status": "running", "progress": 150.0}, 100, true},
		{"negative", RawPayload{"status": "running", "progress": -5.0}, 0, true},
		{"rounded", RawPayload{"status": "running", "progress": 41.6}, 42, true},
		{"json number", RawPayload{"status": "running", "progress": json.Number("33")}, 33, true},
		{"numeric string", RawPayload{"status": "running", "progress": "64%"}, 64, true},
		{"priority order", RawPayload{"status": "running", "progress_percent": 10.0, "progress": 90.0}, 10, true},
		{"unusable first alias", RawPayload{"status": "running", "progress_percent": "n/a", "progress": 90.0}, 90, true},
		{"beyond int range", RawPayload{"status": "running", "progress": 1e20}, 100, true},
		{"huge json number", RawPayload{"status": "running", "progress": json.Number("1e300")}, 100, true},
		{"huge numeric string", RawPayload{"status": "running", "progress": "1e19"}, 100, true},
		{"far negative", RawPayload{"status": "running", "progress": -1e20}, 0, true},
		{"garbage", RawPayload{"status": "running", "progress": true}, 0, false},
		{"missing", RawPayload{"status": "running"}, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw, "t")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ProgressPercent)
			assert.Equal(t, tc.reported, got.ProgressReported)
			assert.GreaterOrEqual(t, got.ProgressPercent, 0)
			assert.LessOrEqual(t, got.ProgressPercent, 100)
		})
	}
}

func TestNormalize_StepLabel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		raw  RawPayload
		want string
	}{
		{"stage token", RawPayload{"status": "running", "stage": "optimizing"}, "Optimizing schedule..."},
		{"backend step text", RawPayload{"status": "processing", "current_step": "Extracting content..."}, "Extracting content..."},
		{"current_step beats stage", RawPayload{"status": "running", "current_step": "finalizing", "stage": "extracting"}, "Finalizing output..."},
		{"unknown phase", RawPayload{"status": "running", "stage": "reticulating splines"}, LabelWorking},
		{"message wins", RawPayload{"status": "running", "stage": "extracting", "message": "Reading page 4 of 90"}, "Reading page 4 of 90"},
		{"blank message ignored", RawPayload{"status": "running", "stage": "extracting", "message": "  "}, "Extracting text..."},
		{"no phase", RawPayload{"status": "pending"}, LabelStarting},
		{"failed without phase", RawPayload{"status": "failed"}, LabelFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw, "t")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.CurrentStepLabel)
		})
	}
}

func TestNormalize_ETA(t *testing.T) {
	t.Parallel()

	got, err := Normalize(RawPayload{"status": "running", "eta_min": 4.2}, "t")
	require.NoError(t, err)
	require.NotNil(t, got.ETAMinutes)
	assert.InDelta(t, 4.2, *got.ETAMinutes, 0.0001)
	assert.Equal(t, "~5 min", got.ETALabel())

	got, err = Normalize(RawPayload{"status": "running", "eta_minutes": 0.0}, "t")
	require.NoError(t, err)
	require.NotNil(t, got.ETAMinutes, "an explicit zero is a value, not absence")
	assert.Zero(t, *got.ETAMinutes)

	for _, raw := range []RawPayload{
		{"status": "running"},
		{"status": "running", "eta_minutes": nil},
		{"status": "running", "eta_minutes": -1.0},
		{"status": "running", "eta_minutes": "soon"},
	} {
		got, err := Normalize(raw, "t")
		require.NoError(t, err)
		assert.Nil(t, got.ETAMinutes, "payload %v", raw)
		assert.Equal(t, LabelCalculating, got.ETALabel())
	}
}

func TestNormalize_ErrorMessage(t *testing.T) {
	t.Parallel()

	got, err := Normalize(RawPayload{"status": "failed", "error_message": "PDF is encrypted"}, "t")
	require.NoError(t, err)
	assert.Equal(t, "PDF is encrypted", got.ErrorMessage)

	got, err = Normalize(RawPayload{"status": "error", "detail": "Task not found"}, "t")
	require.NoError(t, err)
	assert.Equal(t, "Task not found", got.ErrorMessage)

	got, err = Normalize(RawPayload{"status": "failed"}, "t")
	require.NoError(t, err)
	assert.Equal(t, DefaultFailureMessage, got.ErrorMessage)

	got, err = Normalize(RawPayload{"status": "running", "error_message": "stale"}, "t")
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMessage, "error detail is only read for failed tasks")
}

func TestNormalize_IsPure(t *testing.T) {
	t.Parallel()

	raw := RawPayload{"status": "running", "progress": 150.0, "stage": "extracting"}
	first, err := Normalize(raw, "t")
	require.NoError(t, err)
	second, err := Normalize(raw, "t")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, RawPayload{"status": "running", "progress": 150.0, "stage": "extracting"}, raw)
}
