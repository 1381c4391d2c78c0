package status

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Field aliases, in priority order. The first alias present wins.
var (
	statusFields   = []string{"status", "state"}
	progressFields = []string{"progress_percent", "progress"}
	phaseFields    = []string{"current_step", "stage"}
	etaFields      = []string{"eta_minutes", "eta_min"}
	errorFields    = []string{"error_message", "detail"}
)

// messageField carries backend free text that takes precedence over the
// phase table.
const messageField = "message"

// stateAliases maps raw status tokens onto canonical states. Tokens not in
// the table normalize to StatePending.
var stateAliases = map[string]State{
	"pending":  StatePending,
	"queued":   StatePending,
	"waiting":  StatePending,
	"uploaded": StatePending,

	"running":     StateProcessing,
	"processing":  StateProcessing,
	"in_progress": StateProcessing,
	"started":     StateProcessing,
	"analyzing":   StateProcessing,
	"generating":  StateProcessing,

	"ready":     StateCompleted,
	"completed": StateCompleted,
	"complete":  StateCompleted,
	"done":      StateCompleted,
	"success":   StateCompleted,
	"succeeded": StateCompleted,

	"error":   StateFailed,
	"failed":  StateFailed,
	"failure": StateFailed,
}

// phaseLabels maps phase tokens onto display labels. Keys are folded with
// phaseKey, so the backend's own step text ("Extracting content...") is
// matched as well as short stage tokens ("extracting").
var phaseLabels = map[string]string{
	"waiting":          "Waiting to start",
	"waiting_to_start": "Waiting to start",
	"queued":           "Waiting to start",
	"starting":         LabelStarting,
	"uploading":        "Uploading file...",

	"extracting":         "Extracting text...",
	"extracting_text":    "Extracting text...",
	"extracting_content": "Extracting content...",

	"analyzing":                "Analyzing structure...",
	"analyzing_structure":      "Analyzing structure...",
	"identifying":              "Identifying key concepts...",
	"identifying_key_concepts": "Identifying key concepts...",
	"concepts":                 "Identifying key concepts...",

	"building_graph":           "Building knowledge graph...",
	"building_knowledge_graph": "Building knowledge graph...",

	"generating":            "Generating study plan...",
	"generating_plan":       "Generating study plan...",
	"generating_study_plan": "Generating study plan...",

	"optimizing":          "Optimizing schedule...",
	"optimizing_schedule": "Optimizing schedule...",

	"finalizing":        "Finalizing output...",
	"finalizing_output": "Finalizing output...",

	"completed": LabelCompleted,
	"done":      LabelCompleted,
}

// Normalize maps a raw backend payload onto the canonical TaskStatus.
//
// It fails only when none of the status field aliases is present. Every other
// irregularity degrades to a default: unknown status tokens become Pending,
// out-of-range progress is clamped, unknown phases become "Working...".
func Normalize(raw RawPayload, taskID string) (TaskStatus, error) {
	rawState, ok := firstPresent(raw, statusFields)
	if !ok {
		return TaskStatus{}, &NormalizationError{TaskID: taskID, Keys: sortedKeys(raw)}
	}

	out := TaskStatus{
		TaskID: taskID,
		State:  parseState(rawState),
	}

	if p, ok := firstNumber(raw, progressFields); ok {
		out.ProgressPercent = int(math.Max(0, math.Min(100, math.Round(p))))
		out.ProgressReported = true
	}

	out.CurrentStepLabel = stepLabel(raw, out.State)

	if eta, ok := firstNumber(raw, etaFields); ok && eta >= 0 {
		out.ETAMinutes = &eta
	}

	if out.State == StateFailed {
		out.ErrorMessage = DefaultFailureMessage
		if v, ok := firstPresent(raw, errorFields); ok {
			if msg := textValue(v); msg != "" {
				out.ErrorMessage = msg
			}
		}
	}

	return out, nil
}

func parseState(v any) State {
	token, ok := v.(string)
	if !ok {
		return StatePending
	}
	if s, ok := stateAliases[strings.ToLower(strings.TrimSpace(token))]; ok {
		return s
	}
	return StatePending
}

func stepLabel(raw RawPayload, state State) string {
	if v, ok := raw[messageField]; ok {
		if msg := textValue(v); msg != "" {
			return msg
		}
	}

	if v, ok := firstPresent(raw, phaseFields); ok {
		if token := textValue(v); token != "" {
			if label, ok := phaseLabels[phaseKey(token)]; ok {
				return label
			}
			return LabelWorking
		}
	}

	switch state {
	case StateCompleted:
		return LabelCompleted
	case StateFailed:
		return LabelFailed
	default:
		return LabelStarting
	}
}

// phaseKey folds a phase token or step text into a phaseLabels key.
func phaseKey(token string) string {
	k := strings.ToLower(strings.TrimSpace(token))
	k = strings.TrimRight(k, ".…")
	k = strings.TrimSpace(k)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, k)
}

// firstPresent returns the first alias whose value is present and non-null.
func firstPresent(raw RawPayload, aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := raw[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstNumber returns the first alias holding a usable finite number.
func firstNumber(raw RawPayload, aliases []string) (float64, bool) {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if n, ok := toFloat(v); ok {
			return n, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%")), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func sortedKeys(raw RawPayload) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
